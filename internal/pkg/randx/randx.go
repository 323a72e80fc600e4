/*
Package randx generates session identifiers and guest nicknames from
cryptographically secure randomness.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars is the alphabet used for nickname suffixes (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// NicknamePrefix starts every generated nickname.
	NicknamePrefix = "User_"

	// NicknameRandomLength is the number of Base62 characters after the prefix.
	NicknameRandomLength = 6
)

var base62Len = big.NewInt(int64(len(Base62Chars)))

// SessionID returns a random (version 4) UUID.
func SessionID() (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	return id, nil
}

// UserNickname returns NicknamePrefix followed by NicknameRandomLength random
// Base62 characters, for clients that start without a name.
func UserNickname() (string, error) {
	result := make([]byte, NicknameRandomLength)

	for i := range result {
		num, err := rand.Int(rand.Reader, base62Len)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for nickname: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return NicknamePrefix + string(result), nil
}
