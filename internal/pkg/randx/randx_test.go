package randx

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionID(t *testing.T) {
	seen := make(map[uuid.UUID]struct{})
	for i := 0; i < 100; i++ {
		id, err := SessionID()
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		assert.Equal(t, uuid.Version(4), id.Version())
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestUserNickname(t *testing.T) {
	name, err := UserNickname()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(name, NicknamePrefix))
	suffix := strings.TrimPrefix(name, NicknamePrefix)
	assert.Len(t, suffix, NicknameRandomLength)
	for _, r := range suffix {
		assert.Contains(t, Base62Chars, string(r))
	}
}
