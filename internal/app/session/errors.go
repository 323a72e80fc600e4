package session

import "errors"

var errIDExhausted = errors.New("session: no free session id after retries")
