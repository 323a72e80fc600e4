package limiter

import (
	"time"

	"golang.org/x/time/rate"
)

// CommandLimiter limits the commands accepted on one chat connection.
// A zero value rate disables limiting.
type CommandLimiter struct {
	l *rate.Limiter
}

func NewCommandLimiter(perSecond float64, burst int) *CommandLimiter {
	if perSecond <= 0 {
		return &CommandLimiter{l: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &CommandLimiter{l: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow consumes one token if available.
func (c *CommandLimiter) Allow() bool {
	return c.l.Allow()
}

// AllowAt is Allow evaluated at t.
func (c *CommandLimiter) AllowAt(t time.Time) bool {
	return c.l.AllowN(t, 1)
}
