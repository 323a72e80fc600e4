package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestCommandLimiter(t *testing.T) {
	t.Run("burst then refill", func(t *testing.T) {
		l := NewCommandLimiter(1, 2)
		now := time.Now()
		assert.True(t, l.AllowAt(now))
		assert.True(t, l.AllowAt(now))
		assert.False(t, l.AllowAt(now))
		assert.True(t, l.AllowAt(now.Add(time.Second)))
	})

	t.Run("disabled", func(t *testing.T) {
		l := NewCommandLimiter(0, 0)
		for i := 0; i < 1000; i++ {
			require.True(t, l.Allow())
		}
	})
}

func TestIPRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, rate.Every(time.Hour), 1)
	assert.Same(t, l.GetLimiter("10.0.0.1"), l.GetLimiter("10.0.0.1"))
	assert.NotSame(t, l.GetLimiter("10.0.0.1"), l.GetLimiter("10.0.0.2"))
	assert.Equal(t, 2, l.Len())

	l.GetLimiter("10.0.0.1").Allow()
	removed, remaining := l.cleanUp(time.Now())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, remaining)
}

func TestMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, rate.Every(time.Hour), 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/announce", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}
