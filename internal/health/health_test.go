package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_Health(t *testing.T) {
	c := NewChecker("1.2.3")
	resp := c.Health()

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestChecker_Readiness(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		c := NewChecker("test")
		c.RegisterCheck("ok", func(ctx context.Context) error { return nil })

		resp := c.Readiness(context.Background())
		assert.Equal(t, StatusHealthy, resp.Status)
	})

	t.Run("failing check flips status", func(t *testing.T) {
		c := NewChecker("test")
		c.RegisterCheck("ok", func(ctx context.Context) error { return nil })
		c.RegisterCheck("bad", func(ctx context.Context) error { return errors.New("down") })

		resp := c.Readiness(context.Background())
		assert.Equal(t, StatusUnhealthy, resp.Status)
		assert.Equal(t, "down", resp.Checks["bad"].Message)
		assert.Equal(t, StatusHealthy, resp.Checks["ok"].Status)
	})
}

func TestHandlers(t *testing.T) {
	c := NewChecker("test")
	c.RegisterCheck("bad", func(ctx context.Context) error { return errors.New("down") })

	t.Run("liveness is always ok", func(t *testing.T) {
		w := httptest.NewRecorder()
		c.LivenessHandler().ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("readiness reports 503", func(t *testing.T) {
		w := httptest.NewRecorder()
		c.ReadinessHandler().ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	check := RedisCheck(client)
	require.NoError(t, check(context.Background()))

	mr.Close()
	assert.Error(t, check(context.Background()))
}
