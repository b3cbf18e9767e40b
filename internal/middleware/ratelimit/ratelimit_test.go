package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTake_RefillsOverTime(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2})
	defer rl.Stop()

	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	ok, _, _ := rl.take("a")
	assert.True(t, ok)
	ok, _, _ = rl.take("a")
	assert.True(t, ok)

	ok, _, wait := rl.take("a")
	assert.False(t, ok)
	assert.InDelta(t, 30*time.Second, wait, float64(time.Millisecond))

	ok, _, _ = rl.take("b")
	assert.True(t, ok, "buckets are per key")

	now = now.Add(31 * time.Second)
	ok, _, _ = rl.take("a")
	assert.True(t, ok)
}

func TestMiddleware_Returns429(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}
