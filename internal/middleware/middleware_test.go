package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	app := fiber.New()
	app.Use(Cache(nil, DefaultCacheConfig()))
	app.Get("/products", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"total": 3})
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/products", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-Cache"), "no cache headers without a backend")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"total":3}`, string(body))
	}
}

func TestRateLimiterWithoutRedisPassesThrough(t *testing.T) {
	app := fiber.New()
	app.Use(NewRateLimiter(nil, 1, time.Minute).Middleware())
	app.Post("/cart", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	// Well past the limit of one: without Redis nothing is throttled.
	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/cart", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-RateLimit-Remaining"))
	}
}

func TestStatusCacheable(t *testing.T) {
	cacheable := DefaultCacheConfig().CacheableStatus
	assert.True(t, statusCacheable(fiber.StatusOK, cacheable))
	assert.False(t, statusCacheable(fiber.StatusNotFound, cacheable))
	assert.False(t, statusCacheable(fiber.StatusInternalServerError, cacheable))
}
