package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mobix/storefront/pkg/logger"
)

// CacheConfig holds response cache configuration
type CacheConfig struct {
	TTL             time.Duration
	CacheableStatus []int
}

// DefaultCacheConfig returns the catalog response cache defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:             5 * time.Minute,
		CacheableStatus: []int{fiber.StatusOK},
	}
}

// Cache caches GET responses in Redis. The catalog snapshot changes at
// most once per session, so short-lived response caching is safe.
func Cache(redisClient *redis.Client, config CacheConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if redisClient == nil || c.Method() != fiber.MethodGet {
			return c.Next()
		}

		cacheKey := cacheKeyFor(c)
		ctx := c.UserContext()

		cached, err := redisClient.Get(ctx, cacheKey).Bytes()
		if err == nil && len(cached) > 0 {
			logger.Debug(ctx).Str("path", c.Path()).Msg("response cache hit")
			c.Set("X-Cache", "HIT")
			c.Set("Content-Type", "application/json")
			return c.Send(cached)
		}

		err = c.Next()

		statusCode := c.Response().StatusCode()
		if statusCacheable(statusCode, config.CacheableStatus) {
			body := c.Response().Body()
			if setErr := redisClient.Set(ctx, cacheKey, body, config.TTL).Err(); setErr != nil {
				logger.Warn(ctx).Err(setErr).Str("cache_key", cacheKey).Msg("failed to cache response")
			}
			c.Set("X-Cache", "MISS")
		}

		return err
	}
}

func cacheKeyFor(c *fiber.Ctx) string {
	components := fmt.Sprintf("%s:%s:%s",
		c.Method(),
		c.Path(),
		string(c.Request().URI().QueryString()),
	)
	hash := sha256.Sum256([]byte(components))
	return "cache:" + hex.EncodeToString(hash[:])
}

func statusCacheable(status int, cacheable []int) bool {
	for _, s := range cacheable {
		if s == status {
			return true
		}
	}
	return false
}
