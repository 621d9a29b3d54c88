package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses by endpoint when the
// handler did not set one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/v1/explorer"):
			ttl = "no-store"

		case strings.HasPrefix(path, "/v1/pois/nearby"):
			ttl = "public, max-age=300" // matches the POI cache TTL

		case strings.HasPrefix(path, "/v1/places/search"):
			ttl = "public, max-age=3600" // city names are stable

		case strings.HasPrefix(path, "/v1/audio/"):
			ttl = "private, max-age=3600"

		case strings.HasPrefix(path, "/v1/stats/"):
			ttl = "public, max-age=60"

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=600"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
