package http

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/poiguide/internal/adapters/postgres"
	"github.com/samirrijal/poiguide/internal/core/domain"
)

// NearbyPOIsResponse is the body of GET /v1/pois/nearby.
type NearbyPOIsResponse struct {
	Center domain.GeoPoint          `json:"center"`
	Radius float64                  `json:"radius"`
	POIs   []domain.PointOfInterest `json:"pois"`
}

// NearbyPOIsHandler returns POIs around lat/lng. The radius is taken from the
// radius parameter, or derived from zoom the same way the explorer does.
func NearbyPOIsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lng") == "" {
			return errBadRequest(c, "lat and lng are required")
		}
		center := domain.GeoPoint{Lat: c.QueryFloat("lat", 0), Lon: c.QueryFloat("lng", 0)}
		if center.Lat < -90 || center.Lat > 90 || center.Lon < -180 || center.Lon > 180 {
			return errBadRequest(c, "lat must be within ±90 and lng within ±180")
		}

		radius := c.QueryFloat("radius", 0)
		switch {
		case radius < 0 || radius > 50000:
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		case radius == 0:
			zoom := c.QueryFloat("zoom", 15)
			if zoom <= 0 || zoom > 22 {
				return errBadRequest(c, "zoom must be between 0 and 22")
			}
			radius = deps.POIs.RadiusForZoom(zoom)
		}

		pois, err := deps.POIs.Search(c.UserContext(), center, radius)
		if err != nil {
			return errFromDomain(c, err)
		}
		if pois == nil {
			pois = []domain.PointOfInterest{}
		}
		return c.JSON(NearbyPOIsResponse{Center: center, Radius: radius, POIs: pois})
	}
}

// SearchPlacesHandler resolves a city keyword to candidate places.
func SearchPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := c.Query("q")
		if q == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if utf8.RuneCountInString(q) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		limit := c.QueryInt("limit", 10)
		if limit <= 0 || limit > 20 {
			limit = 10
		}

		places, err := deps.Places.Search(c.UserContext(), q, limit)
		if err != nil {
			return errFromDomain(c, err)
		}
		if places == nil {
			places = []domain.Place{}
		}
		return c.JSON(places)
	}
}

// AudioHandler streams synthesized narration by id.
func AudioHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "audio id is required")
		}

		audio, err := deps.Audio.Get(c.UserContext(), id)
		if errors.Is(err, domain.ErrNotFound) {
			return errNotFound(c, "audio not found or expired")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set(fiber.HeaderContentType, "audio/mpeg")
		return c.Send(audio)
	}
}

// PopularPOIsHandler returns the POIs selected most often in the last N days.
func PopularPOIsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Popular == nil {
			return errUnavailable(c, "statistics need the database")
		}
		days := c.QueryInt("days", 7)
		if days <= 0 || days > 90 {
			return errBadRequest(c, "days must be between 1 and 90")
		}
		limit := c.QueryInt("limit", 10)
		if limit <= 0 || limit > 100 {
			limit = 10
		}

		since := time.Now().AddDate(0, 0, -days)
		top, err := deps.Popular.TopSelected(c.UserContext(), since, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if top == nil {
			top = []postgres.POICount{}
		}
		return c.JSON(fiber.Map{"since": since.UTC().Format(time.RFC3339), "pois": top})
	}
}
