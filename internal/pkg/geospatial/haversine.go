package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Web Mercator ground resolution at zoom 0 on the equator, 256px tiles.
const metersPerPixelZ0 = 156543.03392

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// BoundsAround returns the box that contains a circle of radiusMeters around center.
func BoundsAround(center domain.GeoPoint, radiusMeters float64) domain.Bounds {
	return FromOrb(geo.NewBoundAroundPoint(ToOrb(center), radiusMeters))
}

// MetersPerPixel is the Web Mercator ground resolution at lat and zoom.
func MetersPerPixel(lat, zoom float64) float64 {
	return metersPerPixelZ0 * math.Cos(toRad(lat)) / math.Pow(2, zoom)
}

// ViewportBounds estimates what a map of the given pixel size shows when
// centred on center at zoom. Used when the engine has not reported bounds.
func ViewportBounds(center domain.GeoPoint, zoom float64, size domain.PixelSize) domain.Bounds {
	mpp := MetersPerPixel(center.Lat, zoom)
	halfH := float64(size.Height) / 2 * mpp
	halfW := float64(size.Width) / 2 * mpp

	latDelta := halfH / 111320.0
	lonDelta := halfW / (111320.0 * math.Cos(toRad(center.Lat)))
	return domain.Bounds{
		MinLat: center.Lat - latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLat: center.Lat + latDelta,
		MaxLon: center.Lon + lonDelta,
	}
}

// ToOrb converts a domain point to orb's lon/lat order.
func ToOrb(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb bound to domain bounds.
func FromOrb(b orb.Bound) domain.Bounds {
	return domain.Bounds{
		MinLat: b.Min.Lat(),
		MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLon: b.Max.Lon(),
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
