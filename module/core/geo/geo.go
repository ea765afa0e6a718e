// Package geo holds the pure containment predicates. No I/O, no shared
// state; identical inputs always produce identical results.
package geo

import (
	"math"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
)

const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance in meters between two
// latitude/longitude points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// PointInCircle is boundary-inclusive: a point exactly radiusMeters from
// the center counts as inside.
func PointInCircle(lat, lng, centerLat, centerLng, radiusMeters float64) bool {
	return Haversine(lat, lng, centerLat, centerLng) <= radiusMeters
}

// PointInPolygon applies the even-odd ray-casting rule over consecutive
// vertex pairs, wrapping last to first. Vertex pairs with a non-finite
// coordinate are skipped and contribute no crossing; stored geometry is
// trusted to be mostly well formed, not perfectly so.
func PointInPolygon(lat, lng float64, vertices []domain.Coordinate) bool {
	inside := false
	n := len(vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := vertices[i], vertices[j]
		if !finite(vi.Lat) || !finite(vi.Lng) || !finite(vj.Lat) || !finite(vj.Lng) {
			continue
		}
		intersects := (vi.Lng > lng) != (vj.Lng > lng) &&
			lat < (vj.Lat-vi.Lat)*(lng-vi.Lng)/(vj.Lng-vi.Lng)+vi.Lat
		if intersects {
			inside = !inside
		}
	}
	return inside
}

// Contains dispatches on the geofence shape type. Unknown shapes and
// missing geometry classify as outside.
func Contains(g *domain.Geofence, lat, lng float64) bool {
	switch g.Type {
	case domain.ShapeCircle:
		if g.Center == nil {
			return false
		}
		return PointInCircle(lat, lng, g.Center.Lat, g.Center.Lng, g.RadiusMeters)
	case domain.ShapePolygon:
		return PointInPolygon(lat, lng, g.Vertices)
	default:
		return false
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
