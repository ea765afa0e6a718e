package service

import (
	"fmt"
	"strings"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
)

// applySpec copies the populated spec fields onto the geofence. Switching
// the shape type discards the previously populated geometry so that exactly
// one representation survives.
func applySpec(g *domain.Geofence, spec *domain.GeofenceSpec) {
	if spec.Name != nil {
		g.Name = strings.TrimSpace(*spec.Name)
	}
	if spec.Type != nil && *spec.Type != g.Type {
		g.Type = *spec.Type
		g.Center = nil
		g.RadiusMeters = 0
		g.Vertices = nil
	}
	if spec.Center != nil {
		c := *spec.Center
		g.Center = &c
	}
	if spec.RadiusMeters != nil {
		g.RadiusMeters = *spec.RadiusMeters
	}
	if spec.Vertices != nil {
		g.Vertices = append([]domain.Coordinate(nil), spec.Vertices...)
	}
	if spec.DeviceID != nil {
		g.DeviceID = strings.TrimSpace(*spec.DeviceID)
	}
	if spec.UserID != nil {
		g.UserID = strings.TrimSpace(*spec.UserID)
	}
	if spec.AlertOnEntry != nil {
		g.AlertOnEntry = *spec.AlertOnEntry
	}
	if spec.AlertOnExit != nil {
		g.AlertOnExit = *spec.AlertOnExit
	}
	if spec.Description != nil {
		g.Description = *spec.Description
	}
	if spec.Color != nil {
		g.Color = *spec.Color
	}
	if spec.Tags != nil {
		g.Tags = append([]string(nil), spec.Tags...)
	}
}

// mergeSpec overlays src's populated fields onto dst.
func mergeSpec(dst, src *domain.GeofenceSpec) {
	if src.Name != nil {
		dst.Name = src.Name
	}
	if src.Type != nil {
		dst.Type = src.Type
	}
	if src.Center != nil {
		dst.Center = src.Center
	}
	if src.RadiusMeters != nil {
		dst.RadiusMeters = src.RadiusMeters
	}
	if src.Vertices != nil {
		dst.Vertices = src.Vertices
	}
	if src.DeviceID != nil {
		dst.DeviceID = src.DeviceID
	}
	if src.UserID != nil {
		dst.UserID = src.UserID
	}
	if src.AlertOnEntry != nil {
		dst.AlertOnEntry = src.AlertOnEntry
	}
	if src.AlertOnExit != nil {
		dst.AlertOnExit = src.AlertOnExit
	}
	if src.Description != nil {
		dst.Description = src.Description
	}
	if src.Color != nil {
		dst.Color = src.Color
	}
	if src.Tags != nil {
		dst.Tags = src.Tags
	}
}

func validateGeofence(g *domain.Geofence) error {
	name := strings.TrimSpace(g.Name)
	if len(name) < minNameLen || len(name) > maxNameLen {
		return domain.Invalid("name", fmt.Sprintf("must be %d-%d characters", minNameLen, maxNameLen))
	}
	g.Name = name

	switch g.Type {
	case domain.ShapeCircle:
		if g.Center == nil {
			return domain.Invalid("center", "required for circle geofences")
		}
		if err := validateCoordinate("center", *g.Center); err != nil {
			return err
		}
		if g.RadiusMeters < minRadiusM || g.RadiusMeters > maxRadiusM {
			return domain.Invalid("radius", fmt.Sprintf("must be %d-%d meters", minRadiusM, maxRadiusM))
		}
		if len(g.Vertices) != 0 {
			return domain.Invalid("vertices", "not allowed for circle geofences")
		}

	case domain.ShapePolygon:
		if len(g.Vertices) < minVertices || len(g.Vertices) > maxVertices {
			return domain.Invalid("vertices", fmt.Sprintf("must have %d-%d points", minVertices, maxVertices))
		}
		for i, v := range g.Vertices {
			if err := validateCoordinate(fmt.Sprintf("vertices[%d]", i), v); err != nil {
				return err
			}
		}
		if g.Center != nil || g.RadiusMeters != 0 {
			return domain.Invalid("center", "not allowed for polygon geofences")
		}

	default:
		return domain.Invalid("type", "must be circle or polygon")
	}

	if len(g.Tags) > maxTags {
		return domain.Invalid("tags", fmt.Sprintf("at most %d tags", maxTags))
	}
	for _, tag := range g.Tags {
		if tag == "" || len(tag) > maxTagLen {
			return domain.Invalid("tags", fmt.Sprintf("each tag must be 1-%d characters", maxTagLen))
		}
	}
	return nil
}

func validateCoordinate(field string, c domain.Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 {
		return domain.Invalid(field, "latitude must be between -90 and 90")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return domain.Invalid(field, "longitude must be between -180 and 180")
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// Built-in starting points for common fence kinds. Geometry coordinates
// always come from the caller.
var templates = map[string]domain.GeofenceSpec{
	"depot-perimeter": {
		Type:         ptr(domain.ShapeCircle),
		RadiusMeters: ptr(250.0),
		AlertOnEntry: ptr(true),
		AlertOnExit:  ptr(true),
		Color:        ptr("#2e7d32"),
		Tags:         []string{"depot"},
	},
	"delivery-zone": {
		Type:         ptr(domain.ShapeCircle),
		RadiusMeters: ptr(500.0),
		AlertOnEntry: ptr(true),
		AlertOnExit:  ptr(false),
		Color:        ptr("#1565c0"),
		Tags:         []string{"delivery"},
	},
	"restricted-area": {
		Type:         ptr(domain.ShapePolygon),
		AlertOnEntry: ptr(true),
		AlertOnExit:  ptr(true),
		Color:        ptr("#c62828"),
		Tags:         []string{"restricted"},
	},
}
