package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
)

type mockGeofenceRepo struct {
	insertFn     func(ctx context.Context, g *domain.Geofence) error
	updateFn     func(ctx context.Context, g *domain.Geofence) error
	getFn        func(ctx context.Context, id string) (*domain.Geofence, error)
	deleteFn     func(ctx context.Context, id string) error
	listFn       func(ctx context.Context, filter *domain.GeofenceFilter) ([]domain.Geofence, error)
	nameExistsFn func(ctx context.Context, name, deviceID, userID, excludeID string) (bool, error)

	inserted []*domain.Geofence
	updated  []*domain.Geofence
}

func (m *mockGeofenceRepo) Insert(ctx context.Context, g *domain.Geofence) error {
	m.inserted = append(m.inserted, g)
	if m.insertFn != nil {
		return m.insertFn(ctx, g)
	}
	return nil
}

func (m *mockGeofenceRepo) Update(ctx context.Context, g *domain.Geofence) error {
	m.updated = append(m.updated, g)
	if m.updateFn != nil {
		return m.updateFn(ctx, g)
	}
	return nil
}

func (m *mockGeofenceRepo) GetByID(ctx context.Context, id string) (*domain.Geofence, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockGeofenceRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockGeofenceRepo) List(ctx context.Context, filter *domain.GeofenceFilter) ([]domain.Geofence, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockGeofenceRepo) NameExists(ctx context.Context, name, deviceID, userID, excludeID string) (bool, error) {
	if m.nameExistsFn != nil {
		return m.nameExistsFn(ctx, name, deviceID, userID, excludeID)
	}
	return false, nil
}

func (m *mockGeofenceRepo) ListApplicable(context.Context, string, string) ([]domain.Geofence, error) {
	return nil, nil
}

func (m *mockGeofenceRepo) TouchActivity(context.Context, string, time.Time) error {
	return nil
}

type mockChangeNotifier struct {
	kinds []string
	last  *domain.Geofence
}

func (m *mockChangeNotifier) NotifyRegistryChange(kind string, g *domain.Geofence) {
	m.kinds = append(m.kinds, kind)
	m.last = g
}

func circleSpec(name string) *domain.GeofenceSpec {
	return &domain.GeofenceSpec{
		Name:         ptr(name),
		Type:         ptr(domain.ShapeCircle),
		Center:       &domain.Coordinate{Lat: 40.7128, Lng: -74.0060},
		RadiusMeters: ptr(500.0),
	}
}

func TestCreate_Defaults(t *testing.T) {
	repo := &mockGeofenceRepo{}
	notifier := &mockChangeNotifier{}
	svc := NewRegistryService(repo, notifier)

	g, err := svc.Create(context.Background(), circleSpec("Downtown zone"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.ID == "" {
		t.Error("expected generated id")
	}
	if !g.Active || !g.AlertOnEntry || !g.AlertOnExit {
		t.Error("expected active and both alert flags by default")
	}
	if g.LastActivity.IsZero() || g.CreatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(repo.inserted))
	}
	if len(notifier.kinds) != 1 || notifier.kinds[0] != "created" {
		t.Errorf("expected created notification, got %v", notifier.kinds)
	}
}

func TestCreate_ValidationFailures(t *testing.T) {
	svc := NewRegistryService(&mockGeofenceRepo{}, &mockChangeNotifier{})

	cases := []struct {
		name string
		spec *domain.GeofenceSpec
	}{
		{"name too short", &domain.GeofenceSpec{
			Name: ptr("ab"), Type: ptr(domain.ShapeCircle),
			Center: &domain.Coordinate{Lat: 1, Lng: 1}, RadiusMeters: ptr(100.0),
		}},
		{"name only whitespace", &domain.GeofenceSpec{
			Name: ptr("   a   "), Type: ptr(domain.ShapeCircle),
			Center: &domain.Coordinate{Lat: 1, Lng: 1}, RadiusMeters: ptr(100.0),
		}},
		{"name too long", &domain.GeofenceSpec{
			Name: ptr(strings.Repeat("x", 51)), Type: ptr(domain.ShapeCircle),
			Center: &domain.Coordinate{Lat: 1, Lng: 1}, RadiusMeters: ptr(100.0),
		}},
		{"missing type", &domain.GeofenceSpec{Name: ptr("Valid name")}},
		{"circle without center", &domain.GeofenceSpec{
			Name: ptr("Valid name"), Type: ptr(domain.ShapeCircle), RadiusMeters: ptr(100.0),
		}},
		{"radius too small", &domain.GeofenceSpec{
			Name: ptr("Valid name"), Type: ptr(domain.ShapeCircle),
			Center: &domain.Coordinate{Lat: 1, Lng: 1}, RadiusMeters: ptr(9.0),
		}},
		{"radius too large", &domain.GeofenceSpec{
			Name: ptr("Valid name"), Type: ptr(domain.ShapeCircle),
			Center: &domain.Coordinate{Lat: 1, Lng: 1}, RadiusMeters: ptr(100001.0),
		}},
		{"latitude out of range", &domain.GeofenceSpec{
			Name: ptr("Valid name"), Type: ptr(domain.ShapeCircle),
			Center: &domain.Coordinate{Lat: 91, Lng: 1}, RadiusMeters: ptr(100.0),
		}},
		{"longitude out of range", &domain.GeofenceSpec{
			Name: ptr("Valid name"), Type: ptr(domain.ShapeCircle),
			Center: &domain.Coordinate{Lat: 1, Lng: -181}, RadiusMeters: ptr(100.0),
		}},
		{"polygon too few vertices", &domain.GeofenceSpec{
			Name: ptr("Valid name"), Type: ptr(domain.ShapePolygon),
			Vertices: []domain.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}},
		}},
		{"too many tags", &domain.GeofenceSpec{
			Name: ptr("Valid name"), Type: ptr(domain.ShapeCircle),
			Center: &domain.Coordinate{Lat: 1, Lng: 1}, RadiusMeters: ptr(100.0),
			Tags: make([]string, 11),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.spec)
			if !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_DuplicateNameInScope(t *testing.T) {
	repo := &mockGeofenceRepo{
		nameExistsFn: func(_ context.Context, name, deviceID, _, _ string) (bool, error) {
			// "Downtown zone" is taken under device dev-1 only
			return strings.EqualFold(name, "Downtown zone") && deviceID == "dev-1", nil
		},
	}
	svc := NewRegistryService(repo, &mockChangeNotifier{})

	spec := circleSpec("Downtown zone")
	spec.DeviceID = ptr("dev-1")
	_, err := svc.Create(context.Background(), spec)
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// same name under a different device binding is fine
	spec2 := circleSpec("Downtown zone")
	spec2.DeviceID = ptr("dev-2")
	if _, err := svc.Create(context.Background(), spec2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func existingCircle() *domain.Geofence {
	return &domain.Geofence{
		ID:           "gf-1",
		Name:         "Downtown zone",
		Type:         domain.ShapeCircle,
		Center:       &domain.Coordinate{Lat: 40.7128, Lng: -74.0060},
		RadiusMeters: 500,
		AlertOnEntry: true,
		AlertOnExit:  true,
		Active:       true,
		CreatedAt:    time.Unix(1000, 0),
		UpdatedAt:    time.Unix(1000, 0),
	}
}

func TestUpdate_ShapeSwitchClearsGeometry(t *testing.T) {
	repo := &mockGeofenceRepo{
		getFn: func(_ context.Context, id string) (*domain.Geofence, error) {
			return existingCircle(), nil
		},
	}
	svc := NewRegistryService(repo, &mockChangeNotifier{})

	g, err := svc.Update(context.Background(), "gf-1", &domain.GeofenceSpec{
		Type: ptr(domain.ShapePolygon),
		Vertices: []domain.Coordinate{
			{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}, {Lat: 10, Lng: 0},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Type != domain.ShapePolygon {
		t.Errorf("expected polygon, got %s", g.Type)
	}
	if g.Center != nil || g.RadiusMeters != 0 {
		t.Error("expected circle geometry to be cleared")
	}
	if len(g.Vertices) != 3 {
		t.Errorf("expected 3 vertices, got %d", len(g.Vertices))
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := NewRegistryService(&mockGeofenceRepo{}, &mockChangeNotifier{})
	_, err := svc.Update(context.Background(), "missing", circleSpec("Another name"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	repo := &mockGeofenceRepo{
		getFn: func(_ context.Context, id string) (*domain.Geofence, error) {
			return existingCircle(), nil
		},
	}
	notifier := &mockChangeNotifier{}
	svc := NewRegistryService(repo, notifier)

	g, err := svc.Toggle(context.Background(), "gf-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Active {
		t.Error("expected inactive")
	}
	if !g.LastActivity.After(time.Unix(1000, 0)) {
		t.Error("expected lastActivity to move forward")
	}
	if len(notifier.kinds) != 1 || notifier.kinds[0] != "toggled" {
		t.Errorf("expected toggled notification, got %v", notifier.kinds)
	}
}

func TestDelete_Notifies(t *testing.T) {
	repo := &mockGeofenceRepo{
		getFn: func(_ context.Context, id string) (*domain.Geofence, error) {
			return existingCircle(), nil
		},
	}
	notifier := &mockChangeNotifier{}
	svc := NewRegistryService(repo, notifier)

	if err := svc.Delete(context.Background(), "gf-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.kinds) != 1 || notifier.kinds[0] != "deleted" {
		t.Errorf("expected deleted notification, got %v", notifier.kinds)
	}
}

func TestBulkSetActive_SkipsMissing(t *testing.T) {
	repo := &mockGeofenceRepo{
		getFn: func(_ context.Context, id string) (*domain.Geofence, error) {
			if id == "missing" {
				return nil, domain.ErrNotFound
			}
			return existingCircle(), nil
		},
	}
	svc := NewRegistryService(repo, &mockChangeNotifier{})

	changed, err := svc.BulkSetActive(context.Background(), []string{"gf-1", "missing", "gf-2"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed != 2 {
		t.Errorf("expected 2 changed, got %d", changed)
	}
}

func TestDuplicate_ResolvesNameCollision(t *testing.T) {
	taken := map[string]bool{"Downtown zone": true, "Downtown zone (copy)": true}
	repo := &mockGeofenceRepo{
		getFn: func(_ context.Context, id string) (*domain.Geofence, error) {
			return existingCircle(), nil
		},
		nameExistsFn: func(_ context.Context, name, _, _, _ string) (bool, error) {
			return taken[name], nil
		},
	}
	svc := NewRegistryService(repo, &mockChangeNotifier{})

	g, err := svc.Duplicate(context.Background(), "gf-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name != "Downtown zone (copy 2)" {
		t.Errorf("expected numbered copy name, got %q", g.Name)
	}
	if g.Active {
		t.Error("copies start inactive")
	}
	if g.ID == "gf-1" {
		t.Error("expected a fresh id")
	}
}

func TestCreateFromTemplate(t *testing.T) {
	repo := &mockGeofenceRepo{}
	svc := NewRegistryService(repo, &mockChangeNotifier{})

	g, err := svc.CreateFromTemplate(context.Background(), "delivery-zone", &domain.GeofenceSpec{
		Name:   ptr("North side drop"),
		Center: &domain.Coordinate{Lat: 40.7128, Lng: -74.0060},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.RadiusMeters != 500 {
		t.Errorf("expected template radius 500, got %f", g.RadiusMeters)
	}
	if !g.AlertOnEntry || g.AlertOnExit {
		t.Error("expected entry-only alerts from template")
	}

	if _, err := svc.CreateFromTemplate(context.Background(), "no-such-template", &domain.GeofenceSpec{}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for unknown template, got %v", err)
	}
}

func TestExport_CSV(t *testing.T) {
	repo := &mockGeofenceRepo{
		listFn: func(_ context.Context, _ *domain.GeofenceFilter) ([]domain.Geofence, error) {
			return []domain.Geofence{*existingCircle()}, nil
		},
	}
	svc := NewRegistryService(repo, &mockChangeNotifier{})

	body, contentType, err := svc.Export(context.Background(), &domain.GeofenceFilter{}, ExportCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contentType != "text/csv" {
		t.Errorf("expected text/csv, got %s", contentType)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,name,type") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "Downtown zone") {
		t.Errorf("row missing geofence name: %s", lines[1])
	}

	if _, _, err := svc.Export(context.Background(), &domain.GeofenceFilter{}, "xml"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for unknown format, got %v", err)
	}
}

func TestList_ClampsPagination(t *testing.T) {
	var got *domain.GeofenceFilter
	repo := &mockGeofenceRepo{
		listFn: func(_ context.Context, filter *domain.GeofenceFilter) ([]domain.Geofence, error) {
			got = filter
			return nil, nil
		},
	}
	svc := NewRegistryService(repo, &mockChangeNotifier{})

	if _, err := svc.List(context.Background(), &domain.GeofenceFilter{Page: 0, PageSize: 1000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Page != 1 {
		t.Errorf("expected page 1, got %d", got.Page)
	}
	if got.PageSize != 100 {
		t.Errorf("expected page size clamped to 100, got %d", got.PageSize)
	}
}
