package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/database"
)

const (
	minNameLen     = 3
	maxNameLen     = 50
	minRadiusM     = 10
	maxRadiusM     = 100000
	minVertices    = 3
	maxVertices    = 100
	maxTags        = 10
	maxTagLen      = 30
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// changeNotifier fans registry mutations out to live subscribers.
type changeNotifier interface {
	NotifyRegistryChange(kind string, g *domain.Geofence)
}

type RegistryService struct {
	repo     database.GeofenceRepository
	notifier changeNotifier
	now      func() time.Time
}

func NewRegistryService(repo database.GeofenceRepository, notifier changeNotifier) *RegistryService {
	return &RegistryService{repo: repo, notifier: notifier, now: time.Now}
}

func (s *RegistryService) Create(ctx context.Context, spec *domain.GeofenceSpec) (*domain.Geofence, error) {
	now := s.now()
	g := &domain.Geofence{
		ID: uuid.NewString(),
		// Alerts fire on both transitions unless the caller opts out.
		AlertOnEntry: true,
		AlertOnExit:  true,
		Active:       true,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applySpec(g, spec)

	if err := validateGeofence(g); err != nil {
		return nil, err
	}
	if err := s.checkNameConflict(ctx, g); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, g); err != nil {
		return nil, fmt.Errorf("insert geofence: %w", err)
	}

	s.notifier.NotifyRegistryChange("created", g)
	return g, nil
}

func (s *RegistryService) Update(ctx context.Context, id string, spec *domain.GeofenceSpec) (*domain.Geofence, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	nameChanged := spec.Name != nil && !strings.EqualFold(strings.TrimSpace(*spec.Name), g.Name)
	scopeChanged := (spec.DeviceID != nil && *spec.DeviceID != g.DeviceID) ||
		(spec.UserID != nil && *spec.UserID != g.UserID)

	applySpec(g, spec)
	g.UpdatedAt = s.now()

	if err := validateGeofence(g); err != nil {
		return nil, err
	}
	if nameChanged || scopeChanged {
		if err := s.checkNameConflict(ctx, g); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, g); err != nil {
		return nil, err
	}

	s.notifier.NotifyRegistryChange("updated", g)
	return g, nil
}

func (s *RegistryService) Toggle(ctx context.Context, id string, active bool) (*domain.Geofence, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	g.Active = active
	g.LastActivity = s.now()
	g.UpdatedAt = g.LastActivity

	if err := s.repo.Update(ctx, g); err != nil {
		return nil, err
	}

	s.notifier.NotifyRegistryChange("toggled", g)
	return g, nil
}

// Delete removes the geofence together with all of its events.
func (s *RegistryService) Delete(ctx context.Context, id string) error {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.notifier.NotifyRegistryChange("deleted", g)
	return nil
}

func (s *RegistryService) Get(ctx context.Context, id string) (*domain.Geofence, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RegistryService) List(ctx context.Context, filter *domain.GeofenceFilter) ([]domain.Geofence, error) {
	normalizePages(&filter.Page, &filter.PageSize)
	return s.repo.List(ctx, filter)
}

// BulkSetActive toggles each id, skipping unresolved ones. Returns the
// number of geofences actually changed.
func (s *RegistryService) BulkSetActive(ctx context.Context, ids []string, active bool) (int, error) {
	changed := 0
	for _, id := range ids {
		if _, err := s.Toggle(ctx, id, active); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func (s *RegistryService) BulkDelete(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// Duplicate copies an existing geofence under a derived name. The copy
// starts inactive so it can be repositioned before it affects devices.
func (s *RegistryService) Duplicate(ctx context.Context, id string) (*domain.Geofence, error) {
	src, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	copyGf := *src
	copyGf.ID = uuid.NewString()
	copyGf.Active = false
	now := s.now()
	copyGf.LastActivity = now
	copyGf.CreatedAt = now
	copyGf.UpdatedAt = now
	if src.Center != nil {
		c := *src.Center
		copyGf.Center = &c
	}
	copyGf.Vertices = append([]domain.Coordinate(nil), src.Vertices...)
	copyGf.Tags = append([]string(nil), src.Tags...)

	copyGf.Name = copyName(src.Name, 1)
	for i := 2; ; i++ {
		taken, err := s.repo.NameExists(ctx, copyGf.Name, copyGf.DeviceID, copyGf.UserID, copyGf.ID)
		if err != nil {
			return nil, fmt.Errorf("check name: %w", err)
		}
		if !taken {
			break
		}
		copyGf.Name = copyName(src.Name, i)
	}

	if err := validateGeofence(&copyGf); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, &copyGf); err != nil {
		return nil, fmt.Errorf("insert geofence: %w", err)
	}

	s.notifier.NotifyRegistryChange("created", &copyGf)
	return &copyGf, nil
}

func copyName(base string, n int) string {
	suffix := " (copy)"
	if n > 1 {
		suffix = fmt.Sprintf(" (copy %d)", n)
	}
	if len(base)+len(suffix) > maxNameLen {
		base = strings.TrimSpace(base[:maxNameLen-len(suffix)])
	}
	return base + suffix
}

// CreateFromTemplate seeds a create call from a named template; the spec
// supplies the name, geometry coordinates and any overrides.
func (s *RegistryService) CreateFromTemplate(ctx context.Context, templateID string, spec *domain.GeofenceSpec) (*domain.Geofence, error) {
	tpl, ok := templates[templateID]
	if !ok {
		return nil, domain.Invalid("template", "unknown template "+templateID)
	}

	merged := tpl
	mergeSpec(&merged, spec)
	return s.Create(ctx, &merged)
}

func (s *RegistryService) Templates() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	return names
}

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// Export renders the filtered listing as structured JSON or tabular CSV.
func (s *RegistryService) Export(ctx context.Context, filter *domain.GeofenceFilter, format ExportFormat) ([]byte, string, error) {
	normalizePages(&filter.Page, &filter.PageSize)
	geofences, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	switch format {
	case ExportJSON:
		body, err := json.MarshalIndent(geofences, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("marshal export: %w", err)
		}
		return body, "application/json", nil

	case ExportCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"id", "name", "type", "device_id", "user_id", "active",
			"alert_on_entry", "alert_on_exit", "tags", "created_at"})
		for _, g := range geofences {
			_ = w.Write([]string{
				g.ID, g.Name, string(g.Type), g.DeviceID, g.UserID,
				strconv.FormatBool(g.Active),
				strconv.FormatBool(g.AlertOnEntry),
				strconv.FormatBool(g.AlertOnExit),
				strings.Join(g.Tags, ";"),
				g.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", fmt.Errorf("write csv: %w", err)
		}
		return buf.Bytes(), "text/csv", nil

	default:
		return nil, "", domain.Invalid("format", "must be json or csv")
	}
}

func (s *RegistryService) checkNameConflict(ctx context.Context, g *domain.Geofence) error {
	taken, err := s.repo.NameExists(ctx, g.Name, g.DeviceID, g.UserID, g.ID)
	if err != nil {
		return fmt.Errorf("check name: %w", err)
	}
	if taken {
		return &domain.ConflictError{Name: g.Name}
	}
	return nil
}

func normalizePages(page, pageSize *int) {
	if *page < 1 {
		*page = defaultPage
	}
	if *pageSize < 1 {
		*pageSize = defaultPerPage
	}
	if *pageSize > maxPerPage {
		*pageSize = maxPerPage
	}
}
