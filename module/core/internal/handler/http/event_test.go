package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
)

type mockEvents struct {
	queryFn func(ctx context.Context, filter *domain.EventFilter) ([]domain.GeofenceEvent, error)
}

func (m *mockEvents) Query(ctx context.Context, filter *domain.EventFilter) ([]domain.GeofenceEvent, error) {
	return m.queryFn(ctx, filter)
}

func setupEventRouter(svc eventService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewEventHandler(svc)
	h.Register(r.Group(""))
	return r
}

func TestListEvents_FilterMapping(t *testing.T) {
	var got *domain.EventFilter
	svc := &mockEvents{
		queryFn: func(_ context.Context, filter *domain.EventFilter) ([]domain.GeofenceEvent, error) {
			got = filter
			return nil, nil
		},
	}
	r := setupEventRouter(svc)

	w := doJSON(r, "GET", "/events?device_id=dev-1&geofence_id=gf-1&type=entry&start=1715000000&end=1715100000&page=1&page_size=25", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if got.DeviceID != "dev-1" || got.GeofenceID != "gf-1" || got.Type != domain.TransitionEntry {
		t.Errorf("unexpected filter: %+v", got)
	}
	if !got.Start.Equal(time.Unix(1715000000, 0)) || !got.End.Equal(time.Unix(1715100000, 0)) {
		t.Errorf("unexpected time range: %v - %v", got.Start, got.End)
	}
	if got.PageSize != 25 {
		t.Errorf("expected page size 25, got %d", got.PageSize)
	}

	if body := w.Body.String(); body != "[]" {
		t.Errorf("expected [], got %s", body)
	}
}

func TestListEvents_RejectsUnknownType(t *testing.T) {
	r := setupEventRouter(&mockEvents{})

	w := doJSON(r, "GET", "/events?type=teleport", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListEvents_RejectsBadTimeRange(t *testing.T) {
	r := setupEventRouter(&mockEvents{})

	w := doJSON(r, "GET", "/events?start=yesterday", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
