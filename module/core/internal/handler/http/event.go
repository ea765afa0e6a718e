package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
)

type eventService interface {
	Query(ctx context.Context, filter *domain.EventFilter) ([]domain.GeofenceEvent, error)
}

type EventHandler struct {
	events eventService
}

func NewEventHandler(events eventService) *EventHandler {
	return &EventHandler{events: events}
}

func (h *EventHandler) Register(r *gin.RouterGroup) {
	r.GET("/events", h.List)
}

func (h *EventHandler) List(c *gin.Context) {
	filter := &domain.EventFilter{
		DeviceID:   c.Query("device_id"),
		GeofenceID: c.Query("geofence_id"),
		Type:       domain.TransitionType(c.Query("type")),
	}

	if filter.Type != "" && filter.Type != domain.TransitionEntry && filter.Type != domain.TransitionExit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be entry or exit"})
		return
	}

	var err error
	if filter.Start, err = timeQuery(c, "start"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start parameter"})
		return
	}
	if filter.End, err = timeQuery(c, "end"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end parameter"})
		return
	}
	if filter.Page, err = intQuery(c, "page", 1); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page parameter"})
		return
	}
	if filter.PageSize, err = intQuery(c, "page_size", 0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size parameter"})
		return
	}

	events, err := h.events.Query(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if events == nil {
		events = []domain.GeofenceEvent{}
	}
	c.JSON(http.StatusOK, events)
}

func timeQuery(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	unix, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}
