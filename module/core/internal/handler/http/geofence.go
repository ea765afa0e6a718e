package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
	"github.com/Timiochukwu/iothub-geofence/module/core/service"
)

type registryService interface {
	Create(ctx context.Context, spec *domain.GeofenceSpec) (*domain.Geofence, error)
	Update(ctx context.Context, id string, spec *domain.GeofenceSpec) (*domain.Geofence, error)
	Toggle(ctx context.Context, id string, active bool) (*domain.Geofence, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Geofence, error)
	List(ctx context.Context, filter *domain.GeofenceFilter) ([]domain.Geofence, error)
	BulkSetActive(ctx context.Context, ids []string, active bool) (int, error)
	BulkDelete(ctx context.Context, ids []string) (int, error)
	Duplicate(ctx context.Context, id string) (*domain.Geofence, error)
	CreateFromTemplate(ctx context.Context, templateID string, spec *domain.GeofenceSpec) (*domain.Geofence, error)
	Templates() []string
	Export(ctx context.Context, filter *domain.GeofenceFilter, format service.ExportFormat) ([]byte, string, error)
}

type GeofenceHandler struct {
	registry registryService
}

func NewGeofenceHandler(registry registryService) *GeofenceHandler {
	return &GeofenceHandler{registry: registry}
}

func (h *GeofenceHandler) Register(r *gin.RouterGroup) {
	r.POST("/geofences", h.Create)
	r.GET("/geofences", h.List)
	r.GET("/geofences/export", h.Export)
	r.GET("/geofences/templates", h.Templates)
	r.POST("/geofences/templates/:template", h.CreateFromTemplate)
	r.POST("/geofences/bulk/activate", h.BulkActivate)
	r.POST("/geofences/bulk/deactivate", h.BulkDeactivate)
	r.POST("/geofences/bulk/delete", h.BulkDelete)
	r.GET("/geofences/:id", h.Get)
	r.PUT("/geofences/:id", h.Update)
	r.DELETE("/geofences/:id", h.Delete)
	r.PATCH("/geofences/:id/toggle", h.Toggle)
	r.POST("/geofences/:id/duplicate", h.Duplicate)
}

// geofenceRequest mirrors domain.GeofenceSpec on the wire. Pointer fields
// keep "absent" distinguishable from zero on partial updates.
type geofenceRequest struct {
	Name         *string             `json:"name"`
	Type         *string             `json:"type"`
	Center       *domain.Coordinate  `json:"center"`
	RadiusMeters *float64            `json:"radius_meters"`
	Vertices     []domain.Coordinate `json:"vertices"`
	DeviceID     *string             `json:"device_id"`
	UserID       *string             `json:"user_id"`
	AlertOnEntry *bool               `json:"alert_on_entry"`
	AlertOnExit  *bool               `json:"alert_on_exit"`
	Description  *string             `json:"description"`
	Color        *string             `json:"color"`
	Tags         []string            `json:"tags"`
}

func (req *geofenceRequest) toSpec() *domain.GeofenceSpec {
	spec := &domain.GeofenceSpec{
		Name:         req.Name,
		Center:       req.Center,
		RadiusMeters: req.RadiusMeters,
		Vertices:     req.Vertices,
		DeviceID:     req.DeviceID,
		UserID:       req.UserID,
		AlertOnEntry: req.AlertOnEntry,
		AlertOnExit:  req.AlertOnExit,
		Description:  req.Description,
		Color:        req.Color,
		Tags:         req.Tags,
	}
	if req.Type != nil {
		t := domain.ShapeType(*req.Type)
		spec.Type = &t
	}
	return spec
}

func (h *GeofenceHandler) Create(c *gin.Context) {
	var req geofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	g, err := h.registry.Create(c.Request.Context(), req.toSpec())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *GeofenceHandler) Update(c *gin.Context) {
	var req geofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	g, err := h.registry.Update(c.Request.Context(), c.Param("id"), req.toSpec())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GeofenceHandler) Toggle(c *gin.Context) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active is required"})
		return
	}

	g, err := h.registry.Toggle(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GeofenceHandler) Delete(c *gin.Context) {
	if err := h.registry.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GeofenceHandler) Get(c *gin.Context) {
	g, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GeofenceHandler) List(c *gin.Context) {
	filter, err := geofenceFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	geofences, err := h.registry.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if geofences == nil {
		geofences = []domain.Geofence{}
	}
	c.JSON(http.StatusOK, geofences)
}

type bulkRequest struct {
	IDs []string `json:"ids"`
}

func (h *GeofenceHandler) BulkActivate(c *gin.Context)   { h.bulkToggle(c, true) }
func (h *GeofenceHandler) BulkDeactivate(c *gin.Context) { h.bulkToggle(c, false) }

func (h *GeofenceHandler) bulkToggle(c *gin.Context, active bool) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids is required"})
		return
	}

	changed, err := h.registry.BulkSetActive(c.Request.Context(), req.IDs, active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": changed})
}

func (h *GeofenceHandler) BulkDelete(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids is required"})
		return
	}

	deleted, err := h.registry.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": deleted})
}

func (h *GeofenceHandler) Duplicate(c *gin.Context) {
	g, err := h.registry.Duplicate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *GeofenceHandler) Templates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": h.registry.Templates()})
}

func (h *GeofenceHandler) CreateFromTemplate(c *gin.Context) {
	var req geofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	g, err := h.registry.CreateFromTemplate(c.Request.Context(), c.Param("template"), req.toSpec())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *GeofenceHandler) Export(c *gin.Context) {
	filter, err := geofenceFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "json"))
	body, contentType, err := h.registry.Export(c.Request.Context(), filter, format)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, body)
}

func geofenceFilterFromQuery(c *gin.Context) (*domain.GeofenceFilter, error) {
	filter := &domain.GeofenceFilter{
		DeviceID: c.Query("device_id"),
		UserID:   c.Query("user_id"),
		Tag:      c.Query("tag"),
		Search:   c.Query("search"),
		SortBy:   domain.SortField(c.Query("sort_by")),
	}

	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid active parameter")
		}
		filter.Active = &active
	}

	var err error
	if filter.Page, err = intQuery(c, "page", 1); err != nil {
		return nil, errors.New("invalid page parameter")
	}
	if filter.PageSize, err = intQuery(c, "page_size", 0); err != nil {
		return nil, errors.New("invalid page_size parameter")
	}
	return filter, nil
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
