package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polyshare/polyshare-api/internal/middleware"
	"github.com/polyshare/polyshare-api/internal/models"
	"github.com/polyshare/polyshare-api/internal/service"
	"github.com/polyshare/polyshare-api/pkg/response"
)

type catalogService interface {
	Universities(ctx context.Context) ([]models.University, bool, error)
	Faculties(ctx context.Context, universityID string) ([]models.Faculty, bool, error)
	Majors(ctx context.Context, facultyID string) ([]models.Major, bool, error)
	Courses(ctx context.Context, majorID string) ([]models.Course, bool, error)
}

// CatalogHandler serves the university hierarchy endpoints.
type CatalogHandler struct {
	service catalogService
	metrics *service.MetricsService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(service catalogService, metrics *service.MetricsService) *CatalogHandler {
	return &CatalogHandler{service: service, metrics: metrics}
}

// Universities godoc
// @Summary List universities
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metadata/universities [get]
func (h *CatalogHandler) Universities(c *gin.Context) {
	universities, hit, err := h.service.Universities(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(c, hit)
	response.JSON(c, http.StatusOK, universities, nil, middleware.ExtractMeta(c))
}

// Faculties godoc
// @Summary List faculties
// @Tags Catalog
// @Produce json
// @Param university_id query string false "University filter"
// @Success 200 {object} response.Envelope
// @Router /metadata/faculties [get]
func (h *CatalogHandler) Faculties(c *gin.Context) {
	faculties, hit, err := h.service.Faculties(c.Request.Context(), c.Query("university_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(c, hit)
	response.JSON(c, http.StatusOK, faculties, nil, middleware.ExtractMeta(c))
}

// Majors godoc
// @Summary List majors
// @Tags Catalog
// @Produce json
// @Param faculty_id query string false "Faculty filter"
// @Success 200 {object} response.Envelope
// @Router /metadata/majors [get]
func (h *CatalogHandler) Majors(c *gin.Context) {
	majors, hit, err := h.service.Majors(c.Request.Context(), c.Query("faculty_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(c, hit)
	response.JSON(c, http.StatusOK, majors, nil, middleware.ExtractMeta(c))
}

// Courses godoc
// @Summary List courses
// @Tags Catalog
// @Produce json
// @Param major_id query string false "Major filter"
// @Success 200 {object} response.Envelope
// @Router /metadata/courses [get]
func (h *CatalogHandler) Courses(c *gin.Context) {
	courses, hit, err := h.service.Courses(c.Request.Context(), c.Query("major_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(c, hit)
	response.JSON(c, http.StatusOK, courses, nil, middleware.ExtractMeta(c))
}

func (h *CatalogHandler) observe(c *gin.Context, hit bool) {
	middleware.SetCacheHit(c, hit)
	h.metrics.RecordCacheOperation(hit)
}
