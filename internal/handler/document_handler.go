package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polyshare/polyshare-api/internal/dto"
	"github.com/polyshare/polyshare-api/internal/models"
	appErrors "github.com/polyshare/polyshare-api/pkg/errors"
	"github.com/polyshare/polyshare-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, userID string, req dto.UploadDocumentRequest, content io.Reader, size int64, contentType string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentSummary, *models.Pagination, error)
	GetByID(ctx context.Context, id string) (*models.DocumentDetail, error)
	RecordDownload(ctx context.Context, userID, documentID string) (*dto.RecordDownloadResponse, error)
	OpenSigned(ctx context.Context, token string) (*os.File, *models.Document, error)
	Delete(ctx context.Context, userID string, role models.UserRole, documentID string) error
	ListMine(ctx context.Context, userID string) ([]models.OwnedDocument, error)
}

// DocumentHandler manages document HTTP endpoints.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload godoc
// @Summary Upload a PDF document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param course_id formData string true "Course"
// @Param file formData file true "PDF document"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upload payload"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	doc, err := h.service.Upload(c.Request.Context(), claims.UserID, req, src, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, doc, nil)
}

// List godoc
// @Summary List documents with catalog filters
// @Tags Documents
// @Produce json
// @Param university_id query string false "University filter"
// @Param faculty_id query string false "Faculty filter"
// @Param major_id query string false "Major filter"
// @Param course_id query string false "Course filter"
// @Param search query string false "Title or description search"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	filter := models.DocumentFilter{
		UniversityID: strings.TrimSpace(c.Query("university_id")),
		FacultyID:    strings.TrimSpace(c.Query("faculty_id")),
		MajorID:      strings.TrimSpace(c.Query("major_id")),
		CourseID:     strings.TrimSpace(c.Query("course_id")),
		Search:       strings.TrimSpace(c.Query("search")),
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.PageSize = limit
	}

	docs, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Get godoc
// @Summary Get document detail
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	detail, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Download godoc
// @Summary Record a download and obtain a signed file URL
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/download [post]
func (h *DocumentHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.RecordDownload(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// File godoc
// @Summary Stream a document via signed token
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/file/{token} [get]
func (h *DocumentHandler) File(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, doc, err := h.service.OpenSigned(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.pdf\"", sanitizeAttachmentName(doc.Title)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, doc.FileSize, "application/pdf", file, nil)
}

// Delete godoc
// @Summary Delete a document
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims.UserID, claims.Role, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Mine godoc
// @Summary List the authenticated user's uploads
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /documents/my [get]
func (h *DocumentHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	docs, err := h.service.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

func sanitizeAttachmentName(raw string) string {
	replacer := strings.NewReplacer("\"", "", "\\", "", "/", "-", "\r", "", "\n", "")
	name := strings.TrimSpace(replacer.Replace(raw))
	if name == "" {
		return "document"
	}
	return name
}
