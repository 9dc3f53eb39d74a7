package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyshare/polyshare-api/internal/dto"
	"github.com/polyshare/polyshare-api/internal/models"
	"github.com/polyshare/polyshare-api/internal/service"
	appErrors "github.com/polyshare/polyshare-api/pkg/errors"
	"github.com/polyshare/polyshare-api/pkg/response"
)

type reportServiceMock struct {
	createResp  *dto.ReportJobResponse
	createErr   error
	statusResp  *dto.ReportStatusResponse
	statusErr   error
	downloadErr error
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req dto.ReportRequest, actorID string) (*dto.ReportJobResponse, error) {
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id string) (*dto.ReportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return nil, m.downloadErr
}

func TestCreateReportAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{
		createResp: &dto.ReportJobResponse{ID: "job1", Status: models.ReportStatusQueued},
	})

	payload, _ := json.Marshal(dto.ReportRequest{Type: "catalog", Format: "csv"})
	c, w := newGinContext(http.MethodPost, "/reports", payload)
	asUser(c, "admin1", models.RoleAdmin)

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
}

func TestCreateReportRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	payload, _ := json.Marshal(dto.ReportRequest{Type: "catalog", Format: "csv"})
	c, w := newGinContext(http.MethodPost, "/reports", payload)

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateReportRejectsInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodPost, "/reports", []byte("{"))
	asUser(c, "admin1", models.RoleAdmin)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{statusErr: appErrors.ErrNotFound})

	c, w := newGinContext(http.MethodGet, "/reports/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	asUser(c, "admin1", models.RoleAdmin)

	handler.Status(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportStatusReturnsProgress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{
		statusResp: &dto.ReportStatusResponse{ID: "job1", Status: models.ReportStatusProcessing, Progress: 40},
	})

	c, w := newGinContext(http.MethodGet, "/reports/job1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job1"}}
	asUser(c, "admin1", models.RoleAdmin)

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "job1", data["id"])
}

func TestExportRejectsEmptyToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reports/export/", nil)
	c.Params = gin.Params{{Key: "token", Value: "  "}}

	handler.Export(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportPropagatesForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{downloadErr: appErrors.ErrForbidden})

	c, w := newGinContext(http.MethodGet, "/reports/export/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Export(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
