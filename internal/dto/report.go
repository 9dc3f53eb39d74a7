package dto

import "github.com/polyshare/polyshare-api/internal/models"

// ReportRequest asks for an asynchronous export job.
type ReportRequest struct {
	Type         models.ReportType   `json:"type" validate:"required,oneof=catalog karma"`
	Format       models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	UniversityID *string             `json:"university_id,omitempty" validate:"omitempty,uuid4"`
}

// ReportJobResponse acknowledges job creation.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress to polling clients.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
