package dto

// UploadDocumentRequest carries the multipart form fields of an upload.
type UploadDocumentRequest struct {
	Title       string `form:"title" validate:"required,min=3,max=255"`
	Description string `form:"description" validate:"omitempty,max=2000"`
	CourseID    string `form:"course_id" validate:"required,uuid4"`
}

// ListDocumentsQuery captures the optional catalog filters.
type ListDocumentsQuery struct {
	UniversityID string `form:"university_id"`
	FacultyID    string `form:"faculty_id"`
	MajorID      string `form:"major_id"`
	CourseID     string `form:"course_id"`
	Search       string `form:"search"`
	Page         int    `form:"page"`
	Limit        int    `form:"limit"`
}

// RecordDownloadResponse acknowledges a recorded download.
type RecordDownloadResponse struct {
	DownloadURL    string `json:"download_url"`
	DownloadsCount int    `json:"downloads_count"`
	KarmaRemaining int    `json:"karma_remaining"`
}
