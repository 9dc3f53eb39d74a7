package models

import "time"

// DocumentStatus captures the moderation state of a document.
type DocumentStatus string

const (
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusPending  DocumentStatus = "pending"
)

// Document represents one shared document row.
type Document struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	CourseID       string         `db:"course_id" json:"course_id"`
	UploadedBy     *string        `db:"uploaded_by" json:"uploaded_by,omitempty"`
	FilePath       string         `db:"file_path" json:"file_path"`
	FileSize       int64          `db:"file_size" json:"file_size"`
	FileHash       string         `db:"file_hash" json:"file_hash"`
	DownloadsCount int            `db:"downloads_count" json:"downloads_count"`
	Status         DocumentStatus `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// DocumentSummary is a list row joined with catalog and uploader names.
type DocumentSummary struct {
	ID               string    `db:"id" json:"id"`
	Title            string    `db:"title" json:"title"`
	Description      string    `db:"description" json:"description"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	DownloadsCount   int       `db:"downloads_count" json:"downloads_count"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	CourseName       string    `db:"course_name" json:"course_name"`
	CourseCode       string    `db:"course_code" json:"course_code"`
	Semester         int       `db:"semester" json:"semester"`
	MajorName        string    `db:"major_name" json:"major_name"`
	FacultyName      string    `db:"faculty_name" json:"faculty_name"`
	UniversityName   string    `db:"university_name" json:"university_name"`
	UploaderUsername *string   `db:"uploader_username" json:"uploader_username,omitempty"`
}

// DocumentDetail enriches a document with the full denormalized hierarchy.
type DocumentDetail struct {
	Document
	CourseName       string  `db:"course_name" json:"course_name"`
	CourseCode       string  `db:"course_code" json:"course_code"`
	Semester         int     `db:"semester" json:"semester"`
	MajorID          string  `db:"major_id" json:"major_id"`
	MajorName        string  `db:"major_name" json:"major_name"`
	FacultyID        string  `db:"faculty_id" json:"faculty_id"`
	FacultyName      string  `db:"faculty_name" json:"faculty_name"`
	UniversityID     string  `db:"university_id" json:"university_id"`
	UniversityName   string  `db:"university_name" json:"university_name"`
	UniversityCity   string  `db:"university_city" json:"university_city"`
	UploaderUsername *string `db:"uploader_username" json:"uploader_username,omitempty"`
	UploaderKarma    *int    `db:"uploader_karma" json:"uploader_karma,omitempty"`
}

// OwnedDocument is a document row joined with its course for owner listings.
type OwnedDocument struct {
	Document
	CourseName string `db:"course_name" json:"course_name"`
	CourseCode string `db:"course_code" json:"course_code"`
}

// DocumentFilter captures the conjunctive predicates for catalog listings.
// Empty fields are not applied.
type DocumentFilter struct {
	UniversityID string
	FacultyID    string
	MajorID      string
	CourseID     string
	Search       string
	Page         int
	PageSize     int
}

// Download represents a unique (user, document) download record.
type Download struct {
	UserID     string    `db:"user_id" json:"user_id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CatalogEntry is a flattened document row used by report exports.
type CatalogEntry struct {
	Title          string `db:"title" json:"title"`
	CourseCode     string `db:"course_code" json:"course_code"`
	MajorName      string `db:"major_name" json:"major_name"`
	UniversityName string `db:"university_name" json:"university_name"`
	DownloadsCount int    `db:"downloads_count" json:"downloads_count"`
	FileSize       int64  `db:"file_size" json:"file_size"`
}
