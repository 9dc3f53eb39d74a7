package models

import "time"

// University is the root of the four-level academic hierarchy.
type University struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	City      string    `db:"city" json:"city"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Faculty belongs to a university.
type Faculty struct {
	ID             string    `db:"id" json:"id"`
	UniversityID   string    `db:"university_id" json:"university_id"`
	Name           string    `db:"name" json:"name"`
	UniversityName string    `db:"university_name" json:"university_name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Major belongs to a faculty.
type Major struct {
	ID          string    `db:"id" json:"id"`
	FacultyID   string    `db:"faculty_id" json:"faculty_id"`
	Name        string    `db:"name" json:"name"`
	FacultyName string    `db:"faculty_name" json:"faculty_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Course belongs to a major and is the attachment point for documents.
type Course struct {
	ID        string    `db:"id" json:"id"`
	MajorID   string    `db:"major_id" json:"major_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Semester  int       `db:"semester" json:"semester"`
	MajorName string    `db:"major_name" json:"major_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
