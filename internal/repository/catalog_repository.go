package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/polyshare/polyshare-api/internal/models"
)

// CatalogRepository provides read access to the university hierarchy.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new instance of CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListUniversities returns all universities ordered by name.
func (r *CatalogRepository) ListUniversities(ctx context.Context) ([]models.University, error) {
	const query = `SELECT id, name, city, created_at FROM universities ORDER BY name ASC`
	var universities []models.University
	if err := r.db.SelectContext(ctx, &universities, query); err != nil {
		return nil, fmt.Errorf("list universities: %w", err)
	}
	return universities, nil
}

// ListFaculties returns faculties, optionally restricted to one university.
func (r *CatalogRepository) ListFaculties(ctx context.Context, universityID string) ([]models.Faculty, error) {
	query := `SELECT f.id, f.university_id, f.name, f.created_at, u.name AS university_name
        FROM faculties f
        JOIN universities u ON u.id = f.university_id`
	var args []interface{}
	if universityID != "" {
		query += " WHERE f.university_id = $1"
		args = append(args, universityID)
	}
	query += " ORDER BY f.name ASC"

	var faculties []models.Faculty
	if err := r.db.SelectContext(ctx, &faculties, query, args...); err != nil {
		return nil, fmt.Errorf("list faculties: %w", err)
	}
	return faculties, nil
}

// ListMajors returns majors, optionally restricted to one faculty.
func (r *CatalogRepository) ListMajors(ctx context.Context, facultyID string) ([]models.Major, error) {
	query := `SELECT m.id, m.faculty_id, m.name, m.created_at, f.name AS faculty_name
        FROM majors m
        JOIN faculties f ON f.id = m.faculty_id`
	var args []interface{}
	if facultyID != "" {
		query += " WHERE m.faculty_id = $1"
		args = append(args, facultyID)
	}
	query += " ORDER BY m.name ASC"

	var majors []models.Major
	if err := r.db.SelectContext(ctx, &majors, query, args...); err != nil {
		return nil, fmt.Errorf("list majors: %w", err)
	}
	return majors, nil
}

// ListCourses returns courses, optionally restricted to one major.
func (r *CatalogRepository) ListCourses(ctx context.Context, majorID string) ([]models.Course, error) {
	query := `SELECT c.id, c.major_id, c.name, c.code, c.semester, c.created_at, m.name AS major_name
        FROM courses c
        JOIN majors m ON m.id = c.major_id`
	var args []interface{}
	if majorID != "" {
		query += " WHERE c.major_id = $1"
		args = append(args, majorID)
	}
	query += " ORDER BY c.semester ASC, c.name ASC"

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// CourseExists checks that a course identifier is present.
func (r *CatalogRepository) CourseExists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM courses WHERE id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course: %w", err)
	}
	return true, nil
}

// UniversityExists checks that a university identifier is present.
func (r *CatalogRepository) UniversityExists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM universities WHERE id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check university: %w", err)
	}
	return true, nil
}
