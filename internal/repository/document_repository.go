package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/polyshare/polyshare-api/internal/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return false
}

// DocumentRepository manages persistence for documents, downloads and karma.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new instance of DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByHash returns the identifier of a document with the given content hash.
func (r *DocumentRepository) FindByHash(ctx context.Context, hash string) (string, error) {
	const query = `SELECT id FROM documents WHERE file_hash = $1 LIMIT 1`
	var id string
	if err := r.db.GetContext(ctx, &id, query, hash); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("find document by hash: %w", err)
	}
	return id, nil
}

// CreateWithKarma inserts a document and rewards the uploader in one transaction.
func (r *DocumentRepository) CreateWithKarma(ctx context.Context, doc *models.Document, reward int) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upload transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO documents (id, title, description, course_id, uploaded_by, file_path, file_size, file_hash, downloads_count, status, created_at)
        VALUES (:id, :title, :description, :course_id, :uploaded_by, :file_path, :file_size, :file_hash, :downloads_count, :status, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, doc); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	const karmaQuery = `UPDATE users SET karma_points = karma_points + $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, karmaQuery, doc.UploadedBy, reward, time.Now().UTC()); err != nil {
		return fmt.Errorf("reward uploader: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit upload transaction: %w", err)
	}
	return nil
}

// List returns document summaries matching the conjunctive filter with total count.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentSummary, int, error) {
	base := `FROM documents d
        JOIN courses c ON c.id = d.course_id
        JOIN majors m ON m.id = c.major_id
        JOIN faculties f ON f.id = m.faculty_id
        JOIN universities un ON un.id = f.university_id
        LEFT JOIN users u ON u.id = d.uploaded_by`
	conditions := []string{"d.status = 'approved'"}
	var args []interface{}

	if filter.UniversityID != "" {
		conditions = append(conditions, fmt.Sprintf("un.id = $%d", len(args)+1))
		args = append(args, filter.UniversityID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("f.id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.MajorID != "" {
		conditions = append(conditions, fmt.Sprintf("m.id = $%d", len(args)+1))
		args = append(args, filter.MajorID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("c.id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(d.title ILIKE $%d OR d.description ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT d.id, d.title, d.description, d.file_size, d.downloads_count, d.created_at,
        c.name AS course_name, c.code AS course_code, c.semester,
        m.name AS major_name, f.name AS faculty_name, un.name AS university_name,
        u.username AS uploader_username
        %s ORDER BY d.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var docs []models.DocumentSummary
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return docs, total, nil
}

// FindDetailByID returns a document with its full catalog hierarchy.
func (r *DocumentRepository) FindDetailByID(ctx context.Context, id string) (*models.DocumentDetail, error) {
	const query = `SELECT d.id, d.title, d.description, d.course_id, d.uploaded_by, d.file_path, d.file_size, d.file_hash, d.downloads_count, d.status, d.created_at,
        c.name AS course_name, c.code AS course_code, c.semester,
        m.id AS major_id, m.name AS major_name,
        f.id AS faculty_id, f.name AS faculty_name,
        un.id AS university_id, un.name AS university_name, un.city AS university_city,
        u.username AS uploader_username, u.karma_points AS uploader_karma
        FROM documents d
        JOIN courses c ON c.id = d.course_id
        JOIN majors m ON m.id = c.major_id
        JOIN faculties f ON f.id = m.faculty_id
        JOIN universities un ON un.id = f.university_id
        LEFT JOIN users u ON u.id = d.uploaded_by
        WHERE d.id = $1 LIMIT 1`
	var detail models.DocumentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document detail: %w", err)
	}
	return &detail, nil
}

// FindByID returns the bare document row.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, title, description, course_id, uploaded_by, file_path, file_size, file_hash, downloads_count, status, created_at FROM documents WHERE id = $1 LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document by id: %w", err)
	}
	return &doc, nil
}

// DownloadResult reports the state after a recorded download.
type DownloadResult struct {
	DownloadsCount int
	KarmaRemaining int
}

// RecordDownload stores the download record, increments the document counter
// and debits the downloader in one transaction. Repeat downloads keep a single
// record per (user, document) but still increment the counter and debit karma.
func (r *DocumentRepository) RecordDownload(ctx context.Context, userID, documentID string, cost int) (*DownloadResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin download transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const recordQuery = `INSERT INTO downloads (user_id, document_id, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, document_id) DO NOTHING`
	if _, err = tx.ExecContext(ctx, recordQuery, userID, documentID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert download record: %w", err)
	}

	const counterQuery = `UPDATE documents SET downloads_count = downloads_count + 1 WHERE id = $1 RETURNING downloads_count`
	var result DownloadResult
	if err = tx.GetContext(ctx, &result.DownloadsCount, counterQuery, documentID); err != nil {
		return nil, fmt.Errorf("increment downloads count: %w", err)
	}

	const debitQuery = `UPDATE users SET karma_points = karma_points - $2, updated_at = $3 WHERE id = $1 RETURNING karma_points`
	if err = tx.GetContext(ctx, &result.KarmaRemaining, debitQuery, userID, cost, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("debit downloader: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit download transaction: %w", err)
	}
	return &result, nil
}

// DeleteWithKarma removes a document and applies the deletion penalty to its
// uploader, clamped at zero, in one transaction.
func (r *DocumentRepository) DeleteWithKarma(ctx context.Context, documentID string, uploaderID *string, penalty int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const deleteQuery = `DELETE FROM documents WHERE id = $1`
	if _, err = tx.ExecContext(ctx, deleteQuery, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if uploaderID != nil {
		const penaltyQuery = `UPDATE users SET karma_points = GREATEST(karma_points - $2, 0), updated_at = $3 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, penaltyQuery, *uploaderID, penalty, time.Now().UTC()); err != nil {
			return fmt.Errorf("apply deletion penalty: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete transaction: %w", err)
	}
	return nil
}

// ListByUploader returns all documents owned by a user, newest first.
func (r *DocumentRepository) ListByUploader(ctx context.Context, userID string) ([]models.OwnedDocument, error) {
	const query = `SELECT d.id, d.title, d.description, d.course_id, d.uploaded_by, d.file_path, d.file_size, d.file_hash, d.downloads_count, d.status, d.created_at,
        c.name AS course_name, c.code AS course_code
        FROM documents d
        JOIN courses c ON c.id = d.course_id
        WHERE d.uploaded_by = $1
        ORDER BY d.created_at DESC`
	var docs []models.OwnedDocument
	if err := r.db.SelectContext(ctx, &docs, query, userID); err != nil {
		return nil, fmt.Errorf("list documents by uploader: %w", err)
	}
	return docs, nil
}

// CatalogEntries returns flattened document rows for report exports, optionally
// restricted to one university.
func (r *DocumentRepository) CatalogEntries(ctx context.Context, universityID *string) ([]models.CatalogEntry, error) {
	query := `SELECT d.title, c.code AS course_code, m.name AS major_name, un.name AS university_name, d.downloads_count, d.file_size
        FROM documents d
        JOIN courses c ON c.id = d.course_id
        JOIN majors m ON m.id = c.major_id
        JOIN faculties f ON f.id = m.faculty_id
        JOIN universities un ON un.id = f.university_id`
	var args []interface{}
	if universityID != nil && *universityID != "" {
		query += " WHERE un.id = $1"
		args = append(args, *universityID)
	}
	query += " ORDER BY un.name ASC, c.code ASC, d.title ASC"

	var entries []models.CatalogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	return entries, nil
}

// HasDownloaded reports whether the user already holds a download record.
func (r *DocumentRepository) HasDownloaded(ctx context.Context, userID, documentID string) (bool, error) {
	const query = `SELECT 1 FROM downloads WHERE user_id = $1 AND document_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, documentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check download record: %w", err)
	}
	return true, nil
}
