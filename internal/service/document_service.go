package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/polyshare/polyshare-api/internal/dto"
	"github.com/polyshare/polyshare-api/internal/models"
	"github.com/polyshare/polyshare-api/internal/repository"
	appErrors "github.com/polyshare/polyshare-api/pkg/errors"
)

type documentRepository interface {
	FindByHash(ctx context.Context, hash string) (string, error)
	CreateWithKarma(ctx context.Context, doc *models.Document, reward int) error
	List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentSummary, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.DocumentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Document, error)
	RecordDownload(ctx context.Context, userID, documentID string, cost int) (*repository.DownloadResult, error)
	DeleteWithKarma(ctx context.Context, documentID string, uploaderID *string, penalty int) error
	ListByUploader(ctx context.Context, userID string) ([]models.OwnedDocument, error)
}

type documentUserRepository interface {
	KarmaPoints(ctx context.Context, id string) (int, error)
}

type documentCatalogRepository interface {
	CourseExists(ctx context.Context, id string) (bool, error)
}

type documentStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentSigner interface {
	Generate(refID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (refID, relPath string, expiresAt time.Time, err error)
}

// DocumentConfig carries upload constraints and the karma economy values.
type DocumentConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	UploadReward     int
	DownloadCost     int
	DeletionPenalty  int
}

// DocumentService implements uploads, listings, downloads and deletions.
type DocumentService struct {
	docs      documentRepository
	users     documentUserRepository
	catalog   documentCatalogRepository
	storage   documentStorage
	signer    documentSigner
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    DocumentConfig
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(
	docs documentRepository,
	users documentUserRepository,
	catalog documentCatalogRepository,
	storage documentStorage,
	signer documentSigner,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config DocumentConfig,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DocumentService{
		docs:      docs,
		users:     users,
		catalog:   catalog,
		storage:   storage,
		signer:    signer,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Upload stores a new document, fingerprints its content and rewards the uploader.
func (s *DocumentService) Upload(ctx context.Context, userID string, req dto.UploadDocumentRequest, content io.Reader, size int64, contentType string) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	if size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if s.config.MaxFileSizeBytes > 0 && size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only PDF files are accepted")
	}

	exists, err := s.catalog.CourseExists(ctx, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	// Fingerprint while streaming to disk so the file is read only once.
	hasher := sha256.New()
	relPath := fmt.Sprintf("documents/%s.pdf", uuid.NewString())
	if _, err := s.storage.SaveStream(relPath, io.TeeReader(content, hasher)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	fileHash := hex.EncodeToString(hasher.Sum(nil))

	if _, err := s.docs.FindByHash(ctx, fileHash); err == nil {
		_ = s.storage.Delete(relPath)
		s.metrics.RecordDuplicateRejected()
		return nil, appErrors.Clone(appErrors.ErrDuplicateContent, "identical document already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check content hash")
	}

	doc := &models.Document{
		Title:       req.Title,
		Description: req.Description,
		CourseID:    req.CourseID,
		UploadedBy:  &userID,
		FilePath:    relPath,
		FileSize:    size,
		FileHash:    fileHash,
		Status:      models.DocumentStatusApproved,
	}
	if err := s.docs.CreateWithKarma(ctx, doc, s.config.UploadReward); err != nil {
		_ = s.storage.Delete(relPath)
		if repository.IsUniqueViolation(err) {
			// A concurrent upload with the same content won the insert race.
			s.metrics.RecordDuplicateRejected()
			return nil, appErrors.Clone(appErrors.ErrDuplicateContent, "identical document already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}

	s.metrics.RecordUpload(s.config.UploadReward)
	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("user_id", userID),
		zap.Int64("file_size", size))
	return doc, nil
}

// List returns document summaries matching the filter with pagination info.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentSummary, *models.Pagination, error) {
	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return docs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetByID returns the full detail of one document.
func (s *DocumentService) GetByID(ctx context.Context, id string) (*models.DocumentDetail, error) {
	detail, err := s.docs.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return detail, nil
}

// RecordDownload debits the downloader, stores the record and returns a signed URL.
// Every call debits karma and increments the counter, repeat downloads included.
func (s *DocumentService) RecordDownload(ctx context.Context, userID, documentID string) (*dto.RecordDownloadResponse, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	karma, err := s.users.KarmaPoints(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read karma balance")
	}
	if karma < s.config.DownloadCost {
		return nil, appErrors.Clone(appErrors.ErrInsufficientKarma, "not enough karma points to download")
	}

	result, err := s.docs.RecordDownload(ctx, userID, documentID, s.config.DownloadCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record download")
	}

	token, _, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	s.metrics.RecordDownload(s.config.DownloadCost)
	return &dto.RecordDownloadResponse{
		DownloadURL:    "/api/documents/file/" + token,
		DownloadsCount: result.DownloadsCount,
		KarmaRemaining: result.KarmaRemaining,
	}, nil
}

// OpenSigned validates a signed token and opens the referenced file.
func (s *DocumentService) OpenSigned(ctx context.Context, token string) (*os.File, *models.Document, error) {
	docID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match stored file")
	}

	file, err := s.storage.Open(doc.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return file, doc, nil
}

// Delete removes a document. Only the uploader or an admin may delete, and the
// uploader pays the deletion penalty clamped at zero.
func (s *DocumentService) Delete(ctx context.Context, userID string, role models.UserRole, documentID string) error {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	isOwner := doc.UploadedBy != nil && *doc.UploadedBy == userID
	if !isOwner && role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader or an admin may delete a document")
	}

	if err := s.docs.DeleteWithKarma(ctx, documentID, doc.UploadedBy, s.config.DeletionPenalty); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}

	// The record is gone; a failed file removal only leaks disk space.
	if err := s.storage.Delete(doc.FilePath); err != nil {
		s.logger.Warn("failed to remove stored file", zap.String("path", doc.FilePath), zap.Error(err))
	}

	s.metrics.RecordDeletion()
	s.logger.Info("document deleted",
		zap.String("document_id", documentID),
		zap.String("deleted_by", userID))
	return nil
}

// ListMine returns the documents owned by the authenticated user.
func (s *DocumentService) ListMine(ctx context.Context, userID string) ([]models.OwnedDocument, error) {
	docs, err := s.docs.ListByUploader(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list own documents")
	}
	return docs, nil
}

func (s *DocumentService) mimeAllowed(contentType string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if contentType == allowed {
			return true
		}
	}
	return false
}
