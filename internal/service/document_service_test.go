package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyshare/polyshare-api/internal/dto"
	"github.com/polyshare/polyshare-api/internal/models"
	"github.com/polyshare/polyshare-api/internal/repository"
	appErrors "github.com/polyshare/polyshare-api/pkg/errors"
)

type stubDocRepo struct {
	hashHit        string
	created        *models.Document
	createErr      error
	createdReward  int
	docByID        *models.Document
	detail         *models.DocumentDetail
	downloadResult *repository.DownloadResult
	downloadCost   int
	deleted        bool
	deletedPenalty int
	owned          []models.OwnedDocument
	listDocs       []models.DocumentSummary
	listTotal      int
}

func (s *stubDocRepo) FindByHash(ctx context.Context, hash string) (string, error) {
	if s.hashHit != "" {
		return s.hashHit, nil
	}
	return "", sql.ErrNoRows
}

func (s *stubDocRepo) CreateWithKarma(ctx context.Context, doc *models.Document, reward int) error {
	if s.createErr != nil {
		return s.createErr
	}
	doc.ID = "doc1"
	s.created = doc
	s.createdReward = reward
	return nil
}

func (s *stubDocRepo) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentSummary, int, error) {
	return s.listDocs, s.listTotal, nil
}

func (s *stubDocRepo) FindDetailByID(ctx context.Context, id string) (*models.DocumentDetail, error) {
	if s.detail == nil {
		return nil, sql.ErrNoRows
	}
	return s.detail, nil
}

func (s *stubDocRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	if s.docByID == nil {
		return nil, sql.ErrNoRows
	}
	return s.docByID, nil
}

func (s *stubDocRepo) RecordDownload(ctx context.Context, userID, documentID string, cost int) (*repository.DownloadResult, error) {
	s.downloadCost = cost
	return s.downloadResult, nil
}

func (s *stubDocRepo) DeleteWithKarma(ctx context.Context, documentID string, uploaderID *string, penalty int) error {
	s.deleted = true
	s.deletedPenalty = penalty
	return nil
}

func (s *stubDocRepo) ListByUploader(ctx context.Context, userID string) ([]models.OwnedDocument, error) {
	return s.owned, nil
}

type stubKarmaReader struct {
	karma int
}

func (s *stubKarmaReader) KarmaPoints(ctx context.Context, id string) (int, error) {
	return s.karma, nil
}

type stubCourseChecker struct {
	exists bool
}

func (s *stubCourseChecker) CourseExists(ctx context.Context, id string) (bool, error) {
	return s.exists, nil
}

type stubStorage struct {
	saved     map[string][]byte
	deleted   []string
	deleteErr error
}

func newStubStorage() *stubStorage {
	return &stubStorage{saved: make(map[string][]byte)}
}

func (s *stubStorage) SaveStream(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *stubStorage) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (s *stubStorage) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return s.deleteErr
}

type stubSigner struct{}

func (s *stubSigner) Generate(refID, relPath string) (string, time.Time, error) {
	return refID + ".token", time.Now().Add(time.Hour), nil
}

func (s *stubSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	return "doc1", "documents/doc1.pdf", time.Now().Add(time.Hour), nil
}

func defaultConfig() DocumentConfig {
	return DocumentConfig{
		MaxFileSizeBytes: 20 * 1024 * 1024,
		AllowedMIMEs:     []string{"application/pdf"},
		UploadReward:     10,
		DownloadCost:     1,
		DeletionPenalty:  10,
	}
}

func newDocService(repo *stubDocRepo, users *stubKarmaReader, courses *stubCourseChecker, store *stubStorage) *DocumentService {
	return NewDocumentService(repo, users, courses, store, &stubSigner{}, nil, validator.New(), zap.NewNop(), defaultConfig())
}

func validUpload() dto.UploadDocumentRequest {
	return dto.UploadDocumentRequest{
		Title:    "Calculus Summary",
		CourseID: "6a1f8e7c-3b2d-4c5e-9f0a-1b2c3d4e5f60",
	}
}

func TestUploadRewardsUploaderAndStoresFile(t *testing.T) {
	repo := &stubDocRepo{}
	store := newStubStorage()
	svc := newDocService(repo, &stubKarmaReader{}, &stubCourseChecker{exists: true}, store)

	content := []byte("%PDF-1.4 fake body")
	doc, err := svc.Upload(context.Background(), "u1", validUpload(), bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, 10, repo.createdReward)
	assert.Len(t, store.saved, 1)
	assert.Len(t, doc.FileHash, 64)
	assert.Equal(t, models.DocumentStatusApproved, doc.Status)
	require.NotNil(t, doc.UploadedBy)
	assert.Equal(t, "u1", *doc.UploadedBy)
}

func TestUploadRejectsDuplicateContentAndRemovesFile(t *testing.T) {
	repo := &stubDocRepo{hashHit: "existing"}
	store := newStubStorage()
	svc := newDocService(repo, &stubKarmaReader{}, &stubCourseChecker{exists: true}, store)

	content := []byte("%PDF-1.4 duplicate body")
	_, err := svc.Upload(context.Background(), "u1", validUpload(), bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrDuplicateContent.Code, appErr.Code)
	assert.NotEmpty(t, store.deleted)
	assert.Nil(t, repo.created)
}

func TestUploadDuplicateRaceMapsUniqueViolation(t *testing.T) {
	repo := &stubDocRepo{createErr: &pq.Error{Code: "23505", Constraint: "documents_file_hash_key"}}
	store := newStubStorage()
	svc := newDocService(repo, &stubKarmaReader{}, &stubCourseChecker{exists: true}, store)

	content := []byte("%PDF-1.4 racing body")
	_, err := svc.Upload(context.Background(), "u1", validUpload(), bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrDuplicateContent.Code, appErr.Code)
	assert.NotEmpty(t, store.deleted)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	svc := newDocService(&stubDocRepo{}, &stubKarmaReader{}, &stubCourseChecker{exists: true}, newStubStorage())

	content := []byte("plain text")
	_, err := svc.Upload(context.Background(), "u1", validUpload(), bytes.NewReader(content), int64(len(content)), "text/plain")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	svc := newDocService(&stubDocRepo{}, &stubKarmaReader{}, &stubCourseChecker{exists: true}, newStubStorage())

	_, err := svc.Upload(context.Background(), "u1", validUpload(), bytes.NewReader(nil), 21*1024*1024, "application/pdf")
	require.Error(t, err)
}

func TestUploadRejectsUnknownCourse(t *testing.T) {
	svc := newDocService(&stubDocRepo{}, &stubKarmaReader{}, &stubCourseChecker{exists: false}, newStubStorage())

	content := []byte("%PDF-1.4")
	_, err := svc.Upload(context.Background(), "u1", validUpload(), bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestRecordDownloadEnforcesKarmaGate(t *testing.T) {
	repo := &stubDocRepo{docByID: &models.Document{ID: "doc1", FilePath: "documents/doc1.pdf"}}
	svc := newDocService(repo, &stubKarmaReader{karma: 0}, &stubCourseChecker{exists: true}, newStubStorage())

	_, err := svc.RecordDownload(context.Background(), "u1", "doc1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInsufficientKarma.Code, appErr.Code)
}

func TestRecordDownloadDebitsEveryCall(t *testing.T) {
	repo := &stubDocRepo{
		docByID:        &models.Document{ID: "doc1", FilePath: "documents/doc1.pdf"},
		downloadResult: &repository.DownloadResult{DownloadsCount: 5, KarmaRemaining: 9},
	}
	svc := newDocService(repo, &stubKarmaReader{karma: 10}, &stubCourseChecker{exists: true}, newStubStorage())

	res, err := svc.RecordDownload(context.Background(), "u1", "doc1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.downloadCost)
	assert.Equal(t, 5, res.DownloadsCount)
	assert.Equal(t, 9, res.KarmaRemaining)
	assert.Contains(t, res.DownloadURL, "doc1.token")
}

func TestRecordDownloadUnknownDocument(t *testing.T) {
	svc := newDocService(&stubDocRepo{}, &stubKarmaReader{karma: 10}, &stubCourseChecker{exists: true}, newStubStorage())

	_, err := svc.RecordDownload(context.Background(), "u1", "missing")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDeleteForbiddenForStrangers(t *testing.T) {
	owner := "owner"
	repo := &stubDocRepo{docByID: &models.Document{ID: "doc1", UploadedBy: &owner, FilePath: "documents/doc1.pdf"}}
	svc := newDocService(repo, &stubKarmaReader{}, &stubCourseChecker{exists: true}, newStubStorage())

	err := svc.Delete(context.Background(), "stranger", models.RoleUser, "doc1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.False(t, repo.deleted)
}

func TestDeleteAllowsAdminAndAppliesPenalty(t *testing.T) {
	owner := "owner"
	repo := &stubDocRepo{docByID: &models.Document{ID: "doc1", UploadedBy: &owner, FilePath: "documents/doc1.pdf"}}
	store := newStubStorage()
	svc := newDocService(repo, &stubKarmaReader{}, &stubCourseChecker{exists: true}, store)

	err := svc.Delete(context.Background(), "admin", models.RoleAdmin, "doc1")
	require.NoError(t, err)
	assert.True(t, repo.deleted)
	assert.Equal(t, 10, repo.deletedPenalty)
	assert.Contains(t, store.deleted, "documents/doc1.pdf")
}

func TestDeleteToleratesFileRemovalFailure(t *testing.T) {
	owner := "owner"
	repo := &stubDocRepo{docByID: &models.Document{ID: "doc1", UploadedBy: &owner, FilePath: "documents/doc1.pdf"}}
	store := newStubStorage()
	store.deleteErr = os.ErrPermission
	svc := newDocService(repo, &stubKarmaReader{}, &stubCourseChecker{exists: true}, store)

	err := svc.Delete(context.Background(), "owner", models.RoleUser, "doc1")
	require.NoError(t, err)
	assert.True(t, repo.deleted)
}

func TestListPaginationDefaults(t *testing.T) {
	repo := &stubDocRepo{listDocs: []models.DocumentSummary{{ID: "d1"}}, listTotal: 41}
	svc := newDocService(repo, &stubKarmaReader{}, &stubCourseChecker{exists: true}, newStubStorage())

	docs, pagination, err := svc.List(context.Background(), models.DocumentFilter{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 41, pagination.TotalCount)
}
