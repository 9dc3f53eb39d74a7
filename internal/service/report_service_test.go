package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyshare/polyshare-api/internal/dto"
	"github.com/polyshare/polyshare-api/internal/models"
	"github.com/polyshare/polyshare-api/internal/repository"
	appErrors "github.com/polyshare/polyshare-api/pkg/errors"
	"github.com/polyshare/polyshare-api/pkg/jobs"
)

type stubReportStore struct {
	jobs    map[string]*models.ReportJob
	updates []repository.UpdateReportJobParams
}

func newStubReportStore() *stubReportStore {
	return &stubReportStore{jobs: make(map[string]*models.ReportJob)}
}

func (s *stubReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = "job1"
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *stubReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (s *stubReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	s.updates = append(s.updates, params)
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	return nil
}

func (s *stubReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	out := make([]models.ReportJob, 0)
	for _, job := range s.jobs {
		if job.Status == models.ReportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *stubReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type stubQueue struct {
	enqueued []jobs.Job
	err      error
}

func (s *stubQueue) Enqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, job)
	return nil
}

type stubGenerator struct {
	result *ExportResult
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestCreateJobQueuesWork(t *testing.T) {
	store := newStubReportStore()
	queue := &stubQueue{}
	svc := NewReportService(store, queue, nil, zap.NewNop(), ReportServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeCatalog,
		Format: models.ReportFormatCSV,
	}, "admin1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
}

func TestCreateJobRejectsUnknownType(t *testing.T) {
	svc := NewReportService(newStubReportStore(), &stubQueue{}, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportType("bogus"),
		Format: models.ReportFormatCSV,
	}, "admin1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestGetStatusReturnsNotFoundForMissingJob(t *testing.T) {
	svc := NewReportService(newStubReportStore(), &stubQueue{}, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestWorkerMarksJobFinished(t *testing.T) {
	store := newStubReportStore()
	job := &models.ReportJob{ID: "job1", Type: models.ReportTypeKarma, Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV}}
	store.jobs[job.ID] = job

	worker := NewReportWorker(store, &stubGenerator{result: &ExportResult{URL: "/api/reports/export/tok"}}, 3, zap.NewNop())
	err := worker.Handle(context.Background(), jobs.Job{ID: "job1", Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/reports/export/tok", *job.ResultURL)
}

func TestWorkerRequeuesUntilRetriesExhausted(t *testing.T) {
	store := newStubReportStore()
	job := &models.ReportJob{ID: "job1", Type: models.ReportTypeKarma, Status: models.ReportStatusQueued}
	store.jobs[job.ID] = job

	worker := NewReportWorker(store, &stubGenerator{err: assert.AnError}, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, job.Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job1", Attempt: 3})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, job.Status)
}

func TestRecoverPendingJobsRequeues(t *testing.T) {
	store := newStubReportStore()
	store.jobs["job1"] = &models.ReportJob{ID: "job1", Type: models.ReportTypeCatalog, Status: models.ReportStatusQueued}
	queue := &stubQueue{}
	svc := NewReportService(store, queue, nil, zap.NewNop(), ReportServiceConfig{})

	svc.RecoverPendingJobs(context.Background())
	assert.Len(t, queue.enqueued, 1)
}
