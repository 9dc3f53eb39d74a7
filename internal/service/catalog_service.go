package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/polyshare/polyshare-api/internal/models"
	appErrors "github.com/polyshare/polyshare-api/pkg/errors"
)

type catalogRepository interface {
	ListUniversities(ctx context.Context) ([]models.University, error)
	ListFaculties(ctx context.Context, universityID string) ([]models.Faculty, error)
	ListMajors(ctx context.Context, facultyID string) ([]models.Major, error)
	ListCourses(ctx context.Context, majorID string) ([]models.Course, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CatalogConfig controls catalog response caching.
type CatalogConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// CatalogService serves the university hierarchy with optional Redis caching.
type CatalogService struct {
	repo   catalogRepository
	cache  catalogCache
	logger *zap.Logger
	config CatalogConfig
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repo catalogRepository, cache catalogCache, logger *zap.Logger, config CatalogConfig) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, logger: logger, config: config}
}

// Universities lists all universities. The second return reports a cache hit.
func (s *CatalogService) Universities(ctx context.Context) ([]models.University, bool, error) {
	const key = "catalog:universities"
	if s.cacheable() {
		var cached []models.University
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	universities, err := s.repo.ListUniversities(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list universities")
	}
	s.store(ctx, key, universities)
	return universities, false, nil
}

// Faculties lists faculties, optionally scoped to one university.
func (s *CatalogService) Faculties(ctx context.Context, universityID string) ([]models.Faculty, bool, error) {
	key := "catalog:faculties:" + universityID
	if s.cacheable() {
		var cached []models.Faculty
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	faculties, err := s.repo.ListFaculties(ctx, universityID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculties")
	}
	s.store(ctx, key, faculties)
	return faculties, false, nil
}

// Majors lists majors, optionally scoped to one faculty.
func (s *CatalogService) Majors(ctx context.Context, facultyID string) ([]models.Major, bool, error) {
	key := "catalog:majors:" + facultyID
	if s.cacheable() {
		var cached []models.Major
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	majors, err := s.repo.ListMajors(ctx, facultyID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list majors")
	}
	s.store(ctx, key, majors)
	return majors, false, nil
}

// Courses lists courses, optionally scoped to one major.
func (s *CatalogService) Courses(ctx context.Context, majorID string) ([]models.Course, bool, error) {
	key := "catalog:courses:" + majorID
	if s.cacheable() {
		var cached []models.Course
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	courses, err := s.repo.ListCourses(ctx, majorID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	s.store(ctx, key, courses)
	return courses, false, nil
}

func (s *CatalogService) cacheable() bool {
	return s.config.CacheEnabled && s.cache != nil
}

func (s *CatalogService) store(ctx context.Context, key string, value interface{}) {
	if !s.cacheable() {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.config.CacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
