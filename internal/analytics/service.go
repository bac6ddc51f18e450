package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Recorder receives fetch events from the HTTP layer
type Recorder interface {
	Record(ctx context.Context, event *FetchEvent) error
}

// NopRecorder drops every event; used when analytics is disabled
type NopRecorder struct{}

// Record implements Recorder
func (NopRecorder) Record(ctx context.Context, event *FetchEvent) error {
	return nil
}

// Service persists fetch events and answers aggregate queries
type Service struct {
	db *gorm.DB
}

// NewService creates a new analytics service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record stores a single fetch event
func (s *Service) Record(ctx context.Context, event *FetchEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to record fetch event: %w", err)
	}

	log.Ctx(ctx).Debug().
		Str("route", event.Route).
		Str("requested_path", event.RequestedPath).
		Str("step", event.Step).
		Int("status", event.StatusCode).
		Msg("fetch event recorded")
	return nil
}

// StepCounts returns how many requests each fallback step served since the given time
func (s *Service) StepCounts(ctx context.Context, since time.Time) ([]StepCount, error) {
	var counts []StepCount
	err := s.db.WithContext(ctx).
		Model(&FetchEvent{}).
		Select("step, COUNT(*) AS count").
		Where("fetched_at >= ?", since).
		Group("step").
		Order("count DESC, step ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count fetch steps: %w", err)
	}
	return counts, nil
}

// TopFallbackPaths returns the requested paths that most often missed the exact lookup
func (s *Service) TopFallbackPaths(ctx context.Context, since time.Time, limit int) ([]MissedPath, error) {
	if limit <= 0 {
		limit = 10
	}

	var paths []MissedPath
	err := s.db.WithContext(ctx).
		Model(&FetchEvent{}).
		Select("requested_path, COUNT(*) AS count").
		Where("fetched_at >= ? AND step <> ?", since, "exact").
		Group("requested_path").
		Order("count DESC, requested_path ASC").
		Limit(limit).
		Scan(&paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query fallback paths: %w", err)
	}
	return paths, nil
}

// GetStats assembles the summary served on /stats
func (s *Service) GetStats(ctx context.Context, since time.Time, limit int) (*Stats, error) {
	stats := &Stats{Since: since, Steps: []StepCount{}, TopFallback: []MissedPath{}}

	if err := s.db.WithContext(ctx).
		Model(&FetchEvent{}).
		Where("fetched_at >= ?", since).
		Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count fetch events: %w", err)
	}

	steps, err := s.StepCounts(ctx, since)
	if err != nil {
		return nil, err
	}
	if steps != nil {
		stats.Steps = steps
	}

	top, err := s.TopFallbackPaths(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	if top != nil {
		stats.TopFallback = top
	}

	return stats, nil
}

// Prune deletes events older than the cutoff and returns how many were removed
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("fetched_at < ?", before).Delete(&FetchEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune fetch events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
