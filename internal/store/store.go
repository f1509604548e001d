package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"astro-report-backend/internal/apperr"
	"astro-report-backend/internal/model"
)

// Store defines the persistence operations of the generation-state store.
type Store interface {
	DB() *gorm.DB

	GetReport(ctx context.Context, id string) (*model.Report, error)
	CreateReport(ctx context.Context, r *model.Report) error

	// FindRecentByFingerprint returns the most recent report sharing the
	// fingerprint created at or after since, or nil when none exists.
	FindRecentByFingerprint(ctx context.Context, fp string, since time.Time) (*model.Report, error)
	// FindPaidByFingerprint returns the most recent report sharing the
	// fingerprint whose paidAt is at or after paidSince, or nil.
	FindPaidByFingerprint(ctx context.Context, fp string, paidSince time.Time) (*model.Report, error)

	// ClaimAttempt atomically stamps apiCalledAt and increments the retry
	// counter, succeeding for at most one caller per retry window. The write
	// lands before the external call is made, which is what bounds duplicate
	// external calls across stateless workers.
	ClaimAttempt(ctx context.Context, id string, now time.Time, retryWindow time.Duration, maxRetries int) (bool, error)

	// SaveAttemptResult persists the raw outcome of a successful external call
	// before the report row is finalized.
	SaveAttemptResult(ctx context.Context, a *model.GenerationAttempt) error
	// LatestAttemptResult returns the newest cached attempt outcome for the
	// report, or nil when none exists.
	LatestAttemptResult(ctx context.Context, reportID string) (*model.GenerationAttempt, error)

	// FinalizeReport writes the generated content, completion and payment
	// stamps, and arms the notification outbox. Idempotent: a second call on a
	// completed record is a no-op. An empty rawChart leaves the stored chart
	// untouched (the attempt-recovery path has no chart to offer).
	FinalizeReport(ctx context.Context, id, coreIdentity, content, rawChart string, now time.Time) error

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForReport(ctx context.Context, reportID string) ([]model.PushSubscription, error)

	MarkNotified(ctx context.Context, id string, at time.Time) error
	// PendingNotifications lists completed reports whose outbox entry was armed
	// at or before the cutoff and not yet delivered.
	PendingNotifications(ctx context.Context, cutoff time.Time, limit int) ([]model.Report, error)
}

// gormStore implements Store using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var report model.Report
	err := s.db.WithContext(ctx).First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, "report not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return &report, nil
}

func (s *gormStore) CreateReport(ctx context.Context, r *model.Report) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (s *gormStore) FindRecentByFingerprint(ctx context.Context, fp string, since time.Time) (*model.Report, error) {
	var report model.Report
	err := s.db.WithContext(ctx).
		Where("fingerprint = ? AND created_at >= ?", fp, since).
		Order("created_at DESC").
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup failed: %w", err)
	}
	return &report, nil
}

func (s *gormStore) FindPaidByFingerprint(ctx context.Context, fp string, paidSince time.Time) (*model.Report, error) {
	var report model.Report
	err := s.db.WithContext(ctx).
		Where("fingerprint = ? AND paid_at >= ?", fp, paidSince).
		Order("paid_at DESC").
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("paid fingerprint lookup failed: %w", err)
	}
	return &report, nil
}

func (s *gormStore) ClaimAttempt(ctx context.Context, id string, now time.Time, retryWindow time.Duration, maxRetries int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Report{}).
		Where("id = ? AND completed_at IS NULL AND api_retry_count < ? AND (api_called_at IS NULL OR api_called_at <= ?)",
			id, maxRetries, now.Add(-retryWindow)).
		Updates(map[string]any{
			"api_called_at":   now,
			"api_retry_count": gorm.Expr("api_retry_count + 1"),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim generation attempt for %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) SaveAttemptResult(ctx context.Context, a *model.GenerationAttempt) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to save attempt result for %s: %w", a.ReportID, err)
	}
	return nil
}

func (s *gormStore) LatestAttemptResult(ctx context.Context, reportID string) (*model.GenerationAttempt, error) {
	var attempt model.GenerationAttempt
	err := s.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("seq DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("attempt lookup failed for %s: %w", reportID, err)
	}
	return &attempt, nil
}

func (s *gormStore) FinalizeReport(ctx context.Context, id, coreIdentity, content, rawChart string, now time.Time) error {
	fields := map[string]any{
		"ai_report":         content,
		"core_identity":     coreIdentity,
		"completed_at":      now,
		"paid_at":           now,
		"notify_pending_at": now,
	}
	if rawChart != "" {
		fields["raw_chart"] = rawChart
	}
	res := s.db.WithContext(ctx).Model(&model.Report{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to finalize report %s: %w", id, res.Error)
	}
	return nil
}

func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"report_id", "p256dh", "auth"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *gormStore) SubscriptionsForReport(ctx context.Context, reportID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("report_id = ?", reportID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for %s: %w", reportID, err)
	}
	return subs, nil
}

func (s *gormStore) MarkNotified(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Report{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"notified_at":       at,
			"notify_pending_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark report %s notified: %w", id, res.Error)
	}
	return nil
}

func (s *gormStore) PendingNotifications(ctx context.Context, cutoff time.Time, limit int) ([]model.Report, error) {
	var reports []model.Report
	err := s.db.WithContext(ctx).
		Where("notify_pending_at IS NOT NULL AND notify_pending_at <= ?", cutoff).
		Order("notify_pending_at ASC").
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return reports, nil
}
