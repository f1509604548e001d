package model

import (
	"fmt"
	"time"
)

// minReportLength is the threshold below which stored content is treated as
// trivial and regenerated rather than served from cache.
const minReportLength = 100

// ReportState is the lifecycle state of a report, derived from the record's
// timestamp fields in exactly one place (State below).
type ReportState string

const (
	StateEmpty      ReportState = "empty"
	StateGenerating ReportState = "generating"
	StateCompleted  ReportState = "completed"
	StateFailed     ReportState = "failed"
)

// Report is the generation-state record for a single submission. It is created
// empty at submission time, mutated only by the generation controller, and
// becomes immutable once CompletedAt is set.
type Report struct {
	ID          string `gorm:"primaryKey;size:36"`
	Fingerprint string `gorm:"size:64;index;not null"`

	Email       string  `gorm:"size:256;not null"`
	Gender      string  `gorm:"size:8;not null"`
	BirthDate   string  `gorm:"size:10;not null"` // YYYY-MM-DD
	BirthHour   int     `gorm:"not null"`
	BirthMinute int     `gorm:"not null"`
	BirthCity   string  `gorm:"size:128"`
	Longitude   float64 `gorm:"not null"`
	Latitude    float64

	RawChart     string `gorm:"type:text"`
	CoreIdentity string `gorm:"type:text"`
	AIReport     string `gorm:"type:text"`

	CreatedAt     time.Time  `gorm:"not null;index"`
	PaidAt        *time.Time `gorm:"index"` // doubles as "AI content exists" for free reuse
	APICalledAt   *time.Time
	APIRetryCount int `gorm:"not null;default:0"`
	CompletedAt   *time.Time

	// Notification outbox: pending is set inside the completion write, cleared
	// by the worker once delivery succeeds.
	NotifyPendingAt *time.Time `gorm:"index"`
	NotifiedAt      *time.Time
}

// BirthLocalTime assembles the stored birth fields into a civil timestamp.
func (r *Report) BirthLocalTime() (time.Time, error) {
	date, err := time.Parse("2006-01-02", r.BirthDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid birth date %q: %w", r.BirthDate, err)
	}
	return date.Add(time.Duration(r.BirthHour)*time.Hour + time.Duration(r.BirthMinute)*time.Minute), nil
}

// BirthPlaceLabel returns the stated city, or a longitude label when the
// location was inferred rather than named.
func (r *Report) BirthPlaceLabel() string {
	if r.BirthCity != "" {
		return r.BirthCity
	}
	return fmt.Sprintf("东经%.1f°", r.Longitude)
}

// HasContent reports whether the record holds non-trivial generated content.
func (r *Report) HasContent() bool {
	return len(r.AIReport) > minReportLength
}

// State derives the lifecycle state. maxRetries is the configured attempt cap.
func (r *Report) State(maxRetries int) ReportState {
	switch {
	case r.CompletedAt != nil && r.HasContent():
		return StateCompleted
	case r.APICalledAt != nil && r.APIRetryCount >= maxRetries:
		return StateFailed
	case r.APICalledAt != nil:
		return StateGenerating
	default:
		return StateEmpty
	}
}
