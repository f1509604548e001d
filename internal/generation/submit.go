package generation

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"astro-report-backend/internal/apperr"
	"astro-report-backend/internal/fingerprint"
	"astro-report-backend/internal/gazetteer"
	"astro-report-backend/internal/model"
	"astro-report-backend/internal/solartime"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// BirthQuery is a report submission. Location may come from a named city, a
// raw longitude, or be inferred from the user's stated current clock time.
type BirthQuery struct {
	Email       string   `json:"email"`
	Gender      string   `json:"gender"`
	BirthDate   string   `json:"birthDate"` // YYYY-MM-DD
	BirthHour   int      `json:"birthHour"`
	BirthMinute int      `json:"birthMinute"`
	BirthCity   string   `json:"birthCity,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	CurrentHour *int     `json:"currentHour,omitempty"`
	CurrentMin  *int     `json:"currentMinute,omitempty"`
}

// Validate rejects malformed queries before any state is created.
func (q *BirthQuery) Validate() error {
	if !emailPattern.MatchString(q.Email) {
		return apperr.New(apperr.CodeValidation, "a valid email address is required")
	}
	if q.Gender != "male" && q.Gender != "female" {
		return apperr.New(apperr.CodeValidation, "gender must be male or female")
	}
	if !datePattern.MatchString(q.BirthDate) {
		return apperr.New(apperr.CodeValidation, "birth date must be YYYY-MM-DD")
	}
	if _, err := time.Parse("2006-01-02", q.BirthDate); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "birth date is not a valid calendar date", err)
	}
	if q.BirthHour < 0 || q.BirthHour > 23 {
		return apperr.New(apperr.CodeValidation, "birth hour must be between 0 and 23")
	}
	if q.BirthMinute < 0 || q.BirthMinute > 59 {
		return apperr.New(apperr.CodeValidation, "birth minute must be between 0 and 59")
	}
	if q.CurrentHour != nil && (*q.CurrentHour < 0 || *q.CurrentHour > 23) {
		return apperr.New(apperr.CodeValidation, "current hour must be between 0 and 23")
	}
	if q.CurrentMin != nil && (*q.CurrentMin < 0 || *q.CurrentMin > 59) {
		return apperr.New(apperr.CodeValidation, "current minute must be between 0 and 59")
	}
	return nil
}

// Fingerprint derives the dedup/free-reuse identity key of the query.
func (q *BirthQuery) Fingerprint() string {
	return fingerprint.Build(q.Email, q.Gender, q.BirthDate, q.BirthHour)
}

// SubmitResult is the outcome of a submission.
type SubmitResult struct {
	ReportID string
	// FreeReuse is true when a paid report with the same fingerprint is still
	// inside the free-reuse window.
	FreeReuse     bool
	DaysRemaining int
	// Deduplicated is true when an identical fresh submission already exists
	// inside the dedup cache window.
	Deduplicated bool
}

// Submit validates the query, short-circuits onto an existing record when the
// fingerprint allows it, and otherwise creates a fresh empty record.
func (c *Controller) Submit(ctx context.Context, q *BirthQuery) (*SubmitResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	fp := q.Fingerprint()

	reuse, err := c.CheckFreeReuseOrCache(ctx, fp, ModeFreeReuse)
	if err != nil {
		return nil, err
	}
	if reuse != nil {
		logrus.WithFields(logrus.Fields{
			"report_id":      reuse.Report.ID,
			"days_remaining": reuse.DaysRemaining,
		}).Info("serving paid report inside free-reuse window")
		return &SubmitResult{
			ReportID:      reuse.Report.ID,
			FreeReuse:     true,
			DaysRemaining: reuse.DaysRemaining,
		}, nil
	}

	cached, err := c.CheckFreeReuseOrCache(ctx, fp, ModeDedup)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return &SubmitResult{
			ReportID:     cached.Report.ID,
			Deduplicated: true,
		}, nil
	}

	longitude, latitude, city := c.resolveLocation(q)

	record := &model.Report{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		Email:       q.Email,
		Gender:      q.Gender,
		BirthDate:   q.BirthDate,
		BirthHour:   q.BirthHour,
		BirthMinute: q.BirthMinute,
		BirthCity:   city,
		Longitude:   longitude,
		Latitude:    latitude,
		CreatedAt:   c.now(),
	}
	if err := c.store.CreateReport(ctx, record); err != nil {
		return nil, err
	}

	return &SubmitResult{ReportID: record.ID}, nil
}

// resolveLocation picks the longitude source in order of authority: gazetteer
// city, explicit longitude, clock-skew inference, reference meridian.
func (c *Controller) resolveLocation(q *BirthQuery) (longitude, latitude float64, city string) {
	if q.BirthCity != "" {
		if loc, ok := gazetteer.Lookup(q.BirthCity); ok {
			return loc.Longitude, loc.Latitude, loc.Name
		}
		logrus.WithField("city", q.BirthCity).Warn("unknown birth city, falling back to longitude inference")
	}
	if q.Longitude != nil {
		return solartime.ClampLongitude(*q.Longitude), 0, ""
	}
	if q.CurrentHour != nil {
		minute := 0
		if q.CurrentMin != nil {
			minute = *q.CurrentMin
		}
		return solartime.InferLongitude(*q.CurrentHour, minute, c.refNow()), 0, ""
	}
	return solartime.ReferenceMeridian, 0, ""
}

// ReuseMode selects which window CheckFreeReuseOrCache consults.
type ReuseMode string

const (
	// ModeDedup matches any identical submission inside the dedup cache
	// window, regardless of payment state.
	ModeDedup ReuseMode = "pre-payment"
	// ModeFreeReuse matches paid reports with content inside the free-reuse
	// window.
	ModeFreeReuse ReuseMode = "post-payment"
)

// ReuseResult is a fingerprint match against an existing record.
type ReuseResult struct {
	Report        *model.Report
	DaysRemaining int
}

// CheckFreeReuseOrCache looks for an existing record that makes a new
// submission unnecessary. Returns nil when no record qualifies.
func (c *Controller) CheckFreeReuseOrCache(ctx context.Context, fp string, mode ReuseMode) (*ReuseResult, error) {
	now := c.now()

	switch mode {
	case ModeDedup:
		record, err := c.store.FindRecentByFingerprint(ctx, fp, now.Add(-c.cfg.DedupCacheWindow))
		if err != nil || record == nil {
			return nil, err
		}
		return &ReuseResult{Report: record}, nil

	case ModeFreeReuse:
		record, err := c.store.FindPaidByFingerprint(ctx, fp, now.Add(-c.cfg.FreeReuseWindow))
		if err != nil || record == nil {
			return nil, err
		}
		if !record.HasContent() || record.PaidAt == nil {
			return nil, nil
		}
		return &ReuseResult{
			Report:        record,
			DaysRemaining: c.daysRemaining(*record.PaidAt, now),
		}, nil

	default:
		return nil, apperr.New(apperr.CodeValidation, "unknown reuse mode")
	}
}
