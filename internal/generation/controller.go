// Package generation holds the idempotency and retry controller that guards
// the expensive external report generation call.
package generation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"astro-report-backend/config"
	"astro-report-backend/internal/apperr"
	"astro-report-backend/internal/astro"
	"astro-report-backend/internal/llm"
	"astro-report-backend/internal/model"
	"astro-report-backend/internal/solartime"
	"astro-report-backend/internal/store"
)

// Status is the outward-facing generation state of a report.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusGenerating Status = "generating"
	StatusFailed     Status = "failed"
)

// Result is the outcome of a generation request.
type Result struct {
	Status       Status
	ReportID     string
	CoreIdentity string
	Report       string
	// Cached is true when the content was served without an external call.
	Cached bool
	// RetryAfter is how long the caller should wait before polling again.
	// Only set for StatusGenerating.
	RetryAfter time.Duration
}

// Invoker authors a report for the given prompt input. May fail transiently.
type Invoker interface {
	GenerateReport(ctx context.Context, input llm.PromptInput) (*llm.Result, error)
}

// Notifier accepts a report id for asynchronous completion delivery.
type Notifier interface {
	Dispatch(reportID string)
}

// Controller coordinates the generation-state store, the chart service and the
// generation invoker. Workers are stateless: the store is the only shared
// mutable resource, so every decision here rests on the record's timestamps.
type Controller struct {
	cfg      *config.GenerationConfig
	store    store.Store
	charts   astro.Provider
	invoker  Invoker
	notifier Notifier

	now    func() time.Time
	refNow func() time.Time
}

// NewController creates a controller. notifier may be nil when no asynchronous
// delivery is wanted (tests, one-shot tools).
func NewController(cfg *config.GenerationConfig, s store.Store, charts astro.Provider, invoker Invoker, notifier Notifier) *Controller {
	return &Controller{
		cfg:      cfg,
		store:    s,
		charts:   charts,
		invoker:  invoker,
		notifier: notifier,
		now:      time.Now,
		refNow:   solartime.ReferenceNow,
	}
}

// RequestGeneration drives the per-record state machine: serve completed
// content, tell the caller to wait, report terminal failure, or claim an
// attempt and invoke the external generator.
func (c *Controller) RequestGeneration(ctx context.Context, reportID string) (*Result, error) {
	record, err := c.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	now := c.now()

	// Fast path: content exists, no external call.
	if record.HasContent() {
		return &Result{
			Status:       StatusCompleted,
			ReportID:     record.ID,
			CoreIdentity: record.CoreIdentity,
			Report:       record.AIReport,
			Cached:       true,
		}, nil
	}

	if record.APICalledAt != nil {
		elapsed := now.Sub(*record.APICalledAt)
		if elapsed < c.cfg.RetryWindow {
			return &Result{
				Status:     StatusGenerating,
				ReportID:   record.ID,
				RetryAfter: c.cfg.RetryWindow - elapsed,
			}, nil
		}
		if record.APIRetryCount >= c.cfg.MaxRetries {
			return nil, apperr.New(apperr.CodeExhaustedRetries, "generation retries exhausted")
		}
	}

	// A previous attempt may have succeeded externally but failed to land its
	// success write. Recover from the cached attempt result instead of paying
	// for the call again.
	if recovered, err := c.recoverFromAttempt(ctx, record, now); err != nil {
		return nil, err
	} else if recovered != nil {
		return recovered, nil
	}

	claimed, err := c.store.ClaimAttempt(ctx, record.ID, now, c.cfg.RetryWindow, c.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another worker won the claim between our read and write.
		return c.resolveLostClaim(ctx, record.ID)
	}

	return c.attempt(ctx, record, now)
}

// attempt performs the external calls after the claim write has landed.
func (c *Controller) attempt(ctx context.Context, record *model.Report, now time.Time) (*Result, error) {
	localTime, err := record.BirthLocalTime()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "invalid stored birth data", err)
	}
	solar := solartime.Normalize(localTime, record.Longitude)

	chart, err := c.charts.ComputeChart(ctx, astro.BirthMoment{
		BirthDate:  record.BirthDate,
		DoubleHour: solar.DoubleHour,
		Gender:     record.Gender,
		Longitude:  record.Longitude,
		Latitude:   record.Latitude,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "chart computation failed", err)
	}

	result, err := c.invoker.GenerateReport(ctx, llm.PromptInput{
		Gender:     record.Gender,
		BirthDate:  record.BirthDate,
		DoubleHour: solar.DoubleHour,
		BirthPlace: record.BirthPlaceLabel(),
		Chart:      chart,
	})
	if err != nil {
		// The claim already incremented the retry counter; the record stays
		// retryable for a future caller once the window elapses.
		logrus.WithFields(logrus.Fields{
			"report_id": record.ID,
			"attempt":   record.APIRetryCount + 1,
		}).WithError(err).Warn("generation attempt failed")
		if apperr.CodeOf(err) == apperr.CodeGeneration {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.CodeGeneration, "generation call failed", err)
	}

	rawChart, err := json.Marshal(chart)
	if err != nil {
		rawChart = []byte("{}")
	}

	// The raw outcome is cached before the finalize write so a finalize
	// failure never costs a second external call.
	attemptRow := &model.GenerationAttempt{
		ReportID:     record.ID,
		Seq:          record.APIRetryCount + 1,
		CoreIdentity: result.CoreIdentity,
		Content:      result.Report,
		CreatedAt:    now,
	}
	if err := c.store.SaveAttemptResult(ctx, attemptRow); err != nil {
		logrus.WithField("report_id", record.ID).WithError(err).Warn("failed to cache attempt result")
	}

	if err := c.store.FinalizeReport(ctx, record.ID, result.CoreIdentity, result.Report, string(rawChart), c.now()); err != nil {
		return nil, err
	}
	c.dispatchNotification(record.ID)

	return &Result{
		Status:       StatusCompleted,
		ReportID:     record.ID,
		CoreIdentity: result.CoreIdentity,
		Report:       result.Report,
	}, nil
}

// recoverFromAttempt finalizes a record whose external call succeeded but
// whose success write never landed. Returns nil when there is nothing to
// recover.
func (c *Controller) recoverFromAttempt(ctx context.Context, record *model.Report, now time.Time) (*Result, error) {
	attempt, err := c.store.LatestAttemptResult(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if attempt == nil || len(attempt.Content) == 0 {
		return nil, nil
	}

	logrus.WithFields(logrus.Fields{
		"report_id": record.ID,
		"seq":       attempt.Seq,
	}).Info("recovering report from cached attempt result")

	if err := c.store.FinalizeReport(ctx, record.ID, attempt.CoreIdentity, attempt.Content, "", now); err != nil {
		return nil, err
	}
	c.dispatchNotification(record.ID)

	return &Result{
		Status:       StatusCompleted,
		ReportID:     record.ID,
		CoreIdentity: attempt.CoreIdentity,
		Report:       attempt.Content,
	}, nil
}

// resolveLostClaim re-reads the record after a lost claim race and maps its
// state to a response without ever invoking the generator.
func (c *Controller) resolveLostClaim(ctx context.Context, reportID string) (*Result, error) {
	record, err := c.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if record.HasContent() {
		return &Result{
			Status:       StatusCompleted,
			ReportID:     record.ID,
			CoreIdentity: record.CoreIdentity,
			Report:       record.AIReport,
			Cached:       true,
		}, nil
	}
	if record.APIRetryCount >= c.cfg.MaxRetries {
		return nil, apperr.New(apperr.CodeExhaustedRetries, "generation retries exhausted")
	}

	retryAfter := c.cfg.RetryWindow
	if record.APICalledAt != nil {
		if remaining := c.cfg.RetryWindow - c.now().Sub(*record.APICalledAt); remaining > 0 {
			retryAfter = remaining
		}
	}
	return &Result{
		Status:     StatusGenerating,
		ReportID:   record.ID,
		RetryAfter: retryAfter,
	}, nil
}

func (c *Controller) dispatchNotification(reportID string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Dispatch(reportID)
}

// RetryWindow exposes the configured window, used by handlers to express
// retryAfter in whole seconds.
func (c *Controller) RetryWindow() time.Duration {
	return c.cfg.RetryWindow
}

// DaysRemaining computes the whole days left in the free-reuse window for a
// record paid at paidAt, rounding up and clamping at zero.
func (c *Controller) daysRemaining(paidAt, now time.Time) int {
	remaining := c.cfg.FreeReuseWindow - now.Sub(paidAt)
	if remaining <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	days := int((remaining + day - 1) / day)
	return days
}
