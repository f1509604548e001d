// Package notification delivers completion notices for finished reports. The
// finalize write arms an outbox stamp on the report row; workers here clear it
// once delivery succeeds, and a periodic sweep requeues anything a crashed
// worker left behind.
package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"astro-report-backend/config"
	"astro-report-backend/internal/model"
	"astro-report-backend/internal/store"
)

// sweepBatchSize bounds how many stale outbox entries one sweep requeues.
const sweepBatchSize = 50

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers delivering completion notices.
type WorkerPool struct {
	size  int
	jobs  chan string
	store store.Store

	emailCfg *config.EmailConfig
	mailer   Mailer

	webpush *webpush.Options
	sender  PushSender

	sweepInterval time.Duration
	now           func() time.Time
}

// NewWorkerPool creates a worker pool. mailer may be nil when email delivery is
// not configured; push is skipped when the VAPID options are empty.
func NewWorkerPool(cfg *config.Config, s store.Store, mailer Mailer) *WorkerPool {
	return &WorkerPool{
		size:  cfg.WorkerPool.Size,
		jobs:  make(chan string, cfg.WorkerPool.Size*4),
		store: s,

		emailCfg: &cfg.Email,
		mailer:   mailer,

		webpush: &webpush.Options{
			Subscriber:      cfg.Push.Subject,
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			TTL:             cfg.Push.TTL,
		},
		sender: &WebPushSender{},

		sweepInterval: cfg.WorkerPool.SweepInterval,
		now:           time.Now,
	}
}

// Start launches the worker goroutines and the outbox sweeper.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
	go wp.sweep(ctx)
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	logrus.WithField("worker", id).Debug("notification worker started")
	for {
		select {
		case reportID := <-wp.jobs:
			wp.deliver(ctx, reportID)
		case <-ctx.Done():
			logrus.WithField("worker", id).Debug("notification worker shutting down")
			return
		}
	}
}

// Dispatch queues a report for delivery. Non-blocking: when the queue is full
// the job is dropped and the sweeper picks the record up later via its armed
// outbox stamp.
func (wp *WorkerPool) Dispatch(reportID string) {
	select {
	case wp.jobs <- reportID:
	default:
		logrus.WithField("report_id", reportID).Warn("notification queue full, leaving delivery to the sweeper")
	}
}

// sweep periodically requeues completed reports whose outbox stamp is still
// armed, covering dispatches lost to crashes or a full queue.
func (wp *WorkerPool) sweep(ctx context.Context) {
	ticker := time.NewTicker(wp.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pending, err := wp.store.PendingNotifications(ctx, wp.now(), sweepBatchSize)
			if err != nil {
				logrus.WithError(err).Error("outbox sweep failed")
				continue
			}
			for _, r := range pending {
				wp.Dispatch(r.ID)
			}
		case <-ctx.Done():
			return
		}
	}
}

// deliver sends the completion notice over every configured channel and clears
// the outbox stamp on success. Failures are logged and the stamp stays armed
// for the next sweep.
func (wp *WorkerPool) deliver(ctx context.Context, reportID string) {
	record, err := wp.store.GetReport(ctx, reportID)
	if err != nil {
		logrus.WithField("report_id", reportID).WithError(err).Error("failed to load report for notification")
		return
	}
	if record.NotifiedAt != nil || record.CompletedAt == nil {
		return
	}

	delivered := false
	if wp.mailer != nil {
		if err := wp.sendEmail(ctx, record); err != nil {
			logrus.WithField("report_id", reportID).WithError(err).Warn("email delivery failed")
		} else {
			delivered = true
		}
	}

	wp.sendPushes(ctx, record)

	if !delivered && wp.mailer != nil {
		return
	}
	if err := wp.store.MarkNotified(ctx, reportID, wp.now()); err != nil {
		logrus.WithField("report_id", reportID).WithError(err).Error("failed to mark report notified")
	}
}

func (wp *WorkerPool) sendEmail(ctx context.Context, record *model.Report) error {
	link := fmt.Sprintf("%s/%s", wp.emailCfg.ReportBaseURL, record.ID)
	html := fmt.Sprintf(
		`<p>您好，</p><p>您的紫微斗数命盘报告已经生成。</p><p><strong>%s</strong></p><p><a href="%s">点击查看完整报告</a></p>`,
		record.CoreIdentity, link,
	)
	return wp.mailer.Send(ctx, record.Email, "您的命盘报告已生成", html)
}

// sendPushes delivers a web push to every subscription of the report, deleting
// subscriptions the push service reports as gone.
func (wp *WorkerPool) sendPushes(ctx context.Context, record *model.Report) {
	if wp.webpush.VAPIDPublicKey == "" || wp.webpush.VAPIDPrivateKey == "" {
		return
	}

	subs, err := wp.store.SubscriptionsForReport(ctx, record.ID)
	if err != nil {
		logrus.WithField("report_id", record.ID).WithError(err).Error("failed to list push subscriptions")
		return
	}

	payload := []byte("您的命盘报告已生成，点击查看。")
	for _, sub := range subs {
		wp.sendPush(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendPush(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		logrus.WithField("endpoint", sub.Endpoint).WithError(err).Warn("push delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		logrus.WithField("endpoint", sub.Endpoint).Info("deleting expired push subscription")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			logrus.WithField("endpoint", sub.Endpoint).WithError(err).Warn("failed to delete expired subscription")
		}
	}
}
