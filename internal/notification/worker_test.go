package notification

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astro-report-backend/config"
	"astro-report-backend/internal/model"
	"astro-report-backend/internal/store"
)

// mockSender is a mock implementation of the PushSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// mockMailer records sent emails and can be told to fail.
type mockMailer struct {
	sent []string
	err  error
}

func (m *mockMailer) Send(_ context.Context, to, _, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

// fakeStore implements the handful of Store methods the worker touches.
// Embedding the interface makes any unexpected call panic loudly.
type fakeStore struct {
	store.Store

	report   *model.Report
	subs     []model.PushSubscription
	pending  []model.Report
	notified []string
	deleted  []string
}

func (f *fakeStore) GetReport(_ context.Context, id string) (*model.Report, error) {
	clone := *f.report
	return &clone, nil
}

func (f *fakeStore) SubscriptionsForReport(_ context.Context, _ string) ([]model.PushSubscription, error) {
	return f.subs, nil
}

func (f *fakeStore) DeleteSubscription(_ context.Context, endpoint string) error {
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeStore) MarkNotified(_ context.Context, id string, _ time.Time) error {
	f.notified = append(f.notified, id)
	return nil
}

func (f *fakeStore) PendingNotifications(_ context.Context, _ time.Time, _ int) ([]model.Report, error) {
	return f.pending, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Push.PublicKey = "test-public"
	cfg.Push.PrivateKey = "test-private"
	cfg.Email.From = "reports@example.com"
	cfg.Email.ReportBaseURL = "https://example.com/report"
	return cfg
}

func completedReport() *model.Report {
	completed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pending := completed
	return &model.Report{
		ID:              "r-1",
		Email:           "user@example.com",
		CoreIdentity:    "a steady builder",
		AIReport:        "body",
		CompletedAt:     &completed,
		NotifyPendingAt: &pending,
	}
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusCreated,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(testConfig(), &fakeStore{}, nil)

	wp.Dispatch("r-1")

	select {
	case job := <-wp.jobs:
		assert.Equal(t, "r-1", job)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestDeliver_EmailSuccessClearsOutbox(t *testing.T) {
	s := &fakeStore{report: completedReport()}
	mailer := &mockMailer{}
	wp := NewWorkerPool(testConfig(), s, mailer)
	wp.sender = &mockSender{
		SendFunc: func(_ []byte, _ *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
			return okResponse(), nil
		},
	}

	wp.deliver(context.Background(), "r-1")

	assert.Equal(t, []string{"user@example.com"}, mailer.sent)
	assert.Equal(t, []string{"r-1"}, s.notified)
}

func TestDeliver_EmailFailureLeavesOutboxArmed(t *testing.T) {
	s := &fakeStore{report: completedReport()}
	mailer := &mockMailer{err: errors.New("provider 500")}
	wp := NewWorkerPool(testConfig(), s, mailer)

	wp.deliver(context.Background(), "r-1")

	assert.Empty(t, s.notified, "a failed delivery must stay pending for the sweeper")
}

func TestDeliver_SkipsAlreadyNotifiedReport(t *testing.T) {
	record := completedReport()
	notified := time.Now()
	record.NotifiedAt = &notified
	s := &fakeStore{report: record}
	mailer := &mockMailer{}
	wp := NewWorkerPool(testConfig(), s, mailer)

	wp.deliver(context.Background(), "r-1")

	assert.Empty(t, mailer.sent)
	assert.Empty(t, s.notified)
}

func TestDeliver_DeletesExpiredPushSubscription(t *testing.T) {
	s := &fakeStore{
		report: completedReport(),
		subs: []model.PushSubscription{
			{Endpoint: "https://push.example.com/live", P256DH: "k1", Auth: "a1"},
			{Endpoint: "https://push.example.com/expired", P256DH: "k2", Auth: "a2"},
		},
	}
	wp := NewWorkerPool(testConfig(), s, &mockMailer{})
	wp.sender = &mockSender{
		SendFunc: func(_ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
			status := http.StatusCreated
			if sub.Endpoint == "https://push.example.com/expired" {
				status = http.StatusGone
			}
			return &http.Response{
				StatusCode: status,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	}

	wp.deliver(context.Background(), "r-1")

	assert.Equal(t, []string{"https://push.example.com/expired"}, s.deleted)
}

func TestSweep_RequeuesPendingReports(t *testing.T) {
	s := &fakeStore{pending: []model.Report{{ID: "r-1"}, {ID: "r-2"}}}
	cfg := testConfig()
	cfg.WorkerPool.SweepIntervalSeconds = 1
	cfg.ApplyDefaults()
	wp := NewWorkerPool(cfg, s, nil)
	wp.sweepInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wp.sweep(ctx)

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-wp.jobs:
			got[id] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for sweep to requeue pending reports")
		}
	}
	require.True(t, got["r-1"])
	require.True(t, got["r-2"])
}
