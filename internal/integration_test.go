package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"astro-report-backend/config"
	"astro-report-backend/internal/astro"
	"astro-report-backend/internal/db"
	"astro-report-backend/internal/generation"
	"astro-report-backend/internal/llm"
	"astro-report-backend/internal/model"
	"astro-report-backend/internal/store"
)

// TestReportLifecycle walks a submission through deduplication, generation,
// idempotent regeneration and free reuse, verifying the database state at each
// step.
func TestReportLifecycle(t *testing.T) {
	// 1. Setup an in-memory SQLite database for testing.
	testDB, err := gorm.Open(sqlite.Open("file:report_lifecycle?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	require.NoError(t, db.Migrate(testDB))

	// 2. Mock the chart service.
	var chartCalls int
	chartServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chartCalls++
		var moment astro.BirthMoment
		require.NoError(t, json.NewDecoder(r.Body).Decode(&moment))
		assert.Equal(t, "1990-06-15", moment.BirthDate)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": astro.Chart{
				Palaces:       []astro.Palace{{Name: "命宫", MajorStars: []string{"紫微", "天府"}}},
				FiveElement:   "土五局",
				ChineseZodiac: "马",
				Zodiac:        "双子座",
				Pillars:       astro.FourPillars{Year: "庚午", Month: "壬午", Day: "丙辰", Hour: "乙未"},
			},
		})
	}))
	defer chartServer.Close()

	// 3. Mock the completions endpoint.
	reportBody := "## 核心身份\n\n紫微天府坐命，天生的组织者。\n\n## 详细解读\n\n" +
		strings.Repeat("命宫紫微天府同宫，主贵气与统御力。", 12)
	var llmCalls int
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llmCalls++
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reportBody}},
			},
		})
	}))
	defer llmServer.Close()

	// 4. Wire the controller against the mocks.
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Chart.URL = chartServer.URL
	cfg.LLM.BaseURL = llmServer.URL
	cfg.LLM.APIKey = "test-key"

	appStore := store.NewGormStore(testDB)
	controller := generation.NewController(
		&cfg.Generation,
		appStore,
		astro.NewClient(&cfg.Chart),
		llm.NewClient(&cfg.LLM),
		nil,
	)

	query := &generation.BirthQuery{
		Email:       "user@example.com",
		Gender:      "male",
		BirthDate:   "1990-06-15",
		BirthHour:   14,
		BirthMinute: 30,
		BirthCity:   "北京",
	}

	var reportID string
	t.Run("submission creates an empty record", func(t *testing.T) {
		res, err := controller.Submit(context.Background(), query)
		require.NoError(t, err)
		assert.False(t, res.FreeReuse)
		assert.False(t, res.Deduplicated)
		reportID = res.ReportID

		var record model.Report
		require.NoError(t, testDB.First(&record, "id = ?", reportID).Error)
		assert.Equal(t, model.StateEmpty, record.State(cfg.Generation.MaxRetries))
		assert.InDelta(t, 116.4, record.Longitude, 0.5)
	})

	t.Run("identical submission is deduplicated", func(t *testing.T) {
		res, err := controller.Submit(context.Background(), query)
		require.NoError(t, err)
		assert.True(t, res.Deduplicated)
		assert.Equal(t, reportID, res.ReportID)
	})

	t.Run("generation invokes the external services once", func(t *testing.T) {
		res, err := controller.RequestGeneration(context.Background(), reportID)
		require.NoError(t, err)
		assert.Equal(t, generation.StatusCompleted, res.Status)
		assert.Contains(t, res.CoreIdentity, "组织者")
		assert.Equal(t, 1, chartCalls)
		assert.Equal(t, 1, llmCalls)

		var record model.Report
		require.NoError(t, testDB.First(&record, "id = ?", reportID).Error)
		assert.Equal(t, model.StateCompleted, record.State(cfg.Generation.MaxRetries))
		assert.NotNil(t, record.PaidAt, "completion stamps payment for the reuse window")
		assert.NotNil(t, record.NotifyPendingAt, "completion arms the notification outbox")
		assert.Equal(t, 1, record.APIRetryCount)

		var attempts int64
		testDB.Model(&model.GenerationAttempt{}).Where("report_id = ?", reportID).Count(&attempts)
		assert.Equal(t, int64(1), attempts, "the raw outcome is cached alongside the report")
	})

	t.Run("repeated generation serves the stored content", func(t *testing.T) {
		res, err := controller.RequestGeneration(context.Background(), reportID)
		require.NoError(t, err)
		assert.Equal(t, generation.StatusCompleted, res.Status)
		assert.True(t, res.Cached)
		assert.Equal(t, 1, llmCalls, "completed content must never trigger another external call")
	})

	t.Run("resubmission reuses the paid report for free", func(t *testing.T) {
		res, err := controller.Submit(context.Background(), query)
		require.NoError(t, err)
		assert.True(t, res.FreeReuse)
		assert.Equal(t, reportID, res.ReportID)
		assert.Equal(t, 7, res.DaysRemaining)
	})
}

// TestGenerationFailureStaysRetryable verifies that a failing completions
// endpoint burns exactly one attempt per retry window.
func TestGenerationFailureStaysRetryable(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file:report_failure?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	require.NoError(t, db.Migrate(testDB))

	chartServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": astro.Chart{Palaces: []astro.Palace{{Name: "命宫"}}},
		})
	}))
	defer chartServer.Close()

	var llmCalls int
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llmCalls++
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer llmServer.Close()

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Chart.URL = chartServer.URL
	cfg.LLM.BaseURL = llmServer.URL
	cfg.LLM.APIKey = "test-key"

	appStore := store.NewGormStore(testDB)
	controller := generation.NewController(
		&cfg.Generation,
		appStore,
		astro.NewClient(&cfg.Chart),
		llm.NewClient(&cfg.LLM),
		nil,
	)

	res, err := controller.Submit(context.Background(), &generation.BirthQuery{
		Email:     "retry@example.com",
		Gender:    "female",
		BirthDate: "1985-01-20",
		BirthHour: 3,
	})
	require.NoError(t, err)

	_, err = controller.RequestGeneration(context.Background(), res.ReportID)
	require.Error(t, err)
	assert.Equal(t, 1, llmCalls)

	// The claim landed before the failed call, so an immediate repeat waits out
	// the window instead of burning another attempt.
	out, err := controller.RequestGeneration(context.Background(), res.ReportID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusGenerating, out.Status)
	assert.Greater(t, out.RetryAfter, time.Duration(0))
	assert.Equal(t, 1, llmCalls)

	var record model.Report
	require.NoError(t, testDB.First(&record, "id = ?", res.ReportID).Error)
	assert.Equal(t, 1, record.APIRetryCount)
	assert.Nil(t, record.CompletedAt)
}
