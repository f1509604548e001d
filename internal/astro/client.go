// Package astro is the boundary to the external chart computation service. The
// palace/star dataset it returns is treated as opaque by the rest of the core.
package astro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"astro-report-backend/config"
)

// BirthMoment is the normalized input to the chart service.
type BirthMoment struct {
	BirthDate  string  `json:"birthDate"` // YYYY-MM-DD
	DoubleHour int     `json:"doubleHour"`
	Gender     string  `json:"gender"`
	Longitude  float64 `json:"longitude"`
	Latitude   float64 `json:"latitude"`
}

// Palace is one of the twelve chart palaces.
type Palace struct {
	Name       string   `json:"name"`
	MajorStars []string `json:"majorStars"`
	MinorStars []string `json:"minorStars"`
}

// FourPillars holds the year/month/day/hour pillar strings.
type FourPillars struct {
	Year  string `json:"year"`
	Month string `json:"month"`
	Day   string `json:"day"`
	Hour  string `json:"hour"`
}

// Chart is the structured dataset returned by the chart service.
type Chart struct {
	Palaces       []Palace    `json:"palaces"`
	FiveElement   string      `json:"fiveElement"`
	ChineseZodiac string      `json:"chineseZodiac"`
	Zodiac        string      `json:"zodiac"`
	Pillars       FourPillars `json:"pillars"`
}

// LifePalace returns the 命宫 palace, or an empty palace when absent.
func (c *Chart) LifePalace() Palace {
	for _, p := range c.Palaces {
		if p.Name == "命宫" {
			return p
		}
	}
	return Palace{Name: "命宫"}
}

// Provider computes a chart for a normalized birth moment.
type Provider interface {
	ComputeChart(ctx context.Context, moment BirthMoment) (*Chart, error)
}

// Client calls the chart service over HTTP.
type Client struct {
	cfg    *config.ChartConfig
	client *http.Client
}

// NewClient creates a chart service client.
func NewClient(cfg *config.ChartConfig) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type chartResponse struct {
	Code  int    `json:"code"`
	Data  *Chart `json:"data"`
	Error string `json:"error"`
}

// ComputeChart posts the birth moment and decodes the chart dataset.
func (c *Client) ComputeChart(ctx context.Context, moment BirthMoment) (*Chart, error) {
	jsonBody, err := json.Marshal(moment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create chart request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart response: %w", err)
	}

	var chartResp chartResponse
	if err := json.Unmarshal(body, &chartResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chart response: %w", err)
	}
	if chartResp.Code != 0 {
		return nil, fmt.Errorf("chart service returned application code %d: %s", chartResp.Code, chartResp.Error)
	}
	if chartResp.Data == nil || len(chartResp.Data.Palaces) == 0 {
		return nil, fmt.Errorf("chart service returned an empty dataset")
	}

	return chartResp.Data, nil
}
