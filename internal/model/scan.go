package model

import (
	"time"
)

// ExclusionVerdict is the outcome of the exclusion filter. Reason is empty when not excluded.
type ExclusionVerdict struct {
	Excluded bool
	Reason   string
}

// ScanStats counts what happened during a single scan.
type ScanStats struct {
	Scanned        int `json:"scanned"`
	Spikes         int `json:"spikes"`
	CapFiltered    int `json:"cap_filtered"`
	PharmaFiltered int `json:"pharma_filtered"`
	Alerts         int `json:"alerts"`
	NoPR           int `json:"no_pr"`
	FetchFailed    int `json:"fetch_failed"`
}

// Alert is a ticker whose volume spike was matched to a press release and survived all filters.
type Alert struct {
	Ticker    string
	Company   string
	Spike     SpikeResult
	PR        PRItem
	MarketCap *float64
	Sector    string
	Industry  string
	QuoteURL  string
	ChartURL  string
}

// AlertRecord is the flat, serialisable form of an Alert.
type AlertRecord struct {
	Ticker        string   `json:"ticker"`
	Company       string   `json:"company"`
	Date          string   `json:"date"`
	VolumeToday   int64    `json:"volume_today"`
	VolumeMedian  int64    `json:"volume_median"`
	VolumeMean    int64    `json:"volume_mean"`
	Multiple      float64  `json:"multiple"`
	PriceClose    float64  `json:"price_close"`
	PctChange     float64  `json:"pct_change"`
	PRHeadline    string   `json:"pr_headline"`
	PRURL         string   `json:"pr_url"`
	PRSource      string   `json:"pr_source"`
	PRPublishedAt string   `json:"pr_published_at"`
	MarketCap     *float64 `json:"market_cap"`
	Sector        string   `json:"sector"`
	Industry      string   `json:"industry"`
	QuoteURL      string   `json:"quote_url"`
	ChartURL      string   `json:"chart_url"`
}

// Record flattens the alert. Timestamps are ISO-8601 in UTC.
func (a Alert) Record() AlertRecord {
	return AlertRecord{
		Ticker:        a.Ticker,
		Company:       a.Company,
		Date:          a.Spike.Date,
		VolumeToday:   a.Spike.VolumeToday,
		VolumeMedian:  a.Spike.VolumeMedian,
		VolumeMean:    a.Spike.VolumeMean,
		Multiple:      a.Spike.Multiple,
		PriceClose:    a.Spike.PriceClose,
		PctChange:     a.Spike.PctChange,
		PRHeadline:    a.PR.Headline,
		PRURL:         a.PR.URL,
		PRSource:      a.PR.Source,
		PRPublishedAt: a.PR.PublishedAt.UTC().Format(time.RFC3339),
		MarketCap:     a.MarketCap,
		Sector:        a.Sector,
		Industry:      a.Industry,
		QuoteURL:      a.QuoteURL,
		ChartURL:      a.ChartURL,
	}
}

// ScanReport is the result of one batch pass.
type ScanReport struct {
	RunID       string
	RunLabel    string
	StartedAt   time.Time
	FinishedAt  time.Time
	WindowStart time.Time
	Skipped     bool
	SkipReason  string
	Stats       ScanStats
	Alerts      []Alert
}

// ScanReportRecord is the flat, serialisable form of a ScanReport.
type ScanReportRecord struct {
	RunID       string        `json:"run_id"`
	RunLabel    string        `json:"run_label"`
	StartedAt   string        `json:"started_at"`
	FinishedAt  string        `json:"finished_at"`
	WindowStart string        `json:"window_start"`
	Skipped     bool          `json:"skipped"`
	SkipReason  string        `json:"skip_reason,omitempty"`
	Stats       ScanStats     `json:"stats"`
	Alerts      []AlertRecord `json:"alerts"`
}

// Record flattens the report for persistence.
func (r *ScanReport) Record() ScanReportRecord {
	alerts := make([]AlertRecord, 0, len(r.Alerts))
	for _, a := range r.Alerts {
		alerts = append(alerts, a.Record())
	}
	return ScanReportRecord{
		RunID:       r.RunID,
		RunLabel:    r.RunLabel,
		StartedAt:   isoTime(r.StartedAt),
		FinishedAt:  isoTime(r.FinishedAt),
		WindowStart: isoTime(r.WindowStart),
		Skipped:     r.Skipped,
		SkipReason:  r.SkipReason,
		Stats:       r.Stats,
		Alerts:      alerts,
	}
}

func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
