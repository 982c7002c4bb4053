package model

import "time"

// PriceBar represents a single daily OHLCV bar.
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SpikeResult is the verdict of the volume spike detector for the most recent bar.
// Numeric fields are rounded for display.
type SpikeResult struct {
	VolumeToday  int64   `json:"volume_today"`
	VolumeMedian int64   `json:"volume_median"`
	VolumeMean   int64   `json:"volume_mean"`
	Multiple     float64 `json:"multiple"`
	PriceClose   float64 `json:"price_close"`
	PctChange    float64 `json:"pct_change"`
	Date         string  `json:"date"` // YYYY-MM-DD
}

// Classification holds sector data for a ticker. Unknown fields stay nil or empty.
type Classification struct {
	MarketCap *float64
	Name      string
	Sector    string
	Industry  string
}
