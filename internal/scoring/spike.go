package scoring

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/calculator"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

// Thresholds configures the volume spike detector.
type Thresholds struct {
	MedianMultiple float64
	MeanMultiple   float64
	Lookback       int
	MinAbsVolume   float64
	MinAbsPctMove  float64 // 0 disables the price-move floor
}

// Detector decides whether the most recent bar of a series is a volume spike.
type Detector struct {
	t Thresholds
}

// NewDetector creates a Detector.
func NewDetector(t Thresholds) *Detector {
	return &Detector{t: t}
}

// Thresholds returns the detector configuration.
func (d *Detector) Thresholds() Thresholds { return d.t }

// CheckSpike evaluates the last bar of history against the trailing lookback window.
// It returns nil when there is no spike or the input is unusable.
func (d *Detector) CheckSpike(history []model.PriceBar) *model.SpikeResult {
	today, window, ok := calculator.TrailingWindow(history, d.t.Lookback)
	if !ok {
		return nil
	}
	if !validBar(today) {
		return nil
	}
	for _, b := range window {
		if !validBar(b) {
			return nil
		}
	}

	if today.Volume < d.t.MinAbsVolume {
		return nil
	}

	vols := calculator.ExtractVolumes(window)
	medVol, err := calculator.Median(vols)
	if err != nil {
		return nil
	}
	meanVol, err := calculator.Mean(vols)
	if err != nil {
		return nil
	}

	threshold := math.Max(d.t.MedianMultiple*medVol, d.t.MeanMultiple*meanVol)
	if today.Volume < threshold {
		return nil
	}

	prevClose := window[len(window)-1].Close
	var pctChange float64
	if prevClose > 0 {
		pctChange = (today.Close - prevClose) / prevClose * 100
	}
	if d.t.MinAbsPctMove > 0 && math.Abs(pctChange) < d.t.MinAbsPctMove {
		return nil
	}

	var multiple float64
	if medVol > 0 {
		multiple = today.Volume / medVol
	}

	return &model.SpikeResult{
		VolumeToday:  int64(today.Volume),
		VolumeMedian: int64(medVol),
		VolumeMean:   int64(meanVol),
		Multiple:     round2(multiple),
		PriceClose:   round2(today.Close),
		PctChange:    round2(pctChange),
		Date:         today.Date.Format("2006-01-02"),
	}
}

func validBar(b model.PriceBar) bool {
	if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
		return false
	}
	return !math.IsNaN(b.Close) && !math.IsInf(b.Close, 0)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
