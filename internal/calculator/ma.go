package calculator

import (
	"errors"
	"sort"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

// Mean computes the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values for mean calculation")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// Median computes the median of values without modifying the input.
// For an even count it returns the average of the two middle values.
func Median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values for median calculation")
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2, nil
}

// ExtractVolumes returns the volume column of bars.
func ExtractVolumes(bars []model.PriceBar) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	return vols
}
