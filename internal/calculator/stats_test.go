package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

func barsWithVolumes(vols ...float64) []model.PriceBar {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, len(vols))
	for i, v := range vols {
		bars[i] = model.PriceBar{Date: start.AddDate(0, 0, i), Close: 10, Volume: v}
	}
	return bars
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"odd count", []float64{5, 1, 3}, 3},
		{"even count averages middle", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
		{"all equal", []float64{1000, 1000, 1000, 1000}, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Median(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, err := Median(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestMeanAndMedian_Empty(t *testing.T) {
	_, err := Mean(nil)
	assert.Error(t, err)
	_, err = Median(nil)
	assert.Error(t, err)
}

func TestMean(t *testing.T) {
	got, err := Mean([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)
}

func TestTrailingWindow(t *testing.T) {
	bars := barsWithVolumes(1, 2, 3, 4, 5)

	cur, win, ok := TrailingWindow(bars, 3)
	require.True(t, ok)
	assert.Equal(t, 5.0, cur.Volume)
	assert.Equal(t, []float64{2, 3, 4}, ExtractVolumes(win))

	cur, win, ok = TrailingWindow(bars, 4)
	require.True(t, ok)
	assert.Equal(t, 5.0, cur.Volume)
	assert.Len(t, win, 4)
}

func TestTrailingWindow_Insufficient(t *testing.T) {
	bars := barsWithVolumes(1, 2, 3)

	_, _, ok := TrailingWindow(bars, 3)
	assert.False(t, ok, "needs n+1 bars")

	_, _, ok = TrailingWindow(nil, 1)
	assert.False(t, ok)

	_, _, ok = TrailingWindow(bars, 0)
	assert.False(t, ok)
}
