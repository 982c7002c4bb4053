package calculator

import "github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"

// TrailingWindow splits bars into the most recent bar and the n bars immediately
// preceding it. ok is false when fewer than n+1 bars exist or n is not positive.
// The returned window aliases the input slice.
func TrailingWindow(bars []model.PriceBar, n int) (current model.PriceBar, window []model.PriceBar, ok bool) {
	if n <= 0 || len(bars) < n+1 {
		return model.PriceBar{}, nil, false
	}
	last := len(bars) - 1
	return bars[last], bars[last-n : last], true
}
