package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu     sync.Mutex
	Bars   map[string][]model.PriceBar
	Errs   map[string]error
	Volume float64 // used for generated bars when a symbol has no fixture
	Calls  []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, days int) ([]model.PriceBar, error) {
	symbol = resolver.NormalizeTicker(symbol)
	m.mu.Lock()
	m.Calls = append(m.Calls, symbol)
	m.mu.Unlock()

	if err, ok := m.Errs[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		return trimBars(bars, days), nil
	}
	vol := m.Volume
	if vol == 0 {
		vol = 1_000_000
	}
	return generateMockBars(100, vol, days, time.Now()), nil
}

func generateMockBars(basePrice, volume float64, count int, end time.Time) []model.PriceBar {
	bars := make([]model.PriceBar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		d := end.AddDate(0, 0, -(count - 1 - i))
		bars[i] = model.PriceBar{
			Date:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location()),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: volume,
		}
	}
	return bars
}

// History is the outcome of fetching one symbol.
type History struct {
	Symbol string
	Bars   []model.PriceBar
	Err    error
}

// Collector downloads daily histories for many symbols on a bounded worker pool.
type Collector struct {
	Fetcher Fetcher
	Days    int
	Workers int
	logger  zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, days, workers int, logger zerolog.Logger) *Collector {
	if workers < 1 {
		workers = 1
	}
	return &Collector{Fetcher: fetcher, Days: days, Workers: workers, logger: logger}
}

// Collect fetches every symbol. Results are returned in input order; a
// failed symbol carries its error and no bars.
func (c *Collector) Collect(ctx context.Context, symbols []string) []History {
	out := make([]History, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)
	for i, sym := range symbols {
		g.Go(func() error {
			bars, err := c.Fetcher.FetchDailyBars(gctx, sym, c.Days)
			if err == nil && len(bars) == 0 {
				err = fmt.Errorf("%s: no bars", c.Fetcher.Name())
			}
			if err != nil {
				c.logger.Debug().Err(err).Str("symbol", sym).Msg("history fetch failed")
			}
			out[i] = History{Symbol: sym, Bars: bars, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Reference fetches the broad-market instrument used as the session calendar.
func (c *Collector) Reference(ctx context.Context, symbol string) ([]model.PriceBar, error) {
	bars, err := c.Fetcher.FetchDailyBars(ctx, symbol, 10)
	if err != nil {
		return nil, fmt.Errorf("fetch reference %s: %w", symbol, err)
	}
	return bars, nil
}
