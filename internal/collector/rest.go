package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/observability"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resilience"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
)

// RESTFetcher implements Fetcher against a generic bars REST API:
// GET {BaseURL}/api/v1/bars/daily?symbol=X&limit=N returning
// [{"timestamp":unix,"open":..,"high":..,"low":..,"close":..,"volume":..}].
type RESTFetcher struct {
	BaseURL  string
	APIKey   string
	Client   *http.Client
	Location *time.Location

	breakers *resilience.Registry
	metrics  *observability.Metrics
}

// NewRESTFetcher creates a new REST fetcher.
func NewRESTFetcher(deps Deps, baseURL, apiKey string, loc *time.Location) *RESTFetcher {
	if loc == nil {
		loc = time.UTC
	}
	return &RESTFetcher{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Client:   deps.client(),
		Location: loc,
		breakers: deps.Breakers,
		metrics:  deps.Metrics,
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the REST API.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.PriceBar, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d",
		f.BaseURL, url.QueryEscape(resolver.NormalizeTicker(symbol)), days)

	start := time.Now()
	bars, err := resilience.Do(ctx, f.breakers, resilience.BreakerREST, func() ([]model.PriceBar, error) {
		return f.fetchBars(ctx, endpoint)
	})
	f.metrics.ObserveExternalAPI("rest", "bars_daily", start, err)
	if err != nil {
		return nil, err
	}
	return trimBars(bars, days), nil
}

func (f *RESTFetcher) fetchBars(ctx context.Context, endpoint string) ([]model.PriceBar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("fetch bars: status %d, body: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusNotFound {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}
	var raw []restBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode bars: %w", err))
	}
	bars := make([]model.PriceBar, len(raw))
	for i, rb := range raw {
		bars[i] = model.PriceBar{
			Date:   sessionDate(time.Unix(rb.Timestamp, 0), f.Location),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		}
	}
	// Ensure chronological order
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
