package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/observability"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resilience"
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchDailyBars returns up to days daily bars, oldest first. Bar dates
	// are midnight of the session date in the exchange timezone.
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.PriceBar, error)
	Name() string
}

// Deps are the shared collaborators of the HTTP-backed providers.
type Deps struct {
	Client   *http.Client
	Breakers *resilience.Registry
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

func (d Deps) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// NewHTTPClient creates an HTTP client with optional proxy support.
func NewHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// sessionDate returns midnight of t's calendar date in loc.
func sessionDate(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

func trimBars(bars []model.PriceBar, days int) []model.PriceBar {
	if days > 0 && len(bars) > days {
		return bars[len(bars)-days:]
	}
	return bars
}
