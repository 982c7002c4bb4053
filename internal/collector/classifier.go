package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resilience"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
)

// Classifier returns market cap, name, sector and industry for a ticker.
// Unknown fields are left empty; lookups never fail.
type Classifier interface {
	Classify(ctx context.Context, ticker string) model.Classification
}

// NoopClassifier classifies every ticker as unknown.
type NoopClassifier struct{}

func (NoopClassifier) Classify(context.Context, string) model.Classification {
	return model.Classification{}
}

const fmpBaseURL = "https://financialmodelingprep.com/api/v3"

// FMPClassifier uses the Financial Modeling Prep company profile endpoint.
// Successful lookups are cached for the life of the process.
type FMPClassifier struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	deps    Deps

	mu    sync.Mutex
	cache map[string]model.Classification
}

// NewFMPClassifier creates a classifier.
func NewFMPClassifier(deps Deps, apiKey string) *FMPClassifier {
	return &FMPClassifier{
		BaseURL: fmpBaseURL,
		APIKey:  apiKey,
		Client:  deps.client(),
		deps:    deps,
		cache:   make(map[string]model.Classification),
	}
}

// fmpProfile is the subset of the FMP profile response we use.
type fmpProfile struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	MktCap      float64 `json:"mktCap"`
	Industry    string  `json:"industry"`
	Sector      string  `json:"sector"`
}

func (c *FMPClassifier) Classify(ctx context.Context, ticker string) model.Classification {
	ticker = resolver.NormalizeTicker(ticker)

	c.mu.Lock()
	cached, ok := c.cache[ticker]
	c.mu.Unlock()
	if ok {
		return cached
	}

	start := time.Now()
	cls, err := resilience.Do(ctx, c.deps.Breakers, resilience.BreakerFMP, func() (model.Classification, error) {
		return c.fetchProfile(ctx, ticker)
	})
	c.deps.Metrics.ObserveExternalAPI("fmp", "profile", start, err)
	if err != nil {
		c.deps.Logger.Warn().Err(err).Str("symbol", ticker).Msg("classification lookup failed")
		return model.Classification{}
	}

	c.mu.Lock()
	c.cache[ticker] = cls
	c.mu.Unlock()
	return cls
}

func (c *FMPClassifier) fetchProfile(ctx context.Context, ticker string) (model.Classification, error) {
	u := fmt.Sprintf("%s/profile/%s?apikey=%s", c.BaseURL, url.PathEscape(ticker), url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Classification{}, resilience.Permanent(err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return model.Classification{}, fmt.Errorf("fmp fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.Classification{}, fmt.Errorf("fmp: status %d", resp.StatusCode)
	}

	var profiles []fmpProfile
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		return model.Classification{}, resilience.Permanent(fmt.Errorf("fmp decode: %w", err))
	}
	if len(profiles) == 0 {
		return model.Classification{}, resilience.Permanent(fmt.Errorf("fmp: no profile for %s", ticker))
	}

	p := profiles[0]
	cls := model.Classification{Name: p.CompanyName, Sector: p.Sector, Industry: p.Industry}
	if p.MktCap > 0 {
		mc := p.MktCap
		cls.MarketCap = &mc
	}
	return cls, nil
}
