package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resilience"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
)

const edgarTickersURL = "https://www.sec.gov/files/company_tickers.json"

// EDGARLoader builds the company-name index from SEC EDGAR's ticker list.
// SEC requires a descriptive User-Agent with contact details.
type EDGARLoader struct {
	URL       string
	UserAgent string
	Client    *http.Client
	deps      Deps
}

// NewEDGARLoader creates a loader.
func NewEDGARLoader(deps Deps, userAgent string) *EDGARLoader {
	return &EDGARLoader{URL: edgarTickersURL, UserAgent: userAgent, Client: deps.client(), deps: deps}
}

type edgarEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Load downloads the ticker list and returns the name index. Entries are
// added in the file's rank order so the first listed ticker of a company wins.
func (l *EDGARLoader) Load(ctx context.Context) (*resolver.NameIndex, error) {
	start := time.Now()
	entries, err := resilience.Do(ctx, l.deps.Breakers, resilience.BreakerEDGAR, func() (map[string]edgarEntry, error) {
		return l.fetch(ctx)
	})
	l.deps.Metrics.ObserveExternalAPI("edgar", "company_tickers", start, err)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})

	idx := resolver.NewNameIndex()
	for _, k := range keys {
		e := entries[k]
		idx.Add(e.Title, e.Ticker)
	}
	l.deps.Logger.Info().Int("companies", len(entries)).Int("names", idx.Len()).Msg("loaded EDGAR name index")
	return idx, nil
}

func (l *EDGARLoader) fetch(ctx context.Context) (map[string]edgarEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	req.Header.Set("User-Agent", l.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edgar fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("edgar: status %d", resp.StatusCode)
	}

	var entries map[string]edgarEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("edgar decode: %w", err))
	}
	return entries, nil
}
