package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resilience"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
)

// Universe modes.
const (
	ModePRFirst   = "PR_FIRST"
	ModeWatchlist = "WATCHLIST"
	ModeSP500     = "SP500"
)

const sp500URL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// sp500Fallback keeps SP500 mode usable when the scrape fails.
var sp500Fallback = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "TSLA", "NVDA"}

// UniverseProvider enumerates tickers to scan for the non PR-first modes.
type UniverseProvider struct {
	SP500URL string
	Client   *http.Client
	deps     Deps
}

// NewUniverseProvider creates a UniverseProvider.
func NewUniverseProvider(deps Deps) *UniverseProvider {
	return &UniverseProvider{SP500URL: sp500URL, Client: deps.client(), deps: deps}
}

// Universe returns normalised, de-duplicated tickers for mode. PR_FIRST
// returns nil: the candidate map supplies the tickers in that mode.
func (u *UniverseProvider) Universe(ctx context.Context, mode string, watchlist []string) []string {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case ModePRFirst, "":
		return nil
	case ModeWatchlist:
		return normalizeAll(watchlist)
	case ModeSP500, "SP1500":
		tickers, err := resilience.Do(ctx, u.deps.Breakers, resilience.BreakerWiki, func() ([]string, error) {
			return u.scrapeSP500(ctx)
		})
		if err != nil || len(tickers) == 0 {
			u.deps.Logger.Error().Err(err).Msg("S&P 500 scrape failed, using fallback list")
			return normalizeAll(sp500Fallback)
		}
		return normalizeAll(tickers)
	default:
		u.deps.Logger.Warn().Str("mode", mode).Msg("unknown universe mode, returning empty list")
		return nil
	}
}

func (u *UniverseProvider) scrapeSP500(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.SP500URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := u.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sp500 fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sp500: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sp500 parse: %w", err)
	}

	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	var tickers []string
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		if sym := strings.TrimSpace(row.Find("td").First().Text()); sym != "" {
			tickers = append(tickers, sym)
		}
	})
	return tickers, nil
}

func normalizeAll(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		n := resolver.NormalizeTicker(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
