package scoring

import (
	"fmt"
	"strings"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
)

// ExclusionRules configures the exclusion filter.
type ExclusionRules struct {
	Denylist         []string
	Sectors          []string
	IndustryKeywords []string
	MaxMarketCap     float64 // 0 disables the ceiling
}

// ExclusionFilter drops tickers that belong to low-signal sectors or are denylisted.
type ExclusionFilter struct {
	denylist     map[string]struct{}
	sectors      []string
	keywords     []string
	maxMarketCap float64
}

// NewExclusionFilter creates a filter. Denylist entries are normalised and
// keywords lower-cased; keyword order is preserved.
func NewExclusionFilter(r ExclusionRules) *ExclusionFilter {
	f := &ExclusionFilter{
		denylist:     make(map[string]struct{}, len(r.Denylist)),
		sectors:      r.Sectors,
		maxMarketCap: r.MaxMarketCap,
	}
	for _, t := range r.Denylist {
		if n := resolver.NormalizeTicker(t); n != "" {
			f.denylist[n] = struct{}{}
		}
	}
	for _, k := range r.IndustryKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			f.keywords = append(f.keywords, k)
		}
	}
	return f
}

// CheckMarketCap reports whether a ticker passes the market-cap ceiling.
// An unknown cap is allowed (presumed micro-cap).
func (f *ExclusionFilter) CheckMarketCap(marketCap *float64) bool {
	if f.maxMarketCap <= 0 || marketCap == nil {
		return true
	}
	return *marketCap < f.maxMarketCap
}

// IsExcluded checks, in order, the denylist, the excluded sectors, industry
// keywords and keywords in text. The first match decides.
func (f *ExclusionFilter) IsExcluded(ticker, sector, industry, text string) model.ExclusionVerdict {
	if _, ok := f.denylist[resolver.NormalizeTicker(ticker)]; ok {
		return model.ExclusionVerdict{Excluded: true, Reason: "Denylist"}
	}

	if sector != "" {
		for _, s := range f.sectors {
			if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(sector)) {
				return model.ExclusionVerdict{Excluded: true, Reason: fmt.Sprintf("Sector: %s", sector)}
			}
		}
	}

	if industry != "" {
		lower := strings.ToLower(industry)
		for _, k := range f.keywords {
			if strings.Contains(lower, k) {
				return model.ExclusionVerdict{Excluded: true, Reason: fmt.Sprintf("Industry Keyword: %s in %s", k, industry)}
			}
		}
	}

	if text != "" {
		lower := strings.ToLower(text)
		for _, k := range f.keywords {
			if strings.Contains(lower, k) {
				return model.ExclusionVerdict{Excluded: true, Reason: fmt.Sprintf("PR Keyword: %s", k)}
			}
		}
	}

	return model.ExclusionVerdict{}
}
