package resolver

import (
	"regexp"
	"strings"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

var (
	exchangePattern = regexp.MustCompile(`\b(?:NYSE(?:\s+AMERICAN|\s+MKT|\s+ARCA)?|NASDAQ(?:\s+GS|\s+GM|\s+CM)?|AMEX|OTC(?:QX|QB)?)\s*:\s*([A-Z]{1,5}(?:[.\-][A-Z])?)\b`)
	cashtagPattern  = regexp.MustCompile(`\$([A-Z]{1,5}(?:[.\-][A-Z])?)\b`)

	attributionPattern = regexp.MustCompile(`(?i)^[^/]+/\s*(?:PR Newswire|Business Wire|GlobeNewswire|Accesswire)\s*[:/—–-]\s*`)
	prVerbPattern      = regexp.MustCompile(`(?i)\s+(?:Announces?|Reports?|Completes?|Launches?|Signs?|Enters?|` +
		`Secures?|Receives?|Expands?|Awards?|Selects?|Closes?|Grants?|` +
		`Appoints?|Acquires?|Partners?|Agrees?|Files?|Achieves?|Confirms?|` +
		`Updates?|Provides?|Releases?|Presents?|Declares?|Regains?|Executes?)\b`)
	parentheticalPattern = regexp.MustCompile(`\s*\(.*?\)`)
)

// NameStrategy turns a headline into candidate issuer names to look up.
type NameStrategy struct {
	Name       string
	Candidates func(title string) []string
}

// DefaultNameStrategies returns the name heuristics in the order they are tried.
func DefaultNameStrategies() []NameStrategy {
	return []NameStrategy{
		{Name: "issuer-before-verb", Candidates: issuerBeforeVerb},
		{Name: "suffix-stripped", Candidates: suffixStripped},
	}
}

// IssuerPhrase isolates the issuer portion of a headline: wire attribution
// removed, cut at the first PR verb, parenthetical hints dropped.
func IssuerPhrase(title string) string {
	title = attributionPattern.ReplaceAllString(strings.TrimSpace(title), "")
	if loc := prVerbPattern.FindStringIndex(title); loc != nil {
		title = title[:loc[0]]
	}
	title = parentheticalPattern.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}

func issuerBeforeVerb(title string) []string {
	if p := IssuerPhrase(title); p != "" {
		return []string{p}
	}
	return nil
}

func suffixStripped(title string) []string {
	p := IssuerPhrase(title)
	s := StripCorporateSuffixes(p)
	if s == "" || s == p {
		return nil
	}
	return []string{s}
}

// Engine maps a news item to the tickers it is about.
type Engine struct {
	index      *NameIndex
	strategies []NameStrategy
}

// NewEngine creates an Engine. With no strategies the defaults are used.
// A nil index disables name resolution.
func NewEngine(index *NameIndex, strategies ...NameStrategy) *Engine {
	if len(strategies) == 0 {
		strategies = DefaultNameStrategies()
	}
	return &Engine{index: index, strategies: strategies}
}

// Resolve returns normalised, de-duplicated tickers for item. Sources are
// tried in priority order and the first that yields anything wins: feed
// tags, exchange-qualified mentions, cash-tags, then the name index.
func (e *Engine) Resolve(item model.RawNewsItem) []string {
	if ts := dedupe(item.InlineTickers); len(ts) > 0 {
		return ts
	}

	text := strings.ToUpper(item.Title + " " + item.Summary)
	if ts := dedupe(submatches(exchangePattern, text)); len(ts) > 0 {
		return ts
	}
	if ts := dedupe(submatches(cashtagPattern, text)); len(ts) > 0 {
		return ts
	}

	if t, _, ok := e.ResolveName(item.Title); ok {
		return []string{t}
	}
	return nil
}

// ResolveName runs the name strategies against title and returns the first
// index hit together with the name of the strategy that produced it.
func (e *Engine) ResolveName(title string) (ticker, strategy string, ok bool) {
	if e.index.Len() == 0 {
		return "", "", false
	}
	for _, s := range e.strategies {
		for _, c := range s.Candidates(title) {
			if len(c) <= 2 {
				continue
			}
			if t, found := e.index.Lookup(c); found {
				return t, s.Name, true
			}
		}
	}
	return "", "", false
}

func submatches(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func dedupe(tickers []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		n := NormalizeTicker(t)
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
