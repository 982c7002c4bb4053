// Package candidates turns the feed snapshot into a ticker -> press release map.
package candidates

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/calendar"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
)

// Selection orders the PRs returned by GetPRs.
type Selection string

const (
	// SelectArrival keeps feed-arrival order.
	SelectArrival Selection = "arrival"
	// SelectNewest sorts by publish time, newest first.
	SelectNewest Selection = "newest"
)

const (
	DefaultExcludeStart = "09:30"
	DefaultExcludeEnd   = "16:00"
)

// ItemSource supplies the current feed snapshot.
type ItemSource interface {
	Items(ctx context.Context) []model.RawNewsItem
}

// TickerResolver maps a news item to tickers.
type TickerResolver interface {
	Resolve(item model.RawNewsItem) []string
}

// Config configures the pipeline.
type Config struct {
	RequiredKeywords []string
	ExcludeStart     string // exchange-local "HH:MM[:SS]"
	ExcludeEnd       string
	Selection        Selection
	Location         *time.Location
}

// Pipeline filters feed items and groups them by resolved ticker.
type Pipeline struct {
	source    ItemSource
	resolver  TickerResolver
	keywords  []string
	exclStart int // seconds since local midnight
	exclEnd   int
	selection Selection
	loc       *time.Location
	logger    zerolog.Logger
}

// New creates a Pipeline. A malformed exclusion window falls back to
// 09:30-16:00 and an unknown selection to arrival order.
func New(source ItemSource, res TickerResolver, cfg Config, logger zerolog.Logger) *Pipeline {
	p := &Pipeline{
		source:    source,
		resolver:  res,
		selection: cfg.Selection,
		loc:       cfg.Location,
		logger:    logger,
	}
	if p.loc == nil {
		p.loc = calendar.LoadLocation(calendar.DefaultTimezone)
	}
	if p.selection != SelectNewest {
		p.selection = SelectArrival
	}
	for _, k := range cfg.RequiredKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			p.keywords = append(p.keywords, k)
		}
	}

	start, errS := secondsOfDay(cfg.ExcludeStart)
	end, errE := secondsOfDay(cfg.ExcludeEnd)
	if errS != nil || errE != nil {
		logger.Warn().Str("start", cfg.ExcludeStart).Str("end", cfg.ExcludeEnd).
			Msg("invalid exclusion window, using session hours")
		start, _ = secondsOfDay(DefaultExcludeStart)
		end, _ = secondsOfDay(DefaultExcludeEnd)
	}
	p.exclStart, p.exclEnd = start, end
	return p
}

func secondsOfDay(s string) (int, error) {
	h, m, sec, err := calendar.ParseClock(s)
	if err != nil {
		return 0, err
	}
	return h*3600 + m*60 + sec, nil
}

// BuildCandidates returns every ticker mentioned by a qualifying item
// published after windowStart. tradingDates nil means the calendar is
// unknown and weekdays are assumed to be sessions.
func (p *Pipeline) BuildCandidates(ctx context.Context, windowStart time.Time, tradingDates calendar.TradingDates) *model.CandidateMap {
	cm := model.NewCandidateMap()
	var tooOld, noKeyword, inSession, unresolved int

	for _, item := range p.source.Items(ctx) {
		if !item.PublishedAt.After(windowStart) {
			tooOld++
			continue
		}
		if !p.hasKeyword(item) {
			noKeyword++
			continue
		}
		if p.inSessionWindow(item.PublishedAt, tradingDates) {
			inSession++
			continue
		}
		tickers := p.resolver.Resolve(item)
		if len(tickers) == 0 {
			unresolved++
			continue
		}
		for _, t := range tickers {
			cm.Add(t, item)
		}
	}

	p.logger.Info().
		Int("candidates", cm.Len()).
		Int("too_old", tooOld).
		Int("no_keyword", noKeyword).
		Int("in_session", inSession).
		Int("unresolved", unresolved).
		Msg("built candidate map")
	return cm
}

func (p *Pipeline) hasKeyword(item model.RawNewsItem) bool {
	if len(p.keywords) == 0 {
		return true
	}
	text := strings.ToLower(item.Title + " " + item.Summary)
	for _, k := range p.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// inSessionWindow reports whether a PR was published during the exclusion
// window of a trading day. Both ends are inclusive; a window whose start is
// after its end wraps past midnight.
func (p *Pipeline) inSessionWindow(publishedAt time.Time, tradingDates calendar.TradingDates) bool {
	local := publishedAt.In(p.loc)
	if tradingDates != nil {
		if !tradingDates.Contains(local) {
			return false
		}
	} else if !calendar.IsWeekday(local, p.loc) {
		return false
	}

	tod := local.Hour()*3600 + local.Minute()*60 + local.Second()
	if p.exclStart <= p.exclEnd {
		return tod >= p.exclStart && tod <= p.exclEnd
	}
	return tod >= p.exclStart || tod <= p.exclEnd
}

// GetPRs returns the press releases matched to ticker, top candidate first.
func (p *Pipeline) GetPRs(ctx context.Context, ticker string, windowStart time.Time, tradingDates calendar.TradingDates) []model.PRItem {
	return p.Project(p.BuildCandidates(ctx, windowStart, tradingDates), ticker)
}

// Project converts the items recorded for ticker into PRItems using the
// configured selection order.
func (p *Pipeline) Project(cm *model.CandidateMap, ticker string) []model.PRItem {
	ticker = resolver.NormalizeTicker(ticker)
	raw := cm.Get(ticker)
	if len(raw) == 0 {
		return nil
	}

	out := make([]model.PRItem, 0, len(raw))
	for _, it := range raw {
		out = append(out, model.PRItem{
			Ticker:      ticker,
			Headline:    it.Title,
			URL:         it.Link,
			Source:      it.Source,
			PublishedAt: it.PublishedAt,
		})
	}
	if p.selection == SelectNewest {
		sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	}
	return out
}
