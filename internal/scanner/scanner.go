// Package scanner runs one batch pass: resolve the session, collect
// candidates, detect volume spikes, apply exclusions and emit alerts.
package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/calendar"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/collector"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/notifier"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/observability"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/recorder"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/scoring"
)

// Run labels.
const (
	LabelMorning = "Morning"
	LabelEvening = "Evening"
	LabelManual  = "Manual"
)

// ErrScanInProgress is returned when a scan is requested while one is running.
var ErrScanInProgress = errors.New("scan already in progress")

// CandidateSource builds the ticker -> PR map for a search window.
type CandidateSource interface {
	BuildCandidates(ctx context.Context, windowStart time.Time, tradingDates calendar.TradingDates) *model.CandidateMap
	Project(cm *model.CandidateMap, ticker string) []model.PRItem
}

// UniverseSource enumerates tickers for the non PR-first modes.
type UniverseSource interface {
	Universe(ctx context.Context, mode string, watchlist []string) []string
}

// Config selects the reference instrument and the ticker universe.
type Config struct {
	ReferenceSymbol string
	UniverseMode    string
	Watchlist       []string
}

// Deps are the collaborators of a Scanner. Universe, Classifier, Metrics,
// Notifiers and Recorders are optional.
type Deps struct {
	Calendar   *calendar.Resolver
	Candidates CandidateSource
	Collector  *collector.Collector
	Universe   UniverseSource
	Detector   *scoring.Detector
	Exclusions *scoring.ExclusionFilter
	Classifier collector.Classifier
	Notifiers  []notifier.Notifier
	Recorders  []recorder.Recorder
	History    recorder.ReportStore // serves LatestReport before the first run
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

// Scanner executes scans. Only one scan runs at a time.
type Scanner struct {
	cfg     Config
	deps    Deps
	now     func() time.Time
	running atomic.Bool

	mu     sync.RWMutex
	latest *model.ScanReport
}

// New creates a Scanner.
func New(cfg Config, deps Deps) *Scanner {
	if cfg.ReferenceSymbol == "" {
		cfg.ReferenceSymbol = "SPY"
	}
	if cfg.UniverseMode == "" {
		cfg.UniverseMode = collector.ModePRFirst
	}
	if deps.Classifier == nil {
		deps.Classifier = collector.NoopClassifier{}
	}
	return &Scanner{cfg: cfg, deps: deps, now: time.Now}
}

// SetClock replaces the time source.
func (s *Scanner) SetClock(now func() time.Time) { s.now = now }

// Location returns the exchange timezone.
func (s *Scanner) Location() *time.Location { return s.deps.Calendar.Location() }

// Latest returns the most recent report produced by this process, or nil.
func (s *Scanner) Latest() *model.ScanReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// LatestReport returns the latest report of this process, falling back to
// the history store.
func (s *Scanner) LatestReport(ctx context.Context) (*model.ScanReportRecord, error) {
	if r := s.Latest(); r != nil {
		rec := r.Record()
		return &rec, nil
	}
	if s.deps.History != nil {
		return s.deps.History.LatestReport(ctx)
	}
	return nil, recorder.ErrNoReport
}

// Run executes one scan. Per-ticker failures are counted, never returned;
// the only errors are ErrScanInProgress and context cancellation. With
// dryRun no notifications are sent, but the report is still recorded.
func (s *Scanner) Run(ctx context.Context, label string, dryRun bool) (*model.ScanReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer s.running.Store(false)

	start := s.now()
	report := &model.ScanReport{
		RunID:     uuid.NewString(),
		RunLabel:  label,
		StartedAt: start.UTC(),
	}
	log := s.deps.Logger.With().Str("run_id", report.RunID).Str("label", label).Logger()
	log.Info().Bool("dry_run", dryRun).Msg("scan started")

	reference, refErr := s.deps.Collector.Reference(ctx, s.cfg.ReferenceSymbol)
	if refErr != nil {
		log.Warn().Err(refErr).Msg("reference series unavailable")
	}
	session := s.deps.Calendar.Resolve(reference, refErr, label, start)
	report.WindowStart = session.SearchStart

	outcome := "ok"
	if !session.Proceed {
		report.Skipped = true
		report.SkipReason = session.Reason
		outcome = "skipped"
		log.Info().Str("reason", session.Reason).Msg("market not open, skipping scan")
	} else {
		log.Info().Time("window_start", session.SearchStart).Str("session", session.Reason).Msg("session resolved")
		s.scan(ctx, log, session, report)
	}

	if err := ctx.Err(); err != nil {
		s.deps.Metrics.RecordScan(label, "canceled", s.now().Sub(start))
		return nil, err
	}

	report.FinishedAt = s.now().UTC()
	if !dryRun && !report.Skipped {
		s.notify(ctx, log, report)
	}
	for _, r := range s.deps.Recorders {
		if err := r.RecordScan(ctx, report); err != nil {
			log.Error().Err(err).Msg("record scan")
		}
	}

	s.deps.Metrics.RecordScan(label, outcome, report.FinishedAt.Sub(start))
	s.deps.Metrics.RecordScanStats(report.Stats)

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	log.Info().
		Int("scanned", report.Stats.Scanned).
		Int("spikes", report.Stats.Spikes).
		Int("alerts", report.Stats.Alerts).
		Dur("took", report.FinishedAt.Sub(start)).
		Msg("scan complete")
	return report, nil
}

func (s *Scanner) tickers(ctx context.Context, cm *model.CandidateMap) []string {
	if s.cfg.UniverseMode == collector.ModePRFirst || s.deps.Universe == nil {
		return cm.Tickers()
	}
	return s.deps.Universe.Universe(ctx, s.cfg.UniverseMode, s.cfg.Watchlist)
}

func (s *Scanner) scan(ctx context.Context, log zerolog.Logger, session calendar.Session, report *model.ScanReport) {
	cm := s.deps.Candidates.BuildCandidates(ctx, session.SearchStart, session.TradingDates)
	tickers := s.tickers(ctx, cm)
	log.Info().Int("tickers", len(tickers)).Str("mode", s.cfg.UniverseMode).Msg("universe resolved")

	stats := &report.Stats
	for _, h := range s.deps.Collector.Collect(ctx, tickers) {
		if ctx.Err() != nil {
			return
		}
		stats.Scanned++
		if h.Err != nil {
			stats.FetchFailed++
			continue
		}
		alert, ok := s.evaluate(ctx, log, cm, h, stats)
		if !ok {
			continue
		}
		stats.Alerts++
		report.Alerts = append(report.Alerts, alert)
	}
}

// evaluate runs one ticker through spike detection and the exclusion
// rules. It updates stats for every rejection.
func (s *Scanner) evaluate(ctx context.Context, log zerolog.Logger, cm *model.CandidateMap, h collector.History, stats *model.ScanStats) (model.Alert, bool) {
	spike := s.deps.Detector.CheckSpike(h.Bars)
	if spike == nil {
		return model.Alert{}, false
	}
	stats.Spikes++
	log.Info().Str("symbol", h.Symbol).Float64("multiple", spike.Multiple).Msg("spike detected")

	cls := s.deps.Classifier.Classify(ctx, h.Symbol)
	if !s.deps.Exclusions.CheckMarketCap(cls.MarketCap) {
		stats.CapFiltered++
		log.Info().Str("symbol", h.Symbol).Float64("market_cap", *cls.MarketCap).Msg("excluded by market cap")
		return model.Alert{}, false
	}
	if v := s.deps.Exclusions.IsExcluded(h.Symbol, cls.Sector, cls.Industry, ""); v.Excluded {
		stats.PharmaFiltered++
		log.Info().Str("symbol", h.Symbol).Str("reason", v.Reason).Msg("excluded")
		return model.Alert{}, false
	}

	prs := s.deps.Candidates.Project(cm, h.Symbol)
	if len(prs) == 0 {
		stats.NoPR++
		log.Info().Str("symbol", h.Symbol).Msg("no recent PR found")
		return model.Alert{}, false
	}
	top := prs[0]
	if v := s.deps.Exclusions.IsExcluded(h.Symbol, cls.Sector, cls.Industry, top.Headline); v.Excluded {
		stats.PharmaFiltered++
		log.Info().Str("symbol", h.Symbol).Str("reason", v.Reason).Msg("excluded by PR text")
		return model.Alert{}, false
	}

	company := cls.Name
	if company == "" {
		company = h.Symbol
	}
	return model.Alert{
		Ticker:    h.Symbol,
		Company:   company,
		Spike:     *spike,
		PR:        top,
		MarketCap: cls.MarketCap,
		Sector:    cls.Sector,
		Industry:  cls.Industry,
		QuoteURL:  QuoteURL(h.Symbol),
		ChartURL:  ChartURL(h.Symbol),
	}, true
}

func (s *Scanner) notify(ctx context.Context, log zerolog.Logger, report *model.ScanReport) {
	for _, n := range s.deps.Notifiers {
		err := n.SendAlerts(ctx, report.Alerts)
		if err != nil {
			log.Error().Err(err).Str("sink", n.Name()).Msg("send alerts")
		}
		s.deps.Metrics.RecordNotification(n.Name(), err)

		err = n.SendSummary(ctx, report.Stats)
		if err != nil {
			log.Error().Err(err).Str("sink", n.Name()).Msg("send summary")
		}
		s.deps.Metrics.RecordNotification(n.Name(), err)
	}
}

// QuoteURL links to the Yahoo Finance quote page.
func QuoteURL(ticker string) string { return "https://finance.yahoo.com/quote/" + ticker }

// ChartURL links to the Yahoo Finance chart page.
func ChartURL(ticker string) string { return "https://finance.yahoo.com/chart/" + ticker }
