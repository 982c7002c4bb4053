package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/calendar"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/candidates"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/collector"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/config"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/feeds"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/logging"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/notifier"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/observability"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/recorder"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resilience"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/scanner"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/scoring"
)

// app holds the wired components shared by the run and daemon commands.
type app struct {
	registry  *prometheus.Registry
	metrics   *observability.Metrics
	breakers  *resilience.Registry
	scanner   *scanner.Scanner
	telegram  *notifier.TelegramNotifier
	recorders []recorder.Recorder
	logger    zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = observability.NewMetrics(a.registry)
	a.breakers = resilience.NewRegistry(resilience.DefaultConfig, logging.Component(logger, "breaker"), a.metrics)

	loc := calendar.LoadLocation(cfg.Market.Timezone)
	client := collector.NewHTTPClient(cfg.Proxy, cfg.PR.RequestTimeout)
	deps := collector.Deps{
		Client:   client,
		Breakers: a.breakers,
		Metrics:  a.metrics,
		Logger:   logging.Component(logger, "collector"),
	}

	fetcher, err := newFetcher(cfg, deps, loc)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("source", fetcher.Name()).Msg("price data source")

	agg := feeds.NewAggregator(cfg.PR.Feeds,
		feeds.WithHTTPClient(client),
		feeds.WithTimeout(cfg.PR.RequestTimeout),
		feeds.WithBreakers(a.breakers),
		feeds.WithMetrics(a.metrics),
		feeds.WithLogger(logging.Component(logger, "feeds")),
	)
	cache := feeds.NewCache(agg, cfg.PR.CacheTTL)

	index, err := collector.NewEDGARLoader(deps, cfg.SEC.UserAgent).Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("EDGAR name index unavailable, resolving by symbol only")
		index = resolver.NewNameIndex()
	}
	pipeline := candidates.New(cache, resolver.NewEngine(index), candidates.Config{
		RequiredKeywords: cfg.PR.RequiredKeywords,
		ExcludeStart:     cfg.PR.ExcludeTimeStart,
		ExcludeEnd:       cfg.PR.ExcludeTimeEnd,
		Selection:        candidates.Selection(cfg.PR.Selection),
		Location:         loc,
	}, logging.Component(logger, "candidates"))

	denylist, err := config.LoadDenylist(cfg.Exclusions.TickersDenylistPath, logger)
	if err != nil {
		return nil, err
	}
	exclusions := scoring.NewExclusionFilter(scoring.ExclusionRules{
		Denylist:         denylist,
		Sectors:          cfg.Exclusions.Sectors,
		IndustryKeywords: cfg.Exclusions.IndustriesKeywords,
		MaxMarketCap:     cfg.Exclusions.MaxMarketCap,
	})
	detector := scoring.NewDetector(scoring.Thresholds{
		MedianMultiple: cfg.Thresholds.VolumeMultipleMedian,
		MeanMultiple:   cfg.Thresholds.VolumeMultipleMean,
		Lookback:       cfg.Thresholds.LookbackDays,
		MinAbsVolume:   cfg.Thresholds.MinAbsVolume,
		MinAbsPctMove:  cfg.Thresholds.MinAbsPctMove,
	})

	var classifier collector.Classifier = collector.NoopClassifier{}
	if cfg.Classification.FMPAPIKey != "" {
		classifier = collector.NewFMPClassifier(deps, cfg.Classification.FMPAPIKey)
	} else {
		logger.Warn().Msg("no FMP API key, sector and market cap filters are inactive")
	}

	notifiers := a.buildNotifiers(cfg, client)
	history := a.buildRecorders(cfg, loc)

	a.scanner = scanner.New(scanner.Config{
		ReferenceSymbol: cfg.Market.ReferenceSymbol,
		UniverseMode:    cfg.Universe.Mode,
		Watchlist:       cfg.Universe.Watchlist,
	}, scanner.Deps{
		Calendar:   calendar.NewResolver(loc, cfg.Market.CloseTime),
		Candidates: pipeline,
		Collector:  collector.NewCollector(fetcher, cfg.Thresholds.HistoryDays, cfg.Scan.Workers, logging.Component(logger, "collector")),
		Universe:   collector.NewUniverseProvider(deps),
		Detector:   detector,
		Exclusions: exclusions,
		Classifier: classifier,
		Notifiers:  notifiers,
		Recorders:  a.recorders,
		History:    history,
		Metrics:    a.metrics,
		Logger:     logging.Component(logger, "scanner"),
	})
	return a, nil
}

func newFetcher(cfg *config.Config, deps collector.Deps, loc *time.Location) (collector.Fetcher, error) {
	switch cfg.DataSource.Provider {
	case "yahoo":
		return collector.NewYahooFetcher(deps, loc, cfg.Scan.RateLimitPerSec), nil
	case "rest":
		return collector.NewRESTFetcher(deps, cfg.DataSource.BaseURL, cfg.DataSource.APIKey, loc), nil
	case "mock":
		return &collector.MockFetcher{}, nil
	default:
		return nil, fmt.Errorf("unknown data source provider %q", cfg.DataSource.Provider)
	}
}

func (a *app) buildNotifiers(cfg *config.Config, client *http.Client) []notifier.Notifier {
	var out []notifier.Notifier
	if cfg.Slack.WebhookURL != "" {
		out = append(out, notifier.NewSlackNotifier(cfg.Slack.WebhookURL, client, logging.Component(a.logger, "slack")))
	}
	if cfg.Telegram.BotToken != "" {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, client, logging.Component(a.logger, "telegram"))
		out = append(out, a.telegram)
	}
	if len(out) == 0 {
		a.logger.Warn().Msg("no notifiers configured, alerts are only written to reports")
	}
	return out
}

// buildRecorders returns the store that serves LatestReport: SQLite when it
// opens, else the file report, else a no-op store.
func (a *app) buildRecorders(cfg *config.Config, loc *time.Location) recorder.ReportStore {
	var history recorder.ReportStore = recorder.NewNoopRecorder()

	files, err := recorder.NewFileRecorder(cfg.Report.Dir, loc)
	if err != nil {
		a.logger.Warn().Err(err).Str("dir", cfg.Report.Dir).Msg("init file recorder failed, daily report disabled")
	} else {
		a.recorders = append(a.recorders, files)
		history = files
	}

	if cfg.Database.SQLitePath == "" {
		return history
	}
	db, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, a.metrics, logging.Component(a.logger, "recorder"))
	if err != nil {
		a.logger.Warn().Err(err).Msg("init sqlite recorder failed, scan history disabled")
		return history
	}
	a.recorders = append(a.recorders, db)
	return db
}

// Close releases the recorders.
func (a *app) Close() {
	for _, r := range a.recorders {
		if err := r.Close(); err != nil {
			a.logger.Error().Err(err).Msg("close recorder")
		}
	}
}
