package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/notifier"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/scanner"
)

// Runner executes scans.
type Runner interface {
	Run(ctx context.Context, label string, dryRun bool) (*model.ScanReport, error)
	Latest() *model.ScanReport
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Scheduler manages the cron-driven scans.
type Scheduler struct {
	Cron   *cron.Cron
	Runner Runner
	Ctx    context.Context
	loc    *time.Location
	logger zerolog.Logger
}

// NewScheduler creates a Scheduler whose cron expressions (with seconds) are
// evaluated in loc. A run still in progress causes the next tick to be skipped.
func NewScheduler(ctx context.Context, runner Runner, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{l: logger}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Runner: runner,
		Ctx:    ctx,
		loc:    loc,
		logger: logger,
	}
}

// RegisterAll registers the morning and evening scans. An empty expression
// disables that run.
func (s *Scheduler) RegisterAll(morningCron, eveningCron string) error {
	if morningCron != "" {
		if _, err := s.Cron.AddFunc(morningCron, func() { s.RunNow(scanner.LabelMorning) }); err != nil {
			return fmt.Errorf("register morning scan: %w", err)
		}
	}
	if eveningCron != "" {
		if _, err := s.Cron.AddFunc(eveningCron, func() { s.RunNow(scanner.LabelEvening) }); err != nil {
			return fmt.Errorf("register evening scan: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	for _, e := range s.Cron.Entries() {
		s.logger.Info().Time("next", e.Next).Msg("scan scheduled")
	}
	s.logger.Info().Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunNow executes a scan immediately and returns its report (nil on error).
func (s *Scheduler) RunNow(label string) *model.ScanReport {
	s.logger.Info().Str("label", label).Msg("running scan")
	report, err := s.Runner.Run(s.Ctx, label, false)
	if err != nil {
		s.logger.Error().Err(err).Str("label", label).Msg("scan failed")
		return nil
	}
	return report
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(strings.ToLower(command))
	if len(fields) == 0 {
		return ""
	}
	// Telegram appends @botname in group chats.
	cmd, _, _ := strings.Cut(fields[0], "@")

	switch cmd {
	case "/scan":
		label := scanner.LabelManual
		if len(fields) > 1 && fields[1] == "morning" {
			label = scanner.LabelMorning
		}
		report, err := s.Runner.Run(ctx, label, false)
		if errors.Is(err, scanner.ErrScanInProgress) {
			return "A scan is already running."
		}
		if err != nil {
			return fmt.Sprintf("Scan failed: %v", err)
		}
		if report.Skipped {
			return "Scan skipped: " + report.SkipReason
		}
		return notifier.FormatTelegramSummary(report.Stats)
	case "/status":
		return notifier.FormatStatus(s.Runner.Latest(), s.loc)
	default:
		return "Available commands:\n• /scan [morning] - run a scan now\n• /status - last scan result"
	}
}
