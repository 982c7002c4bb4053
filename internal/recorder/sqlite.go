package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/observability"
)

// SQLiteRecorder persists scan history to a SQLite database.
type SQLiteRecorder struct {
	db      *sql.DB
	mu      sync.Mutex
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, metrics *observability.Metrics, logger zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the HTTP server can read while a scan writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, metrics: metrics, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			run_id          TEXT PRIMARY KEY,
			run_label       TEXT,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER,
			window_start    INTEGER,
			skipped         INTEGER NOT NULL DEFAULT 0,
			skip_reason     TEXT,
			scanned         INTEGER,
			spikes          INTEGER,
			cap_filtered    INTEGER,
			pharma_filtered INTEGER,
			alerts          INTEGER,
			no_pr           INTEGER,
			fetch_failed    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON scan_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS scan_alerts (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL REFERENCES scan_runs(run_id),
			position        INTEGER NOT NULL,
			ticker          TEXT NOT NULL,
			company         TEXT,
			date            TEXT,
			volume_today    INTEGER,
			volume_median   INTEGER,
			volume_mean     INTEGER,
			multiple        REAL,
			price_close     REAL,
			pct_change      REAL,
			pr_headline     TEXT,
			pr_url          TEXT,
			pr_source       TEXT,
			pr_published_at TEXT,
			market_cap      REAL,
			sector          TEXT,
			industry        TEXT,
			quote_url       TEXT,
			chart_url       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_run ON scan_alerts(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ticker ON scan_alerts(ticker)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func unixOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func (r *SQLiteRecorder) RecordScan(ctx context.Context, report *model.ScanReport) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.metrics.RecordDBQuery("insert", "scan_runs", err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	s := report.Stats
	if _, err = tx.ExecContext(ctx, `INSERT INTO scan_runs
		(run_id, run_label, started_at, finished_at, window_start, skipped, skip_reason,
		 scanned, spikes, cap_filtered, pharma_filtered, alerts, no_pr, fetch_failed)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		report.RunID, report.RunLabel, report.StartedAt.Unix(),
		unixOrNull(report.FinishedAt), unixOrNull(report.WindowStart),
		report.Skipped, report.SkipReason,
		s.Scanned, s.Spikes, s.CapFiltered, s.PharmaFiltered, s.Alerts, s.NoPR, s.FetchFailed,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, a := range report.Alerts {
		rec := a.Record()
		if _, err = tx.ExecContext(ctx, `INSERT INTO scan_alerts
			(run_id, position, ticker, company, date, volume_today, volume_median, volume_mean,
			 multiple, price_close, pct_change, pr_headline, pr_url, pr_source, pr_published_at,
			 market_cap, sector, industry, quote_url, chart_url)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			report.RunID, i, rec.Ticker, rec.Company, rec.Date,
			rec.VolumeToday, rec.VolumeMedian, rec.VolumeMean,
			rec.Multiple, rec.PriceClose, rec.PctChange,
			rec.PRHeadline, rec.PRURL, rec.PRSource, rec.PRPublishedAt,
			rec.MarketCap, rec.Sector, rec.Industry, rec.QuoteURL, rec.ChartURL,
		); err != nil {
			return fmt.Errorf("insert alert %s: %w", rec.Ticker, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isoFromUnix(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return time.Unix(v.Int64, 0).UTC().Format(time.RFC3339)
}

// LatestReport loads the most recently started run and its alerts.
func (r *SQLiteRecorder) LatestReport(ctx context.Context) (rec *model.ScanReportRecord, err error) {
	defer func() {
		if !errors.Is(err, ErrNoReport) {
			r.metrics.RecordDBQuery("select", "scan_runs", err)
		}
	}()

	var (
		out                model.ScanReportRecord
		started            int64
		finished, windowAt sql.NullInt64
		skipReason         sql.NullString
	)
	row := r.db.QueryRowContext(ctx, `SELECT run_id, run_label, started_at, finished_at, window_start,
		skipped, skip_reason, scanned, spikes, cap_filtered, pharma_filtered, alerts, no_pr, fetch_failed
		FROM scan_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	err = row.Scan(&out.RunID, &out.RunLabel, &started, &finished, &windowAt,
		&out.Skipped, &skipReason,
		&out.Stats.Scanned, &out.Stats.Spikes, &out.Stats.CapFiltered, &out.Stats.PharmaFiltered,
		&out.Stats.Alerts, &out.Stats.NoPR, &out.Stats.FetchFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	out.StartedAt = time.Unix(started, 0).UTC().Format(time.RFC3339)
	out.FinishedAt = isoFromUnix(finished)
	out.WindowStart = isoFromUnix(windowAt)
	out.SkipReason = skipReason.String

	rows, err := r.db.QueryContext(ctx, `SELECT ticker, company, date, volume_today, volume_median, volume_mean,
		multiple, price_close, pct_change, pr_headline, pr_url, pr_source, pr_published_at,
		market_cap, sector, industry, quote_url, chart_url
		FROM scan_alerts WHERE run_id = ? ORDER BY position`, out.RunID)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	out.Alerts = []model.AlertRecord{}
	for rows.Next() {
		var a model.AlertRecord
		var mc sql.NullFloat64
		if err = rows.Scan(&a.Ticker, &a.Company, &a.Date, &a.VolumeToday, &a.VolumeMedian, &a.VolumeMean,
			&a.Multiple, &a.PriceClose, &a.PctChange, &a.PRHeadline, &a.PRURL, &a.PRSource, &a.PRPublishedAt,
			&mc, &a.Sector, &a.Industry, &a.QuoteURL, &a.ChartURL); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if mc.Valid {
			v := mc.Float64
			a.MarketCap = &v
		}
		out.Alerts = append(out.Alerts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return &out, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
