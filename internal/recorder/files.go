package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

const (
	ReportJSONName     = "daily_report.json"
	ReportMarkdownName = "daily_report.md"
)

// FileRecorder writes the latest report as daily_report.json and
// daily_report.md, replacing the previous run's files.
type FileRecorder struct {
	Dir string
	loc *time.Location
}

// NewFileRecorder creates the report directory if needed. Dates in the
// markdown report are shown in loc.
func NewFileRecorder(dir string, loc *time.Location) (*FileRecorder, error) {
	if dir == "" {
		dir = "."
	}
	if loc == nil {
		loc = time.UTC
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &FileRecorder{Dir: dir, loc: loc}, nil
}

func (f *FileRecorder) RecordScan(_ context.Context, report *model.ScanReport) error {
	rec := report.Record()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(f.Dir, ReportJSONName), data); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(f.Dir, ReportMarkdownName), []byte(FormatMarkdown(report, f.loc)))
}

// LatestReport reads back daily_report.json.
func (f *FileRecorder) LatestReport(context.Context) (*model.ScanReportRecord, error) {
	data, err := os.ReadFile(filepath.Join(f.Dir, ReportJSONName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("read report: %w", err)
	}
	var rec model.ScanReportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rec, nil
}

func (f *FileRecorder) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// FormatMarkdown renders the human-readable daily report.
func FormatMarkdown(r *model.ScanReport, loc *time.Location) string {
	var b strings.Builder
	s := r.Stats
	b.WriteString("# Daily Spike Report\n\n")
	b.WriteString(fmt.Sprintf("**Date:** %s\n", r.StartedAt.In(loc).Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("**Run:** %s (%s)\n", r.RunLabel, r.RunID))
	if r.Skipped {
		b.WriteString(fmt.Sprintf("**Skipped:** %s\n", r.SkipReason))
		return b.String()
	}
	b.WriteString(fmt.Sprintf("**Stats:** scanned %d, spikes %d, cap filtered %d, sector filtered %d, no PR %d, fetch failed %d, alerts %d\n\n",
		s.Scanned, s.Spikes, s.CapFiltered, s.PharmaFiltered, s.NoPR, s.FetchFailed, s.Alerts))
	if len(r.Alerts) > 0 {
		b.WriteString("## Alerts\n")
		for _, a := range r.Alerts {
			b.WriteString(fmt.Sprintf("- **%s**: %.2fx Vol, %.2f%% Price\n", a.Ticker, a.Spike.Multiple, a.Spike.PctChange))
			b.WriteString(fmt.Sprintf("  - [%s](%s)\n", a.PR.Headline, a.PR.URL))
		}
	}
	return b.String()
}
