// Package recorder persists scan reports for later analysis.
package recorder

import (
	"context"
	"errors"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

// ErrNoReport is returned when no scan has been recorded yet.
var ErrNoReport = errors.New("no scan report recorded")

// Recorder persists the outcome of each scan.
type Recorder interface {
	RecordScan(ctx context.Context, report *model.ScanReport) error
	Close() error
}

// ReportStore also serves the most recent report.
type ReportStore interface {
	Recorder
	LatestReport(ctx context.Context) (*model.ScanReportRecord, error)
}
