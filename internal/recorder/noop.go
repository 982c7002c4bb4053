package recorder

import (
	"context"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(context.Context, *model.ScanReport) error { return nil }
func (n *NoopRecorder) LatestReport(context.Context) (*model.ScanReportRecord, error) {
	return nil, ErrNoReport
}
func (n *NoopRecorder) Close() error { return nil }
