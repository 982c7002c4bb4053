// Package notifier delivers scan results to chat channels.
package notifier

import (
	"context"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

// Notifier is a downstream alert sink. Deliveries are attempted once; the
// caller logs failures and carries on.
type Notifier interface {
	Name() string
	SendAlerts(ctx context.Context, alerts []model.Alert) error
	SendSummary(ctx context.Context, stats model.ScanStats) error
}
