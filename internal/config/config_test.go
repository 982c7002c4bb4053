package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "thresholds: [unclosed"))
	assert.ErrorContains(t, err, "parse config")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yaml", "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 3.0, cfg.Thresholds.VolumeMultipleMedian)
	assert.Equal(t, 20, cfg.Thresholds.LookbackDays)
	assert.Equal(t, 60, cfg.Thresholds.HistoryDays)
	assert.Len(t, cfg.PR.Feeds, 4)
	assert.Equal(t, 10*time.Minute, cfg.PR.CacheTTL)
	assert.Equal(t, "09:30", cfg.PR.ExcludeTimeStart)
	assert.Equal(t, "16:00", cfg.PR.ExcludeTimeEnd)
	assert.Equal(t, "arrival", cfg.PR.Selection)
	assert.Equal(t, "America/New_York", cfg.Market.Timezone)
	assert.Equal(t, "SPY", cfg.Market.ReferenceSymbol)
	assert.Equal(t, "PR_FIRST", cfg.Universe.Mode)
	assert.Equal(t, 8, cfg.Scan.Workers)
	assert.Equal(t, "yahoo", cfg.DataSource.Provider)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileValuesAndEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
thresholds:
  volume_multiple_median: 4
  volume_multiple_mean: 2.5
  lookback_days: 10
  min_abs_volume: 50000
  history_days: 30
exclusions:
  tickers_denylist_path: config/denylist.txt
  sectors: [Healthcare]
  industries_keywords: [biotech, pharma]
  max_market_cap: 2000000000
pr:
  feeds:
    - name: wire
      url: https://example.com/rss
  cache_ttl: 5m
  selection: newest
universe:
  mode: watchlist
  watchlist: [AAPL, brk.b]
slack:
  webhook_url: https://hooks.slack.com/file
`)
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/env")
	t.Setenv("FMP_API_KEY", "fmp-key")
	t.Setenv("SCAN_WORKERS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4.0, cfg.Thresholds.VolumeMultipleMedian)
	assert.Equal(t, 2.5, cfg.Thresholds.VolumeMultipleMean)
	assert.Equal(t, 10, cfg.Thresholds.LookbackDays)
	assert.Equal(t, []string{"Healthcare"}, cfg.Exclusions.Sectors)
	assert.Equal(t, []string{"biotech", "pharma"}, cfg.Exclusions.IndustriesKeywords)
	assert.Equal(t, 2e9, cfg.Exclusions.MaxMarketCap)
	require.Len(t, cfg.PR.Feeds, 1)
	assert.Equal(t, "wire", cfg.PR.Feeds[0].Name)
	assert.Equal(t, 5*time.Minute, cfg.PR.CacheTTL)
	assert.Equal(t, "newest", cfg.PR.Selection)
	assert.Equal(t, "WATCHLIST", cfg.Universe.Mode)
	assert.Equal(t, "https://hooks.slack.com/env", cfg.Slack.WebhookURL)
	assert.Equal(t, "fmp-key", cfg.Classification.FMPAPIKey)
	assert.Equal(t, 3, cfg.Scan.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ThresholdDefaults(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantMedian  float64
		wantMean    float64
		wantHistory int
	}{
		{
			name:        "mean only keeps median disabled",
			yaml:        "thresholds:\n  volume_multiple_median: 0\n  volume_multiple_mean: 2.5\n",
			wantMedian:  0,
			wantMean:    2.5,
			wantHistory: 60,
		},
		{
			name:        "long lookback extends history",
			yaml:        "thresholds:\n  lookback_days: 90\n",
			wantMedian:  3.0,
			wantHistory: 130,
		},
		{
			name:        "explicit history kept",
			yaml:        "thresholds:\n  lookback_days: 10\n  history_days: 25\n",
			wantMedian:  3.0,
			wantHistory: 25,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, "config.yaml", tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMedian, cfg.Thresholds.VolumeMultipleMedian)
			assert.Equal(t, tt.wantMean, cfg.Thresholds.VolumeMultipleMean)
			assert.Equal(t, tt.wantHistory, cfg.Thresholds.HistoryDays)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestLoad_ConflictingHistoryFails(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", "thresholds:\n  lookback_days: 60\n  history_days: 30\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "history_days")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"negative lookback", func(c *Config) { c.Thresholds.LookbackDays = -1 }, "lookback_days"},
		{"no multiples", func(c *Config) { c.Thresholds.VolumeMultipleMedian = -1 }, "volume multiple"},
		{"history too short", func(c *Config) { c.Thresholds.HistoryDays = 20 }, "history_days"},
		{"unknown mode", func(c *Config) { c.Universe.Mode = "RUSSELL" }, "universe.mode"},
		{"empty watchlist", func(c *Config) { c.Universe.Mode = "WATCHLIST" }, "watchlist"},
		{"rest without url", func(c *Config) { c.DataSource.Provider = "rest" }, "base_url"},
		{"unknown provider", func(c *Config) { c.DataSource.Provider = "bloomberg" }, "provider"},
		{"feed without url", func(c *Config) { c.PR.Feeds[0].URL = "" }, "pr.feeds[0]"},
		{"half telegram", func(c *Config) { c.Telegram.BotToken = "t" }, "telegram"},
		{"negative cap", func(c *Config) { c.Exclusions.MaxMarketCap = -5 }, "max_market_cap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadDenylist(t *testing.T) {
	path := writeFile(t, "denylist.txt", "# clinical-stage names\nabcd\n\n  brk.b  \nABCD\n#XYZ\nefgh\n")

	got, err := LoadDenylist(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"ABCD", "BRK-B", "EFGH"}, got)
}

func TestLoadDenylist_Missing(t *testing.T) {
	got, err := LoadDenylist(filepath.Join(t.TempDir(), "missing.txt"), zerolog.Nop())
	assert.NoError(t, err)
	assert.Empty(t, got)

	got, err = LoadDenylist("", zerolog.Nop())
	assert.NoError(t, err)
	assert.Empty(t, got)
}
