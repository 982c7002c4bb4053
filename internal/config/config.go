package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/feeds"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
)

// DefaultPath is used when neither --config nor CONFIG_PATH is given.
const DefaultPath = "config/config.yaml"

// historyMargin is the number of bars fetched beyond the lookback window when
// history_days is not set. It covers holidays and missing sessions.
const historyMargin = 40

// ErrConfigNotFound is returned by Load when the config file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// Config holds all application configuration.
type Config struct {
	Thresholds struct {
		VolumeMultipleMedian float64 `yaml:"volume_multiple_median"`
		VolumeMultipleMean   float64 `yaml:"volume_multiple_mean"`
		LookbackDays         int     `yaml:"lookback_days"`
		MinAbsVolume         float64 `yaml:"min_abs_volume"`
		MinAbsPctMove        float64 `yaml:"min_abs_pct_move"`
		HistoryDays          int     `yaml:"history_days"`
	} `yaml:"thresholds"`
	Exclusions struct {
		TickersDenylistPath string   `yaml:"tickers_denylist_path"`
		Sectors             []string `yaml:"sectors"`
		IndustriesKeywords  []string `yaml:"industries_keywords"`
		MaxMarketCap        float64  `yaml:"max_market_cap"`
	} `yaml:"exclusions"`
	PR struct {
		Feeds            []feeds.Source `yaml:"feeds"`
		CacheTTL         time.Duration  `yaml:"cache_ttl"`
		RequiredKeywords []string       `yaml:"required_keywords"`
		ExcludeTimeStart string         `yaml:"exclude_time_start"`
		ExcludeTimeEnd   string         `yaml:"exclude_time_end"`
		Selection        string         `yaml:"selection"`
		RequestTimeout   time.Duration  `yaml:"request_timeout"`
	} `yaml:"pr"`
	Market struct {
		Timezone        string `yaml:"timezone"`
		CloseTime       string `yaml:"close_time"`
		ReferenceSymbol string `yaml:"reference_symbol"`
	} `yaml:"market"`
	Universe struct {
		Mode      string   `yaml:"mode"`
		Watchlist []string `yaml:"watchlist"`
	} `yaml:"universe"`
	Scan struct {
		Workers         int     `yaml:"workers"`
		RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	} `yaml:"scan"`
	DataSource struct {
		Provider string `yaml:"provider"` // yahoo, rest or mock
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"data_source"`
	SEC struct {
		UserAgent string `yaml:"user_agent"`
	} `yaml:"sec"`
	Classification struct {
		FMPAPIKey string `yaml:"fmp_api_key"`
	} `yaml:"classification"`
	Slack struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"slack"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		MorningCron string `yaml:"morning_cron"`
		EveningCron string `yaml:"evening_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Report struct {
		Dir string `yaml:"dir"`
	} `yaml:"report"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is fatal: there are no sane
// defaults for the exclusion rules.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Environment variable overrides
func (c *Config) applyEnv() {
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Slack.WebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("FMP_API_KEY"); v != "" {
		c.Classification.FMPAPIKey = v
	}
	if v := os.Getenv("DATA_SOURCE_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_SOURCE_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("SEC_USER_AGENT"); v != "" {
		c.SEC.UserAgent = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("UNIVERSE_MODE"); v != "" {
		c.Universe.Mode = v
	}
	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scan.Workers = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	// The median default applies only when no multiple is configured, so a
	// mean-only rule can set volume_multiple_median: 0.
	if c.Thresholds.VolumeMultipleMedian == 0 && c.Thresholds.VolumeMultipleMean == 0 {
		c.Thresholds.VolumeMultipleMedian = 3.0
	}
	if c.Thresholds.LookbackDays == 0 {
		c.Thresholds.LookbackDays = 20
	}
	if c.Thresholds.HistoryDays == 0 {
		c.Thresholds.HistoryDays = c.Thresholds.LookbackDays + historyMargin
	}
	if len(c.PR.Feeds) == 0 {
		c.PR.Feeds = feeds.DefaultSources()
	}
	if c.PR.CacheTTL == 0 {
		c.PR.CacheTTL = feeds.DefaultTTL
	}
	if c.PR.ExcludeTimeStart == "" {
		c.PR.ExcludeTimeStart = "09:30"
	}
	if c.PR.ExcludeTimeEnd == "" {
		c.PR.ExcludeTimeEnd = "16:00"
	}
	if c.PR.Selection == "" {
		c.PR.Selection = "arrival"
	}
	if c.PR.RequestTimeout == 0 {
		c.PR.RequestTimeout = 15 * time.Second
	}
	if c.Market.Timezone == "" {
		c.Market.Timezone = "America/New_York"
	}
	if c.Market.CloseTime == "" {
		c.Market.CloseTime = "16:00"
	}
	if c.Market.ReferenceSymbol == "" {
		c.Market.ReferenceSymbol = "SPY"
	}
	if c.Universe.Mode == "" {
		c.Universe.Mode = "PR_FIRST"
	}
	c.Universe.Mode = strings.ToUpper(strings.TrimSpace(c.Universe.Mode))
	if c.Scan.Workers == 0 {
		c.Scan.Workers = 8
	}
	if c.Scan.RateLimitPerSec == 0 {
		c.Scan.RateLimitPerSec = 5
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	c.DataSource.Provider = strings.ToLower(strings.TrimSpace(c.DataSource.Provider))
	if c.SEC.UserAgent == "" {
		c.SEC.UserAgent = "PR-Volume-Spike-Bot admin@example.com"
	}
	if c.Schedule.MorningCron == "" {
		c.Schedule.MorningCron = "0 0 8 * * 1-5"
	}
	if c.Schedule.EveningCron == "" {
		c.Schedule.EveningCron = "0 30 17 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/pr_spike.db"
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "."
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if c.Thresholds.LookbackDays < 1 {
		return fmt.Errorf("thresholds.lookback_days must be positive")
	}
	if c.Thresholds.VolumeMultipleMedian <= 0 && c.Thresholds.VolumeMultipleMean <= 0 {
		return fmt.Errorf("thresholds: at least one volume multiple must be positive")
	}
	if c.Thresholds.HistoryDays <= c.Thresholds.LookbackDays {
		return fmt.Errorf("thresholds.history_days must exceed lookback_days")
	}
	if c.Exclusions.MaxMarketCap < 0 {
		return fmt.Errorf("exclusions.max_market_cap must not be negative")
	}
	switch c.Universe.Mode {
	case "PR_FIRST", "WATCHLIST", "SP500", "SP1500":
	default:
		return fmt.Errorf("universe.mode %q is not supported", c.Universe.Mode)
	}
	if c.Universe.Mode == "WATCHLIST" && len(c.Universe.Watchlist) == 0 {
		return fmt.Errorf("universe.watchlist is required in WATCHLIST mode")
	}
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	for i, f := range c.PR.Feeds {
		if f.Name == "" || f.URL == "" {
			return fmt.Errorf("pr.feeds[%d]: name and url are required", i)
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// LoadDenylist reads one ticker per line, skipping blanks and # comments.
// A missing file is logged and yields an empty list.
func LoadDenylist(path string, logger zerolog.Logger) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", path).Msg("denylist file not found, using empty set")
			return nil, nil
		}
		return nil, fmt.Errorf("open denylist: %w", err)
	}
	defer f.Close()

	var out []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t := resolver.NormalizeTicker(line)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read denylist: %w", err)
	}
	return out, nil
}
