package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/observability"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resilience"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/resolver"
)

const (
	DefaultTimeout   = 20 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; pr-spike-sentinel/1.0)"
)

// Aggregator fetches all configured wire feeds.
type Aggregator struct {
	sources   []Source
	client    *http.Client
	timeout   time.Duration
	userAgent string
	breakers  *resilience.Registry
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Aggregator) { a.client = c }
}

// WithTimeout sets the per-feed request timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithBreakers routes each feed through a named circuit breaker.
func WithBreakers(r *resilience.Registry) Option {
	return func(a *Aggregator) { a.breakers = r }
}

// WithMetrics records per-feed fetch metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithLogger sets a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// NewAggregator creates an Aggregator over sources, in order.
func NewAggregator(sources []Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:   sources,
		client:    &http.Client{},
		timeout:   DefaultTimeout,
		userAgent: defaultUserAgent,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sources returns the configured feeds.
func (a *Aggregator) Sources() []Source { return a.sources }

// FetchAll fetches every source concurrently. A failing source contributes
// no items. Output follows source order then feed order, with duplicate
// links dropped (first arrival wins).
func (a *Aggregator) FetchAll(ctx context.Context) []model.RawNewsItem {
	results := make([][]model.RawNewsItem, len(a.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			items, err := resilience.Do(gctx, a.breakers, resilience.FeedBreaker(src.Name), func() ([]model.RawNewsItem, error) {
				return a.fetchSource(gctx, src)
			})
			a.metrics.RecordFeedFetch(src.Name, len(items), err)
			if err != nil {
				a.logger.Warn().Err(err).Str("source", src.Name).Msg("feed fetch failed")
				return nil
			}
			a.logger.Info().Str("source", src.Name).Int("count", len(items)).Msg("fetched feed")
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var out []model.RawNewsItem
	seenKey := make(map[string]struct{})
	seenLink := make(map[string]struct{})
	for _, items := range results {
		for _, it := range items {
			if _, ok := seenKey[it.Key()]; ok {
				continue
			}
			seenKey[it.Key()] = struct{}{}
			if it.Link != "" {
				if _, ok := seenLink[it.Link]; ok {
					continue
				}
				seenLink[it.Link] = struct{}{}
			}
			out = append(out, it)
		}
	}
	a.logger.Info().Int("count", len(out)).Msg("feed snapshot assembled")
	return out
}

func (a *Aggregator) fetchSource(ctx context.Context, src Source) ([]model.RawNewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed: status %d, body: %s", resp.StatusCode, string(body))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed parse: %w", err)
	}

	items := make([]model.RawNewsItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if item, ok := convertItem(src.Name, entry); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// convertItem maps a parsed entry; entries without a publish time are dropped.
func convertItem(source string, entry *gofeed.Item) (model.RawNewsItem, bool) {
	if entry == nil || entry.PublishedParsed == nil {
		return model.RawNewsItem{}, false
	}

	var tickers []string
	seen := make(map[string]struct{})
	for _, term := range entry.Categories {
		if t, ok := resolver.TagTicker(term); ok {
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				tickers = append(tickers, t)
			}
		}
	}

	summary := entry.Description
	if strings.TrimSpace(summary) == "" {
		summary = entry.Content
	}

	return model.RawNewsItem{
		Title:         strings.TrimSpace(entry.Title),
		Summary:       StripHTML(summary),
		Link:          strings.TrimSpace(entry.Link),
		PublishedAt:   entry.PublishedParsed.UTC(),
		Source:        source,
		InlineTickers: tickers,
	}, true
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
