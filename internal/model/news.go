package model

import "time"

// RawNewsItem is a normalised entry from one of the press-release wires.
type RawNewsItem struct {
	Title         string
	Summary       string
	Link          string
	PublishedAt   time.Time // always UTC
	Source        string
	InlineTickers []string // from structured category tags, normalised
}

// Key returns the identity of the item within the aggregator.
func (r RawNewsItem) Key() string {
	return r.Source + "|" + r.Link
}

// PRItem is a news item resolved to a single ticker.
type PRItem struct {
	Ticker      string    `json:"ticker"`
	Headline    string    `json:"headline"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// CandidateMap maps normalised tickers to the news items mentioning them.
// Items keep feed-arrival order; keys keep first-seen order.
type CandidateMap struct {
	order []string
	items map[string][]RawNewsItem
}

// NewCandidateMap creates an empty CandidateMap.
func NewCandidateMap() *CandidateMap {
	return &CandidateMap{items: make(map[string][]RawNewsItem)}
}

// Add appends item under ticker.
func (c *CandidateMap) Add(ticker string, item RawNewsItem) {
	if _, ok := c.items[ticker]; !ok {
		c.order = append(c.order, ticker)
	}
	c.items[ticker] = append(c.items[ticker], item)
}

// Get returns the items recorded for ticker.
func (c *CandidateMap) Get(ticker string) []RawNewsItem {
	if c == nil {
		return nil
	}
	return c.items[ticker]
}

// Tickers returns the keys in first-seen order.
func (c *CandidateMap) Tickers() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of distinct tickers.
func (c *CandidateMap) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
