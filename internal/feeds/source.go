package feeds

// Source is a named RSS/Atom endpoint.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DefaultSources are the wire feeds scanned when none are configured.
// GlobeNewswire exchange feeds carry exchange:ticker category tags.
func DefaultSources() []Source {
	return []Source{
		{Name: "GlobeNewswire NASDAQ", URL: "https://www.globenewswire.com/RssFeed/exchange/NASDAQ"},
		{Name: "GlobeNewswire NYSE", URL: "https://www.globenewswire.com/RssFeed/exchange/NYSE"},
		{Name: "GlobeNewswire AMEX", URL: "https://www.globenewswire.com/RssFeed/exchange/AMEX"},
		{Name: "PR Newswire", URL: "https://www.prnewswire.com/rss/news-releases-list.rss"},
	}
}
