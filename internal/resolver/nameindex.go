package resolver

import "strings"

// NameIndex maps company names to tickers. Keys are lower-cased with
// whitespace collapsed. An index is built once and then only read.
type NameIndex struct {
	names map[string]string
}

// NewNameIndex creates an empty index.
func NewNameIndex() *NameIndex {
	return &NameIndex{names: make(map[string]string)}
}

func nameKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Add registers name -> ticker, plus the suffix-stripped variant of name.
// Existing entries are never overwritten, so the first registration wins.
func (x *NameIndex) Add(name, ticker string) {
	ticker = NormalizeTicker(ticker)
	key := nameKey(name)
	if key == "" || ticker == "" {
		return
	}
	if _, ok := x.names[key]; !ok {
		x.names[key] = ticker
	}
	stripped := nameKey(StripCorporateSuffixes(name))
	if len(stripped) > 2 && stripped != key {
		if _, ok := x.names[stripped]; !ok {
			x.names[stripped] = ticker
		}
	}
}

// Lookup finds the ticker for name, ignoring case and extra whitespace.
func (x *NameIndex) Lookup(name string) (string, bool) {
	if x == nil {
		return "", false
	}
	t, ok := x.names[nameKey(name)]
	return t, ok
}

// Len returns the number of keys, including stripped variants.
func (x *NameIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.names)
}
