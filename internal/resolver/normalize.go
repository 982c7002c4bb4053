package resolver

import (
	"regexp"
	"strings"
	"unicode"
)

// NormalizeTicker returns the canonical form of a ticker: upper-case, trimmed,
// with share-class dots replaced by dashes (BRK.B -> BRK-B).
func NormalizeTicker(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool { return r == '$' || unicode.IsSpace(r) })
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	return strings.ReplaceAll(strings.ToUpper(s), ".", "-")
}

var tagPattern = regexp.MustCompile(`(?i)\b(?:TSX-V|TSX|NYSE|NASDAQ|AMEX|OTC)[:\-]([A-Z]{1,5}(?:[.\-][A-Z])?)\b`)

// TagTicker extracts the symbol from a feed category term such as
// "NASDAQ:ABCD", "TSX-V:XYZ" or "NYSE:BRK.B".
func TagTicker(term string) (string, bool) {
	m := tagPattern.FindStringSubmatch(term)
	if m == nil {
		return "", false
	}
	return NormalizeTicker(m[1]), true
}

var corporateSuffixes = regexp.MustCompile(`(?i)\b(?:Incorporated|Inc\.?|Corporation|Corp\.?|Company|Ltd\.?|Limited|LLC|L\.L\.C\.?|PLC|Co\.?|` +
	`Holdings?|Group|Technologies|Technology|Sciences?|Therapeutics|` +
	`Pharmaceuticals?|Biosciences?|Solutions?|Systems?|Networks?|` +
	`Enterprises?|International|Worldwide|Global|Capital|Partners?|` +
	`Acquisitions?)\b\.?`)

// StripCorporateSuffixes removes legal and generic corporate words from a
// company name ("Acme Robotics, Inc." -> "Acme Robotics").
func StripCorporateSuffixes(name string) string {
	s := corporateSuffixes.ReplaceAllString(name, "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,")
}
