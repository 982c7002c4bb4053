package resolver

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"aapl", "AAPL"},
		{" BRK.B ", "BRK-B"},
		{"brk-b", "BRK-B"},
		{"$pltr", "PLTR"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTicker(tt.in), tt.in)
	}
}

func TestNormalizeTicker_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("idempotent", prop.ForAll(
		func(s string) bool {
			once := NormalizeTicker(s)
			return NormalizeTicker(once) == once
		},
		gen.RegexMatch(`[$ .a-zA-Z-]{0,10}`),
	))

	properties.Property("dot and dash forms agree", prop.ForAll(
		func(base, class string) bool {
			return NormalizeTicker(base+"."+class) == NormalizeTicker(base+"-"+class)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("never contains lower case or dots", prop.ForAll(
		func(s string) bool {
			n := NormalizeTicker(s)
			return !strings.Contains(n, ".") && n == strings.ToUpper(n)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestTagTicker(t *testing.T) {
	tests := []struct {
		term   string
		want   string
		wantOK bool
	}{
		{"NASDAQ:ABCD", "ABCD", true},
		{"Nyse-xyz", "XYZ", true},
		{"TSX-V:QRS", "QRS", true},
		{"OTC:PINK", "PINK", true},
		{"NYSE:BRK.B", "BRK-B", true},
		{"NASDAQ:BRK-B", "BRK-B", true},
		{"NYSE:ABCD.Extra", "ABCD", true},
		{"Press Releases", "", false},
		{"NASDAQ ABCD", "", false},
	}
	for _, tt := range tests {
		got, ok := TagTicker(tt.term)
		assert.Equal(t, tt.wantOK, ok, tt.term)
		assert.Equal(t, tt.want, got, tt.term)
	}
}

func TestNameIndex(t *testing.T) {
	idx := NewNameIndex()
	idx.Add("Apple Inc.", "aapl")
	idx.Add("  Apple   Inc. ", "OTHER")
	idx.Add("", "X")
	idx.Add("Nameless", "")

	got, ok := idx.Lookup("APPLE INC.")
	assert.True(t, ok)
	assert.Equal(t, "AAPL", got, "first registration wins")

	got, ok = idx.Lookup("apple")
	assert.True(t, ok, "suffix-stripped variant registered")
	assert.Equal(t, "AAPL", got)

	assert.Equal(t, 2, idx.Len())

	var nilIdx *NameIndex
	_, ok = nilIdx.Lookup("apple")
	assert.False(t, ok)
	assert.Equal(t, 0, nilIdx.Len())
}

func TestStripCorporateSuffixes(t *testing.T) {
	assert.Equal(t, "Acme Robotics", StripCorporateSuffixes("Acme Robotics, Inc."))
	assert.Equal(t, "Globex", StripCorporateSuffixes("Globex Corporation"))
	assert.Equal(t, "Wayne", StripCorporateSuffixes("Wayne Enterprises Holdings LLC"))
	assert.Equal(t, "Plain Name", StripCorporateSuffixes("Plain Name"))
}
