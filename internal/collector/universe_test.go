package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sp500HTML = `<html><body>
<table class="wikitable sortable" id="constituents">
<thead><tr><th>Symbol</th><th>Security</th></tr></thead>
<tbody>
<tr><th>Symbol</th><th>Security</th></tr>
<tr><td><a href="#">MMM</a></td><td>3M</td></tr>
<tr><td><a href="#">BRK.B</a>
</td><td>Berkshire Hathaway</td></tr>
<tr><td>AOS</td><td>A. O. Smith</td></tr>
</tbody></table>
</body></html>`

func TestUniverse_SP500Scrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sp500HTML))
	}))
	defer srv.Close()

	u := NewUniverseProvider(Deps{Client: srv.Client()})
	u.SP500URL = srv.URL

	assert.Equal(t, []string{"MMM", "BRK-B", "AOS"}, u.Universe(context.Background(), "sp500", nil))
}

func TestUniverse_SP500Fallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	u := NewUniverseProvider(Deps{Client: srv.Client()})
	u.SP500URL = srv.URL

	assert.Equal(t, sp500Fallback, u.Universe(context.Background(), ModeSP500, nil))
}

func TestUniverse_Modes(t *testing.T) {
	u := NewUniverseProvider(Deps{})

	assert.Equal(t, []string{"AAPL", "BRK-B"}, u.Universe(context.Background(), ModeWatchlist, []string{"aapl", "BRK.B", "brk-b", " "}))
	assert.Nil(t, u.Universe(context.Background(), ModePRFirst, []string{"AAPL"}))
	assert.Nil(t, u.Universe(context.Background(), "RUSSELL", nil))
}
