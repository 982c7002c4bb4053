package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEDGARLoader_Load(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{
			"10":{"cik_str":1067983,"ticker":"BRK-A","title":"BERKSHIRE HATHAWAY INC"},
			"2":{"cik_str":1067983,"ticker":"BRK-B","title":"BERKSHIRE HATHAWAY INC"},
			"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."}
		}`))
	}))
	defer srv.Close()

	l := NewEDGARLoader(Deps{Client: srv.Client()}, "sentinel admin@example.com")
	l.URL = srv.URL

	idx, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sentinel admin@example.com", ua)

	got, ok := idx.Lookup("Apple")
	assert.True(t, ok)
	assert.Equal(t, "AAPL", got)

	got, ok = idx.Lookup("berkshire hathaway inc")
	assert.True(t, ok)
	assert.Equal(t, "BRK-B", got, "lower rank key registers first")
}

func TestEDGARLoader_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	l := NewEDGARLoader(Deps{Client: srv.Client()}, "ua")
	l.URL = srv.URL

	idx, err := l.Load(context.Background())
	assert.Nil(t, idx)
	assert.ErrorContains(t, err, "status 403")
}
