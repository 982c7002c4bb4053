package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

func TestFMPClassifier(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "key", r.URL.Query().Get("apikey"))
		switch r.URL.Path {
		case "/profile/ACME":
			_, _ = w.Write([]byte(`[{"symbol":"ACME","companyName":"Acme Robotics Inc","mktCap":450000000,"sector":"Industrials","industry":"Machinery"}]`))
		case "/profile/NOCAP":
			_, _ = w.Write([]byte(`[{"symbol":"NOCAP","companyName":"No Cap","mktCap":0,"sector":"","industry":""}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	c := NewFMPClassifier(Deps{Client: srv.Client()}, "key")
	c.BaseURL = srv.URL

	cls := c.Classify(context.Background(), "acme")
	require.NotNil(t, cls.MarketCap)
	assert.Equal(t, 450000000.0, *cls.MarketCap)
	assert.Equal(t, "Acme Robotics Inc", cls.Name)
	assert.Equal(t, "Industrials", cls.Sector)
	assert.Equal(t, "Machinery", cls.Industry)

	c.Classify(context.Background(), "ACME")
	assert.Equal(t, int32(1), hits.Load(), "cached")

	assert.Nil(t, c.Classify(context.Background(), "NOCAP").MarketCap)
	assert.Equal(t, model.Classification{}, c.Classify(context.Background(), "UNKNOWN"))
}

func TestFMPClassifier_ErrorIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewFMPClassifier(Deps{Client: srv.Client()}, "key")
	c.BaseURL = srv.URL
	assert.Equal(t, model.Classification{}, c.Classify(context.Background(), "ACME"))
}

func TestNoopClassifier(t *testing.T) {
	assert.Equal(t, model.Classification{}, NoopClassifier{}.Classify(context.Background(), "X"))
}
