package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingFetchesFromCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		fmt.Fprint(w, `{"data":[
			{"id":"other/model","pricing":{"prompt":"0.000001","completion":"0.000002"}},
			{"id":"test/model","pricing":{"prompt":"0.000015","completion":"0.000075"}}
		]}`)
	}))
	t.Cleanup(server.Close)
	client := newTestClient(t, server.URL)

	p := client.Pricing(context.Background(), "test/model")
	assert.InDelta(t, 15.0, p.PromptPerMTok, 1e-9)
	assert.InDelta(t, 75.0, p.CompletionPerMTok, 1e-9)
}

func TestPricingCachesPerModel(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, `{"data":[{"id":"test/model","pricing":{"prompt":"0.000001","completion":"0.000002"}}]}`)
	}))
	t.Cleanup(server.Close)
	client := newTestClient(t, server.URL)

	first := client.Pricing(context.Background(), "test/model")
	second := client.Pricing(context.Background(), "test/model")

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), requests.Load())

	// A different model misses the cache and triggers another lookup.
	client.Pricing(context.Background(), "other/model")
	assert.Equal(t, int32(2), requests.Load())
}

func TestPricingFallsBackToStaticTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := newTestClient(t, server.URL)

	p := client.Pricing(context.Background(), "anthropic/claude-opus-4")
	assert.InDelta(t, 15.0, p.PromptPerMTok, 1e-9)
	assert.InDelta(t, 75.0, p.CompletionPerMTok, 1e-9)
}

func TestPricingUnknownModelIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	t.Cleanup(server.Close)
	client := newTestClient(t, server.URL)

	p := client.Pricing(context.Background(), "nobody/heard-of-it")
	assert.Zero(t, p.PromptPerMTok)
	assert.Zero(t, p.CompletionPerMTok)
	assert.Zero(t, p.Cost(1000, 1000))
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
	}{
		{"string price", `"0.000015"`, 0.000015},
		{"numeric price", `0.000015`, 0.000015},
		{"zero string", `"0"`, 0},
		{"unparseable string", `"free"`, 0},
		{"empty", ``, 0},
		{"null", `null`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, parsePrice(json.RawMessage(tc.raw)), 1e-12)
		})
	}
}
