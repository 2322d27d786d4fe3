package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpulse/regimescan/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ds := config.Default().Datasource
	ds.BaseURL = srv.URL
	uni := config.UniverseConfig{
		Exclude:    []string{"SCAM-USD"},
		MinPrice:   1.0,
		MinVolume:  1000,
		Benchmarks: []string{"BTC-USD", "ETH-USD"},
	}
	return NewClient(ds, uni)
}

func TestFetchUniverse_Filters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/tickers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"BTC-USD","last_price":50000,"high_24h":51000,"low_24h":49000,"change_24h_pct":1.5,"volume_24h":1000000},
			{"symbol":"SCAM-USD","last_price":100,"high_24h":110,"low_24h":90,"change_24h_pct":50,"volume_24h":999999},
			{"symbol":"DUST-USD","last_price":0.5,"high_24h":0.6,"low_24h":0.4,"change_24h_pct":2,"volume_24h":5000},
			{"symbol":"THIN-USD","last_price":20,"high_24h":21,"low_24h":19,"change_24h_pct":1,"volume_24h":10},
			{"symbol":"BTC-USD","last_price":1,"high_24h":1,"low_24h":1,"change_24h_pct":0,"volume_24h":1}
		]`))
	})
	c := newTestClient(t, mux)

	universe, err := c.FetchUniverse(context.Background())
	require.NoError(t, err)
	require.Len(t, universe, 1)
	assert.Equal(t, "BTC-USD", universe[0].Symbol)
	assert.Equal(t, 50000.0, universe[0].LastPrice)
}

func TestFetchUniverse_UpstreamError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	_, err := c.FetchUniverse(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchSeries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/candles/ETH-USD", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "30", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			{"timestamp":1750000000,"open":100,"high":105,"low":98,"close":104,"volume":500},
			{"timestamp":1749913600,"open":98,"high":101,"low":97,"close":100,"volume":400}
		]`))
	})
	c := newTestClient(t, mux)

	series, err := c.FetchSeries(context.Background(), "ETH-USD")
	require.NoError(t, err)
	assert.Equal(t, "ETH-USD", series.Symbol)
	require.Len(t, series.Bars, 2)
	assert.Equal(t, 104.0, series.Bars[0].Close)
	assert.Equal(t, 500.0, series.Bars[0].Volume)
}

func TestFetchSeries_NotFoundIsIsolatedError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	_, err := c.FetchSeries(context.Background(), "GONE-USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GONE-USD")
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.FetchUniverse(ctx)
		require.Error(t, err)
	}
	// Breaker is now open: the request fails without reaching upstream.
	_, err := c.FetchUniverse(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}
