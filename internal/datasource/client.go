// Package datasource is the boundary with the external market-data
// collaborator: a rate-limited, circuit-broken REST client plus the
// fetch interfaces the pipeline consumes.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/coinpulse/regimescan/internal/config"
	"github.com/coinpulse/regimescan/internal/domain"
)

// UniverseFetcher returns the filtered ticker universe for one cycle.
type UniverseFetcher interface {
	FetchUniverse(ctx context.Context) ([]domain.TickerSnapshot, error)
}

// SeriesFetcher returns one asset's candle history, most-recent first.
// Per-asset failures are isolated by the caller; they never abort a
// cycle.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, symbol string) (domain.PriceSeries, error)
}

// Client fetches from the REST collaborator. Universe requests run
// through a circuit breaker so a dead upstream fails fast instead of
// burning the rate budget.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	universe config.UniverseConfig
	bars     int
	exclude  map[string]struct{}
}

func NewClient(ds config.DatasourceConfig, universe config.UniverseConfig) *Client {
	exclude := make(map[string]struct{}, len(universe.Exclude))
	for _, s := range universe.Exclude {
		exclude[s] = struct{}{}
	}
	return &Client{
		baseURL: ds.BaseURL,
		http:    &http.Client{Timeout: ds.RequestTimeout.Std()},
		limiter: rate.NewLimiter(rate.Limit(ds.RatePerSecond), ds.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "market-data",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		}),
		universe: universe,
		bars:     ds.SeriesBars,
		exclude:  exclude,
	}
}

type tickerPayload struct {
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"last_price"`
	High24h      float64 `json:"high_24h"`
	Low24h       float64 `json:"low_24h"`
	Change24hPct float64 `json:"change_24h_pct"`
	Volume24h    float64 `json:"volume_24h"`
}

type barPayload struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// FetchUniverse pulls the full ticker list and applies the exclusion
// list and the minimum price/volume floors. Duplicate symbols keep
// their first occurrence.
func (c *Client) FetchUniverse(ctx context.Context) ([]domain.TickerSnapshot, error) {
	var payload []tickerPayload
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.getJSON(ctx, "/v1/tickers", &payload)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch universe: %w", err)
	}

	seen := make(map[string]struct{}, len(payload))
	out := make([]domain.TickerSnapshot, 0, len(payload))
	for _, t := range payload {
		if _, dup := seen[t.Symbol]; dup {
			continue
		}
		seen[t.Symbol] = struct{}{}
		if _, skip := c.exclude[t.Symbol]; skip {
			continue
		}
		if t.LastPrice < c.universe.MinPrice || t.Volume24h < c.universe.MinVolume {
			continue
		}
		out = append(out, domain.TickerSnapshot{
			Symbol:       t.Symbol,
			LastPrice:    t.LastPrice,
			High24h:      t.High24h,
			Low24h:       t.Low24h,
			Change24hPct: t.Change24hPct,
			Volume24h:    t.Volume24h,
		})
	}
	log.Debug().Int("raw", len(payload)).Int("filtered", len(out)).Msg("universe fetched")
	return out, nil
}

// FetchSeries pulls one asset's candles, most-recent first.
func (c *Client) FetchSeries(ctx context.Context, symbol string) (domain.PriceSeries, error) {
	path := fmt.Sprintf("/v1/candles/%s?limit=%d", url.PathEscape(symbol), c.bars)
	var payload []barPayload
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return domain.PriceSeries{}, fmt.Errorf("fetch series %s: %w", symbol, err)
	}
	bars := make([]domain.Bar, len(payload))
	for i, b := range payload {
		bars[i] = domain.Bar{
			Timestamp: time.Unix(b.Timestamp, 0).UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	return domain.PriceSeries{Symbol: symbol, Bars: bars}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}
