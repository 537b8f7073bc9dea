package twelvedata_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketlens/internal/marketdata"
	"marketlens/internal/marketdata/twelvedata"
)

func respond(body string) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}, nil
}

func TestQuote(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "/quote", req.URL.Path)
			require.Equal(t, "test-key", req.URL.Query().Get("apikey"))
			require.Equal(t, "AAPL", req.URL.Query().Get("symbol"))

			return respond(`{
				"symbol": "AAPL",
				"name": "Apple Inc",
				"exchange": "NASDAQ",
				"currency": "USD",
				"datetime": "2026-08-28",
				"open": "228.00",
				"high": "231.00",
				"low": "227.00",
				"close": "230.50",
				"volume": "51000000",
				"previous_close": "228.00",
				"change": "2.50",
				"percent_change": "1.10"
			}`)
		}).
		Times(1)

	a := twelvedata.NewAdapter("test-key", twelvedata.WithHTTPClient(httpClient))

	q, err := a.Quote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "Apple Inc", q.Name)
	assert.Equal(t, "USD", q.Currency)
	require.NotNil(t, q.Close)
	assert.Equal(t, 230.5, *q.Close)
	require.NotNil(t, q.PercentChange)
	assert.Equal(t, 1.1, *q.PercentChange)
	require.NotNil(t, q.Volume)
	assert.Equal(t, 51000000.0, *q.Volume)
}

func TestQuoteRateLimitedInOKBody(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Twelve Data signals exhaustion with HTTP 200 and an error payload.
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return respond(`{"code":429,"message":"You have run out of API credits for the current minute.","status":"error"}`)
		}).
		Times(1)

	a := twelvedata.NewAdapter("test-key", twelvedata.WithHTTPClient(httpClient))

	_, err := a.Quote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, marketdata.IsRateLimited(err))
	assert.Contains(t, err.Error(), "API credits")
}

func TestQuoteUnknownSymbol(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return respond(`{"code":404,"message":"**symbol** not found: ZZZZ. Please specify it correctly.","status":"error"}`)
		}).
		Times(1)

	a := twelvedata.NewAdapter("test-key", twelvedata.WithHTTPClient(httpClient))

	_, err := a.Quote(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.Equal(t, marketdata.KindNotFound, marketdata.KindOf(err))
}

func TestMissingAPIKey(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		Times(0)

	a := twelvedata.NewAdapter("", twelvedata.WithHTTPClient(httpClient))

	_, err := a.Quote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, marketdata.KindConfig, marketdata.KindOf(err))
}

func TestDailySeries(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/time_series", req.URL.Path)
			require.Equal(t, "1day", req.URL.Query().Get("interval"))
			require.Equal(t, "260", req.URL.Query().Get("outputsize"))

			return respond(`{
				"meta": {"symbol":"AAPL","name":"Apple Inc","exchange":"NASDAQ","currency":"USD"},
				"values": [
					{"datetime":"2026-08-28","open":"228.0","high":"231.0","low":"227.0","close":"230.5","volume":"51000000"},
					{"datetime":"2026-08-27","open":"225.0","high":"229.0","low":"224.0","close":"228.0","volume":"48000000"}
				],
				"status": "ok"
			}`)
		}).
		Times(1)

	a := twelvedata.NewAdapter("test-key", twelvedata.WithHTTPClient(httpClient))

	s, err := a.DailySeries(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "Apple Inc", s.Meta.Name)
	assert.Equal(t, "USD", s.Meta.Currency)
	require.Len(t, s.Points, 2)
	assert.Equal(t, "2026-08-28", s.Points[0].Date)
	require.NotNil(t, s.Points[0].Close)
	assert.Equal(t, 230.5, *s.Points[0].Close)
	require.NotNil(t, s.Points[1].High)
	assert.Equal(t, 229.0, *s.Points[1].High)
}

func TestStatisticsFlattensNestedPayload(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/statistics", req.URL.Path)
			return respond(`{
				"statistics": {
					"valuations_metrics": {
						"market_capitalization": 3400000000000,
						"trailing_pe": 29.4
					},
					"financials": {
						"income_statement": {"revenue_ttm": "391000000000"},
						"gross_profit_ttm": 180000000000
					}
				}
			}`)
		}).
		Times(1)

	a := twelvedata.NewAdapter("test-key", twelvedata.WithHTTPClient(httpClient))

	stats, err := a.Statistics(context.Background(), "AAPL")
	require.NoError(t, err)

	if n := stats.Number("market_capitalization"); assert.NotNil(t, n) {
		assert.Equal(t, 3.4e12, *n)
	}
	if n := stats.Number("trailing_pe"); assert.NotNil(t, n) {
		assert.Equal(t, 29.4, *n)
	}
	if n := stats.Number("revenue_ttm"); assert.NotNil(t, n) {
		assert.Equal(t, 3.91e11, *n)
	}
	assert.Nil(t, stats.Number("no_such_key"))
}

func TestStatisticsPlanGated(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return respond(`{"code":403,"message":"/statistics is available exclusively with grow or pro plans.","status":"error"}`)
		}).
		Times(1)

	a := twelvedata.NewAdapter("test-key", twelvedata.WithHTTPClient(httpClient))

	_, err := a.Statistics(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, marketdata.KindUpstream, marketdata.KindOf(err))
}

func TestProfile(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/profile", req.URL.Path)
			return respond(`{
				"symbol": "AAPL",
				"name": "Apple Inc",
				"exchange": "NASDAQ",
				"currency": "USD",
				"sector": "Technology",
				"industry": "Consumer Electronics",
				"description": "Apple designs smartphones.",
				"market_cap": 3400000000000
			}`)
		}).
		Times(1)

	a := twelvedata.NewAdapter("test-key", twelvedata.WithHTTPClient(httpClient))

	p, err := a.Profile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc", p.Name)
	assert.Equal(t, "Technology", p.Sector)
	require.NotNil(t, p.MarketCap)
	assert.Equal(t, 3.4e12, *p.MarketCap)
}
