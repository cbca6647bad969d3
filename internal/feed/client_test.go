package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotrading/internal/resilient"
)

func TestGetPriceFromREST(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/ticker", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"AAPL","lastPrice":123.45}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	px, err := c.GetPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 123.45, px, 1e-9)
}

func TestGetPricePrefersFreshStreamPrice(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"symbol":"AAPL","lastPrice":100}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	c.SetPrice("AAPL", 101.5)

	px, err := c.GetPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 101.5, px, 1e-9)
	assert.Equal(t, 0, calls, "fresh ws price must not hit REST")
}

func TestLastPriceExpires(t *testing.T) {
	c := NewClient("http://unused", "")
	c.wsFreshness = 10 * time.Millisecond
	c.SetPrice("AAPL", 100)

	assert.InDelta(t, 100.0, c.LastPrice("AAPL"), 1e-9)
	time.Sleep(25 * time.Millisecond)
	assert.Zero(t, c.LastPrice("AAPL"))
}

func TestGetPriceErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"unknown symbol is permanent", http.StatusNotFound, false},
		{"rate limit is transient", http.StatusTooManyRequests, true},
		{"server error is transient", http.StatusInternalServerError, true},
		{"bad request is permanent", http.StatusBadRequest, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "")
			_, err := c.GetPrice(context.Background(), "AAPL")
			require.Error(t, err)
			assert.Equal(t, tc.transient, resilient.IsTransient(err))
			assert.Equal(t, !tc.transient, resilient.IsPermanent(err))
		})
	}
}

func TestGetPriceHistoryParsesCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/candles", r.URL.Path)
		_, _ = w.Write([]byte(`{"candles":[
			[1700000000, 10, 12, 9, 11],
			[1700086400, 11, 13, 10, 12],
			[1700172800, 12]
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	bars, err := c.GetPriceHistory(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, bars, 2, "short rows are dropped")
	assert.InDelta(t, 12.0, bars[0].High, 1e-9)
	assert.InDelta(t, 12.0, bars[1].Close, 1e-9)
	assert.Equal(t, int64(1700000000), bars[0].Time.Unix())
}
