package tushare

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhquant/ashare/internal/providers"
)

// columnar builds the {fields, items} envelope the upstream returns.
func columnar(fields []string, items [][]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"code": 0,
		"msg":  "",
		"data": map[string]interface{}{
			"fields": fields,
			"items":  items,
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithBaseURL(srv.URL))
}

func TestFetchHistory_DecodesAndSortsOldestFirst(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "daily", req.APIName)
		assert.Equal(t, "test-token", req.Token)
		assert.Equal(t, "600036.SH", req.Params["ts_code"])

		// upstream returns most recent first
		json.NewEncoder(w).Encode(columnar(
			[]string{"trade_date", "open", "high", "low", "close", "vol"},
			[][]interface{}{
				{"20260213", 37.0, 37.5, 36.8, 37.2, 1500.0},
				{"20260212", 36.5, 37.1, 36.4, 37.0, 1200.0},
			},
		))
	})

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)
	bars, err := c.FetchHistory(context.Background(), "600036", from, to)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.True(t, bars[0].Date.Before(bars[1].Date))
	assert.Equal(t, 37.0, bars[0].Close)
	// lots of 100 shares
	assert.Equal(t, 120000.0, bars[0].Volume)
}

func TestFetchHistory_EmptyIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(columnar([]string{"trade_date"}, nil))
	})

	_, err := c.FetchHistory(context.Background(), "600036", time.Now().AddDate(0, -1, 0), time.Now())
	assert.True(t, errors.Is(err, providers.ErrNotFound))
}

func TestFetchSnapshotBatch_KeepsMostRecentRowPerCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(columnar(
			[]string{"ts_code", "trade_date", "open", "high", "low", "close", "pre_close", "vol", "amount"},
			[][]interface{}{
				{"600036.SH", "20260213", 37.0, 37.5, 36.8, 37.2, 37.0, 1500.0, 5500.0},
				{"600036.SH", "20260212", 36.5, 37.1, 36.4, 37.0, 36.6, 1200.0, 4400.0},
				{"000001.SZ", "20260213", 10.0, 10.2, 9.9, 10.1, 10.0, 900.0, 910.0},
			},
		))
	})

	snaps, err := c.FetchSnapshotBatch(context.Background(), []string{"600036", "000001"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 37.2, snaps["600036"].Close)
	assert.Equal(t, 10.1, snaps["000001"].Close)
}

func TestCall_RateLimitStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchFundamentals(context.Background(), "600036")
	assert.True(t, errors.Is(err, providers.ErrRateLimited))
}

func TestCall_RateLimitEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 40203,
			"msg":  "抱歉，您每分钟最多访问该接口5次",
		})
	})

	_, err := c.FetchFundamentals(context.Background(), "600036")
	assert.True(t, errors.Is(err, providers.ErrRateLimited))
}

func TestCall_MalformedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	})

	_, err := c.FetchFundamentals(context.Background(), "600036")
	assert.True(t, errors.Is(err, providers.ErrMalformed))
}

func TestCall_ServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.FetchFundamentals(context.Background(), "600036")
	assert.True(t, errors.Is(err, providers.ErrUnavailable))
}

func TestExchangeCodeMapping(t *testing.T) {
	cases := map[string]string{
		"600036": "600036.SH",
		"000001": "000001.SZ",
		"300750": "300750.SZ",
		"832566": "832566.BJ",
	}
	for code, want := range cases {
		if got := toExchangeCode(code); got != want {
			t.Errorf("toExchangeCode(%q) = %q, want %q", code, got, want)
		}
	}
	if got := fromExchangeCode("600036.SH"); got != "600036" {
		t.Errorf("fromExchangeCode = %q, want 600036", got)
	}
}
