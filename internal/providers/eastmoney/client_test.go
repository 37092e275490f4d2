package eastmoney

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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL))
}

func TestFlexNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{`12.5`, 12.5},
		{`"12.5"`, 12.5},
		{`"-"`, 0},
		{`""`, 0},
	}
	for _, tc := range cases {
		var f flexNumber
		if err := json.Unmarshal([]byte(tc.in), &f); err != nil {
			t.Errorf("unmarshal %s: %v", tc.in, err)
			continue
		}
		if float64(f) != tc.want {
			t.Errorf("flexNumber(%s) = %v, want %v", tc.in, float64(f), tc.want)
		}
	}
}

func TestSecID(t *testing.T) {
	if got := secID("600036"); got != "1.600036" {
		t.Errorf("secID(600036) = %q", got)
	}
	if got := secID("000001"); got != "0.000001" {
		t.Errorf("secID(000001) = %q", got)
	}
}

func TestFetchSnapshotBatch_DecodesDiffRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qt/ulist.np/get", r.URL.Path)
		assert.Equal(t, "1.600036,0.000001", r.URL.Query().Get("secids"))

		w.Write([]byte(`{"rc":0,"data":{"total":2,"diff":[
			{"f12":"600036","f14":"招商银行","f2":37.2,"f18":36.6,"f15":37.5,"f16":36.8,"f17":37.0,"f5":1500,"f6":55000000},
			{"f12":"000001","f14":"平安银行","f2":"-","f18":10.0,"f15":10.2,"f16":9.9,"f17":10.0,"f5":900,"f6":9100000}
		]}}`))
	})

	snaps, err := c.FetchSnapshotBatch(context.Background(), []string{"600036", "000001"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 37.2, snaps["600036"].Close)
	assert.Equal(t, 150000.0, snaps["600036"].Volume)
	// suspended placeholder decodes to zero
	assert.Zero(t, snaps["000001"].Close)
}

func TestFetchSnapshotBatch_EmptyDiffIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rc":0,"data":{"total":0,"diff":[]}}`))
	})

	_, err := c.FetchSnapshotBatch(context.Background(), []string{"999999"})
	assert.True(t, errors.Is(err, providers.ErrNotFound))
}

func TestFetchHistory_ParsesKlines(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qt/stock/kline/get", r.URL.Path)
		assert.Equal(t, "101", r.URL.Query().Get("klt"))

		w.Write([]byte(`{"rc":0,"data":{"code":"600036","klines":[
			"2026-02-12,36.5,37.0,37.1,36.4,1200",
			"2026-02-13,37.0,37.2,37.5,36.8,1500"
		]}}`))
	})

	bars, err := c.FetchHistory(context.Background(), "600036",
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, 36.5, bars[0].Open)
	assert.Equal(t, 37.0, bars[0].Close)
	assert.Equal(t, 37.1, bars[0].High)
	assert.Equal(t, 120000.0, bars[0].Volume)
}

func TestFetchHistory_BadKlineIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rc":0,"data":{"code":"600036","klines":["2026-02-12,36.5"]}}`))
	})

	_, err := c.FetchHistory(context.Background(), "600036", time.Now().AddDate(0, -1, 0), time.Now())
	assert.True(t, errors.Is(err, providers.ErrMalformed))
}

func TestLoadReferenceUniverse_PagesUntilTotal(t *testing.T) {
	page := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			// total larger than one page worth of rows forces a second fetch
			w.Write([]byte(`{"rc":0,"data":{"total":3,"diff":[
				{"f12":"600036","f14":"招商银行","f100":"银行","f20":9000e8,"f21":8000e8},
				{"f12":"000001","f14":"平安银行","f100":"银行","f20":3000e8,"f21":2500e8}
			]}}`))
			return
		}
		w.Write([]byte(`{"rc":0,"data":{"total":3,"diff":[
			{"f12":"300750","f14":"宁德时代","f100":"电池","f20":11000e8,"f21":9000e8}
		]}}`))
	})

	refs, err := c.LoadReferenceUniverse(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, 2, page)
	// sorted by code
	assert.Equal(t, "000001", refs[0].Code)
	assert.Equal(t, "600036", refs[2].Code)
	assert.InDelta(t, 9000, refs[2].MarketCap, 1e-9)
}

func TestGet_RateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchSnapshotBatch(context.Background(), []string{"600036"})
	assert.True(t, errors.Is(err, providers.ErrRateLimited))
}
