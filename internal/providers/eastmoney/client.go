// Package eastmoney provides the secondary quote provider client.
//
// The upstream is a public push2-style REST API: {rc, data} envelopes,
// numbered field keys, paged roster listing, and kline rows encoded as
// comma-joined strings.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/models"
	"github.com/zhquant/ashare/internal/providers"
)

const (
	DefaultBaseURL = "https://push2.eastmoney.com"
	DefaultTimeout = 30 * time.Second

	ProviderName = "eastmoney"

	rosterPageSize = 2000
)

// Client implements interfaces.QuoteProvider against the secondary API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new secondary provider client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider in logs and data-source breakdowns
func (c *Client) Name() string {
	return ProviderName
}

// flexNumber tolerates numbers, numeric strings, and the "-" placeholder
// the upstream emits for suspended names.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexNumber(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "-" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexNumber(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into number", string(data))
}

// get performs one GET round-trip and decodes into result
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request %s: %v", providers.ErrUnavailable, path, err)
	}

	c.logger.Debug().Str("path", path).Msg("secondary provider request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", providers.ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", providers.ErrRateLimited, path)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: status %d: %s", providers.ErrUnavailable, path, resp.StatusCode, payload)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %s: %v", providers.ErrMalformed, path, err)
	}
	return nil
}

// secID maps a 6-digit code to the upstream "1.600036" form
func secID(code string) string {
	if models.MarketFromCode(code) == models.MarketSH {
		return "1." + code
	}
	return "0." + code
}

type listRow struct {
	Code         string     `json:"f12"`
	Name         string     `json:"f14"`
	Close        flexNumber `json:"f2"`
	Pct          flexNumber `json:"f3"`
	Volume       flexNumber `json:"f5"`
	Amount       flexNumber `json:"f6"`
	TurnoverRate flexNumber `json:"f8"`
	PE           flexNumber `json:"f9"`
	High         flexNumber `json:"f15"`
	Low          flexNumber `json:"f16"`
	Open         flexNumber `json:"f17"`
	PrevClose    flexNumber `json:"f18"`
	TotalCap     flexNumber `json:"f20"`
	FloatCap     flexNumber `json:"f21"`
	PB           flexNumber `json:"f23"`
	Industry     string     `json:"f100"`
}

type listEnvelope struct {
	RC   int `json:"rc"`
	Data *struct {
		Total int       `json:"total"`
		Diff  []listRow `json:"diff"`
	} `json:"data"`
}

// listPage fetches one roster page; fs selects the A-share boards
func (c *Client) listPage(ctx context.Context, page int) (*listEnvelope, error) {
	params := url.Values{}
	params.Set("pn", strconv.Itoa(page))
	params.Set("pz", strconv.Itoa(rosterPageSize))
	params.Set("po", "0")
	params.Set("np", "1")
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("fid", "f12")
	params.Set("fs", "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23,m:0+t:81+s:2048")
	params.Set("fields", "f2,f3,f5,f6,f8,f9,f12,f14,f15,f16,f17,f18,f20,f21,f23,f100")

	var envelope listEnvelope
	if err := c.get(ctx, "/api/qt/clist/get", params, &envelope); err != nil {
		return nil, err
	}
	if envelope.RC != 0 || envelope.Data == nil {
		return nil, fmt.Errorf("%w: clist rc=%d", providers.ErrMalformed, envelope.RC)
	}
	return &envelope, nil
}

// LoadReferenceUniverse pages through the full A-share roster
func (c *Client) LoadReferenceUniverse(ctx context.Context) ([]models.TickerRef, error) {
	var refs []models.TickerRef
	for page := 1; ; page++ {
		envelope, err := c.listPage(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, r := range envelope.Data.Diff {
			refs = append(refs, models.TickerRef{
				Code:      r.Code,
				Market:    models.MarketFromCode(r.Code),
				Board:     models.BoardFromCode(r.Code),
				Name:      r.Name,
				Industry:  r.Industry,
				MarketCap: float64(r.TotalCap) / 1e8,
				FloatCap:  float64(r.FloatCap) / 1e8,
			})
		}
		if len(refs) >= envelope.Data.Total || len(envelope.Data.Diff) == 0 {
			break
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Code < refs[j].Code })
	return refs, nil
}

// FetchSnapshotBatch retrieves latest-session records in one round-trip
func (c *Client) FetchSnapshotBatch(ctx context.Context, codes []string) (map[string]models.QuoteSnapshot, error) {
	if len(codes) == 0 {
		return map[string]models.QuoteSnapshot{}, nil
	}

	secIDs := make([]string, len(codes))
	for i, code := range codes {
		secIDs[i] = secID(code)
	}

	params := url.Values{}
	params.Set("secids", strings.Join(secIDs, ","))
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("np", "1")
	params.Set("fields", "f2,f3,f5,f6,f8,f12,f14,f15,f16,f17,f18")

	var envelope listEnvelope
	if err := c.get(ctx, "/api/qt/ulist.np/get", params, &envelope); err != nil {
		return nil, err
	}
	if envelope.RC != 0 || envelope.Data == nil {
		return nil, fmt.Errorf("%w: ulist rc=%d", providers.ErrMalformed, envelope.RC)
	}
	if len(envelope.Data.Diff) == 0 {
		return nil, fmt.Errorf("%w: ulist: no rows for batch", providers.ErrNotFound)
	}

	now := time.Now()
	out := make(map[string]models.QuoteSnapshot, len(envelope.Data.Diff))
	for _, r := range envelope.Data.Diff {
		out[r.Code] = models.QuoteSnapshot{
			Code:         r.Code,
			Name:         r.Name,
			Open:         float64(r.Open),
			High:         float64(r.High),
			Low:          float64(r.Low),
			Close:        float64(r.Close),
			PrevClose:    float64(r.PrevClose),
			Volume:       float64(r.Volume) * 100, // upstream reports lots
			Turnover:     float64(r.Amount),
			TurnoverRate: float64(r.TurnoverRate),
			Timestamp:    now,
		}
	}
	return out, nil
}

type klineEnvelope struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// FetchHistory retrieves daily bars, parsing comma-joined kline rows
func (c *Client) FetchHistory(ctx context.Context, code string, from, to time.Time) ([]models.HistoryBar, error) {
	params := url.Values{}
	params.Set("secid", secID(code))
	params.Set("klt", "101") // daily
	params.Set("fqt", "1")   // forward adjusted
	params.Set("beg", from.Format("20060102"))
	params.Set("end", to.Format("20060102"))
	params.Set("fields1", "f1,f2,f3")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56")

	var envelope klineEnvelope
	if err := c.get(ctx, "/api/qt/stock/kline/get", params, &envelope); err != nil {
		return nil, err
	}
	if envelope.RC != 0 || envelope.Data == nil {
		return nil, fmt.Errorf("%w: kline for %s: rc=%d", providers.ErrNotFound, code, envelope.RC)
	}

	bars := make([]models.HistoryBar, 0, len(envelope.Data.Klines))
	for _, line := range envelope.Data.Klines {
		bar, err := parseKline(line)
		if err != nil {
			return nil, fmt.Errorf("%w: kline for %s: %v", providers.ErrMalformed, code, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline decodes "2024-01-02,open,close,high,low,volume"
func parseKline(line string) (models.HistoryBar, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return models.HistoryBar{}, fmt.Errorf("short kline row %q", line)
	}

	date, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return models.HistoryBar{}, fmt.Errorf("bad kline date %q", parts[0])
	}

	nums := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return models.HistoryBar{}, fmt.Errorf("bad kline field %q", parts[i+1])
		}
		nums[i] = v
	}

	return models.HistoryBar{
		Date:   date,
		Open:   nums[0],
		Close:  nums[1],
		High:   nums[2],
		Low:    nums[3],
		Volume: nums[4] * 100, // lots
	}, nil
}

// FetchFundamentals returns the valuation fields the quote API carries.
// Financial-statement ratios are not available here; those fields stay
// absent and the gateway falls back to whatever the primary returned.
func (c *Client) FetchFundamentals(ctx context.Context, code string) (*models.Fundamentals, error) {
	params := url.Values{}
	params.Set("secids", secID(code))
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("np", "1")
	params.Set("fields", "f9,f12,f20,f21,f23")

	var envelope listEnvelope
	if err := c.get(ctx, "/api/qt/ulist.np/get", params, &envelope); err != nil {
		return nil, err
	}
	if envelope.RC != 0 || envelope.Data == nil || len(envelope.Data.Diff) == 0 {
		return nil, fmt.Errorf("%w: fundamentals for %s", providers.ErrNotFound, code)
	}

	r := envelope.Data.Diff[0]
	f := &models.Fundamentals{Code: code}
	if r.PE != 0 {
		f.PE = models.Float64Ptr(float64(r.PE))
	}
	if r.PB != 0 {
		f.PB = models.Float64Ptr(float64(r.PB))
	}
	if r.TotalCap != 0 {
		f.MarketCap = models.Float64Ptr(float64(r.TotalCap) / 1e8)
	}
	if r.FloatCap != 0 {
		f.FloatCap = models.Float64Ptr(float64(r.FloatCap) / 1e8)
	}
	return f, nil
}
