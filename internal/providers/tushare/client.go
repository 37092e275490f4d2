// Package tushare provides the primary quote provider client.
//
// The upstream exposes a single POST endpoint; every call names an
// api_name and receives a columnar {fields, items} payload.
package tushare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/models"
	"github.com/zhquant/ashare/internal/providers"
)

const (
	DefaultBaseURL = "https://api.tushare.pro"
	DefaultTimeout = 30 * time.Second

	ProviderName = "tushare"
)

// Client implements interfaces.QuoteProvider against the primary API
type Client struct {
	baseURL    string
	token      string
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

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new primary provider client
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
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

type apiRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields,omitempty"`
}

// row provides column-name access into one item of a columnar payload
type row struct {
	index  map[string]int
	values []interface{}
}

func (r row) str(field string) string {
	i, ok := r.index[field]
	if !ok || i >= len(r.values) {
		return ""
	}
	if s, ok := r.values[i].(string); ok {
		return s
	}
	return ""
}

func (r row) float(field string) (float64, bool) {
	i, ok := r.index[field]
	if !ok || i >= len(r.values) {
		return 0, false
	}
	switch v := r.values[i].(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// call performs one POST round-trip and decodes the columnar payload
func (c *Client) call(ctx context.Context, apiName string, params map[string]string, fields string) ([]row, error) {
	body, err := json.Marshal(apiRequest{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  fields,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s request: %v", providers.ErrMalformed, apiName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build %s request: %v", providers.ErrUnavailable, apiName, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("api_name", apiName).Msg("primary provider request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", providers.ErrUnavailable, apiName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", providers.ErrRateLimited, apiName)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: status %d: %s", providers.ErrUnavailable, apiName, resp.StatusCode, payload)
	}

	var envelope struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Fields []string        `json:"fields"`
			Items  [][]interface{} `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", providers.ErrMalformed, apiName, err)
	}

	if envelope.Code != 0 {
		if strings.Contains(envelope.Msg, "每分钟") || strings.Contains(envelope.Msg, "频率") {
			return nil, fmt.Errorf("%w: %s: %s", providers.ErrRateLimited, apiName, envelope.Msg)
		}
		return nil, fmt.Errorf("%w: %s: %s", providers.ErrUnavailable, apiName, envelope.Msg)
	}

	index := make(map[string]int, len(envelope.Data.Fields))
	for i, f := range envelope.Data.Fields {
		index[f] = i
	}

	rows := make([]row, len(envelope.Data.Items))
	for i, item := range envelope.Data.Items {
		rows[i] = row{index: index, values: item}
	}
	return rows, nil
}

// toExchangeCode maps a 6-digit code to the upstream "600036.SH" form
func toExchangeCode(code string) string {
	switch models.MarketFromCode(code) {
	case models.MarketSH:
		return code + ".SH"
	case models.MarketBJ:
		return code + ".BJ"
	default:
		return code + ".SZ"
	}
}

// fromExchangeCode strips the exchange suffix
func fromExchangeCode(ec string) string {
	if i := strings.IndexByte(ec, '.'); i > 0 {
		return ec[:i]
	}
	return ec
}

// LoadReferenceUniverse retrieves the full roster, joined with the
// latest valuation row for market caps.
func (c *Client) LoadReferenceUniverse(ctx context.Context) ([]models.TickerRef, error) {
	basic, err := c.call(ctx, "stock_basic",
		map[string]string{"list_status": "L"},
		"ts_code,symbol,name,area,industry")
	if err != nil {
		return nil, err
	}

	caps := map[string][2]float64{}
	valuation, err := c.call(ctx, "daily_basic",
		map[string]string{},
		"ts_code,total_mv,circ_mv")
	if err == nil {
		for _, r := range valuation {
			code := fromExchangeCode(r.str("ts_code"))
			total, _ := r.float("total_mv")
			float, _ := r.float("circ_mv")
			// upstream reports 万元; convert to 亿
			caps[code] = [2]float64{total / 10000, float / 10000}
		}
	}

	refs := make([]models.TickerRef, 0, len(basic))
	for _, r := range basic {
		code := r.str("symbol")
		if code == "" {
			code = fromExchangeCode(r.str("ts_code"))
		}
		cap := caps[code]
		refs = append(refs, models.TickerRef{
			Code:      code,
			Market:    models.MarketFromCode(code),
			Board:     models.BoardFromCode(code),
			Name:      r.str("name"),
			Industry:  r.str("industry"),
			Region:    r.str("area"),
			MarketCap: cap[0],
			FloatCap:  cap[1],
		})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Code < refs[j].Code })
	return refs, nil
}

// FetchSnapshotBatch retrieves the most recent daily bar per ticker
func (c *Client) FetchSnapshotBatch(ctx context.Context, codes []string) (map[string]models.QuoteSnapshot, error) {
	if len(codes) == 0 {
		return map[string]models.QuoteSnapshot{}, nil
	}

	exchangeCodes := make([]string, len(codes))
	for i, code := range codes {
		exchangeCodes[i] = toExchangeCode(code)
	}

	start := time.Now().AddDate(0, 0, -10).Format("20060102")
	rows, err := c.call(ctx, "daily",
		map[string]string{
			"ts_code":    strings.Join(exchangeCodes, ","),
			"start_date": start,
		},
		"ts_code,trade_date,open,high,low,close,pre_close,vol,amount")
	if err != nil {
		return nil, err
	}

	// items are most recent first; keep the first row seen per code
	out := make(map[string]models.QuoteSnapshot, len(codes))
	for _, r := range rows {
		code := fromExchangeCode(r.str("ts_code"))
		if _, seen := out[code]; seen {
			continue
		}
		ts, _ := time.Parse("20060102", r.str("trade_date"))
		open, _ := r.float("open")
		high, _ := r.float("high")
		low, _ := r.float("low")
		cls, _ := r.float("close")
		prev, _ := r.float("pre_close")
		vol, _ := r.float("vol")
		amount, _ := r.float("amount")
		out[code] = models.QuoteSnapshot{
			Code:      code,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			PrevClose: prev,
			Volume:    vol * 100,     // upstream reports lots of 100 shares
			Turnover:  amount * 1000, // upstream reports 千元
			Timestamp: ts,
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: daily: no rows for batch", providers.ErrNotFound)
	}
	return out, nil
}

// FetchHistory retrieves daily bars for one ticker, oldest first
func (c *Client) FetchHistory(ctx context.Context, code string, from, to time.Time) ([]models.HistoryBar, error) {
	rows, err := c.call(ctx, "daily",
		map[string]string{
			"ts_code":    toExchangeCode(code),
			"start_date": from.Format("20060102"),
			"end_date":   to.Format("20060102"),
		},
		"trade_date,open,high,low,close,vol")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: daily history for %s", providers.ErrNotFound, code)
	}

	bars := make([]models.HistoryBar, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse("20060102", r.str("trade_date"))
		if err != nil {
			return nil, fmt.Errorf("%w: daily history for %s: bad trade_date %q", providers.ErrMalformed, code, r.str("trade_date"))
		}
		open, _ := r.float("open")
		high, _ := r.float("high")
		low, _ := r.float("low")
		cls, _ := r.float("close")
		vol, _ := r.float("vol")
		bars = append(bars, models.HistoryBar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: vol * 100,
		})
	}

	// upstream returns most recent first
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// FetchFundamentals joins the valuation and financial-indicator rows
func (c *Client) FetchFundamentals(ctx context.Context, code string) (*models.Fundamentals, error) {
	exchangeCode := toExchangeCode(code)

	valuation, err := c.call(ctx, "daily_basic",
		map[string]string{"ts_code": exchangeCode},
		"ts_code,pe,pb,dv_ratio,total_mv,circ_mv")
	if err != nil {
		return nil, err
	}
	if len(valuation) == 0 {
		return nil, fmt.Errorf("%w: daily_basic for %s", providers.ErrNotFound, code)
	}

	f := &models.Fundamentals{Code: code}
	v := valuation[0]
	if pe, ok := v.float("pe"); ok && pe != 0 {
		f.PE = models.Float64Ptr(pe)
	}
	if pb, ok := v.float("pb"); ok && pb != 0 {
		f.PB = models.Float64Ptr(pb)
	}
	if dv, ok := v.float("dv_ratio"); ok {
		f.DividendYield = models.Float64Ptr(dv)
	}
	if mv, ok := v.float("total_mv"); ok {
		f.MarketCap = models.Float64Ptr(mv / 10000)
	}
	if cv, ok := v.float("circ_mv"); ok {
		f.FloatCap = models.Float64Ptr(cv / 10000)
	}

	indicators, err := c.call(ctx, "fina_indicator",
		map[string]string{"ts_code": exchangeCode},
		"ts_code,roe,or_yoy,netprofit_yoy,debt_to_assets,current_ratio,grossprofit_margin,rd_exp_to_or,div_payout_ratio")
	if err == nil && len(indicators) > 0 {
		r := indicators[0]
		if roe, ok := r.float("roe"); ok {
			f.ROE = models.Float64Ptr(roe)
		}
		if g, ok := r.float("or_yoy"); ok {
			f.RevenueGrowth = models.Float64Ptr(g)
		}
		if g, ok := r.float("netprofit_yoy"); ok {
			f.ProfitGrowth = models.Float64Ptr(g)
		}
		if d, ok := r.float("debt_to_assets"); ok {
			f.DebtRatio = models.Float64Ptr(d)
		}
		if cr, ok := r.float("current_ratio"); ok {
			f.CurrentRatio = models.Float64Ptr(cr)
		}
		if gm, ok := r.float("grossprofit_margin"); ok {
			f.GrossMargin = models.Float64Ptr(gm)
		}
		if rd, ok := r.float("rd_exp_to_or"); ok {
			f.RDRatio = models.Float64Ptr(rd)
		}
		if pr, ok := r.float("div_payout_ratio"); ok {
			f.PayoutRatio = models.Float64Ptr(pr)
		}
	}

	return f, nil
}
