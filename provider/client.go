package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fundpilot/market"
)

// Client wraps the external market-data API. Endpoints are configurable
// so deployments can point at their own aggregation proxy; every call
// carries a hard timeout and tolerates transient failure — callers go
// through the three-tier fallback.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the aggregation endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the transport, used by tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds the market-data client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: "http://127.0.0.1:18181/api",
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) getJSON(path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := c.http.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: http %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}

	var envelope struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("%s: api code %d (%s)", path, envelope.Code, envelope.Msg)
	}
	return json.Unmarshal(envelope.Data, out)
}

// FundNav fetches NAV rows for one fund over [start, end].
func (c *Client) FundNav(fundCode, start, end string) ([]market.NavPoint, error) {
	params := url.Values{}
	params.Set("code", fundCode)
	params.Set("start", start)
	params.Set("end", end)
	var rows []market.NavPoint
	if err := c.getJSON("/fund/nav", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fund %s: empty NAV result", fundCode)
	}
	return rows, nil
}

// IndexDaily fetches OHLCV rows for one index over [start, end].
func (c *Client) IndexDaily(indexCode, start, end string) ([]market.IndexBar, error) {
	params := url.Values{}
	params.Set("code", indexCode)
	params.Set("start", start)
	params.Set("end", end)
	var rows []market.IndexBar
	if err := c.getJSON("/index/daily", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("index %s: empty result", indexCode)
	}
	return rows, nil
}

// valuationRow is the raw index-valuation payload.
type valuationRow struct {
	IndexCode    string  `json:"index_code"`
	TradeDate    string  `json:"trade_date"`
	PE           float64 `json:"pe"`
	PB           float64 `json:"pb"`
	PEPercentile float64 `json:"pe_percentile"`
	PBPercentile float64 `json:"pb_percentile"`
}

// IndexValuation fetches the current valuation percentile of one index.
func (c *Client) IndexValuation(indexCode string) (*valuationRow, error) {
	params := url.Values{}
	params.Set("code", indexCode)
	var row valuationRow
	if err := c.getJSON("/index/valuation", params, &row); err != nil {
		return nil, err
	}
	if row.TradeDate == "" {
		return nil, fmt.Errorf("index %s: empty valuation", indexCode)
	}
	return &row, nil
}

// macroRow is the raw macro-indicator payload.
type macroRow struct {
	Indicator string  `json:"indicator"`
	Period    string  `json:"period"`
	Value     float64 `json:"value"`
}

// MacroIndicators fetches the last n observations of PMI and M2 growth.
func (c *Client) MacroIndicators(n int) ([]macroRow, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprint(n))
	var rows []macroRow
	if err := c.getJSON("/macro/indicators", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("macro: empty result")
	}
	return rows, nil
}

// marginRow is the raw margin-balance payload.
type marginRow struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// MarginBalance fetches the two-exchange margin balance series.
func (c *Client) MarginBalance(start string) ([]marginRow, error) {
	params := url.Values{}
	params.Set("start", start)
	var rows []marginRow
	if err := c.getJSON("/sentiment/margin", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("margin balance: empty result")
	}
	return rows, nil
}
