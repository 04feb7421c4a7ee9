package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo reads quotes and daily candles from the Yahoo Finance chart API.
type Yahoo struct {
	baseURL    string
	httpClient *http.Client
}

// NewYahoo creates a chart API client. An empty baseURL uses DefaultYahooURL.
func NewYahoo(baseURL string) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	return &Yahoo{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) chart(ctx context.Context, symbol, rng string) (*chartResponse, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		y.baseURL, url.PathEscape(symbol), url.QueryEscape(rng))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "equitrader/1.0")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out chartResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s: %w", symbol, out.Chart.Error.Description, ErrNoPrice)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(out.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: empty chart: %w", symbol, ErrNoPrice)
	}
	return &out, nil
}

// CurrentPrice returns the regular market price.
func (y *Yahoo) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	c, err := y.chart(ctx, symbol, "1d")
	if err != nil {
		return 0, err
	}
	p := c.Chart.Result[0].Meta.RegularMarketPrice
	if p <= 0 {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
	}
	return p, nil
}

// History returns daily candles for a range such as "1mo", "3mo" or "1y".
// Bars with missing values are skipped.
func (y *Yahoo) History(ctx context.Context, symbol string, period string) ([]Candle, error) {
	c, err := y.chart(ctx, symbol, period)
	if err != nil {
		return nil, err
	}

	res := c.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := res.Indicators.Quote[0]

	var out []Candle
	for i, stamp := range res.Timestamp {
		if i >= len(q.Close) || i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) {
			break
		}
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		var vol float64
		if i < len(q.Volume) && q.Volume[i] != nil {
			vol = *q.Volume[i]
		}
		out = append(out, Candle{
			Open:   *q.Open[i],
			High:   *q.High[i],
			Low:    *q.Low[i],
			Close:  *q.Close[i],
			Time:   time.Unix(stamp, 0).UTC(),
			Volume: vol,
		})
	}
	return out, nil
}
