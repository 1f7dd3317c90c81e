package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
)

// singleOrArray unmarshals a field that the Tradier wire format represents
// as either a single object or an array of objects, depending on result
// cardinality — the same quirk the teacher's broker package works around.
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `"null"` {
		*s = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []T
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*s = arr
		return nil
	}
	var single T
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*s = singleOrArray[T]{single}
	return nil
}

type tradierQuoteResponse struct {
	Quotes struct {
		Quote singleOrArray[tradierQuote] `json:"quote"`
	} `json:"quotes"`
}

type tradierQuote struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

type tradierExpirationsResponse struct {
	Expirations struct {
		Date singleOrArray[string] `json:"date"`
	} `json:"expirations"`
}

type tradierOptionChainResponse struct {
	Options struct {
		Option singleOrArray[tradierOption] `json:"option"`
	} `json:"options"`
}

type tradierOption struct {
	Strike       float64        `json:"strike"`
	OptionType   string         `json:"option_type"`
	Bid          float64        `json:"bid"`
	Ask          float64        `json:"ask"`
	OpenInterest int64          `json:"open_interest"`
	Volume       int64          `json:"volume"`
	Greeks       *tradierGreeks `json:"greeks"`
}

type tradierGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	MidIV float64 `json:"mid_iv"`
}

type tradierHistoryResponse struct {
	History struct {
		Day singleOrArray[tradierHistoryDay] `json:"day"`
	} `json:"history"`
}

type tradierHistoryDay struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// APIError carries the vendor's HTTP status and response body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tradier API error: status=%d body=%s", e.StatusCode, e.Body)
}

// TradierProvider implements Provider against the Tradier market-data API.
// Only the read-side endpoints the signal engine needs are wired; order
// placement is explicitly out of scope (non-goal: no broker integration of
// actual orders).
type TradierProvider struct {
	cfg    HTTPConfig
	logger *log.Logger
}

// NewTradierProvider constructs a TradierProvider from cfg, filling in the
// default HTTP client when cfg.Client is nil.
func NewTradierProvider(cfg HTTPConfig, logger *log.Logger) *TradierProvider {
	if cfg.Client == nil {
		cfg.Client = DefaultHTTPConfig().Client
	}
	return &TradierProvider{cfg: cfg, logger: logger}
}

func (p *TradierProvider) makeRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	u := strings.TrimRight(p.cfg.BaseURL, "/") + path
	if params != nil {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalid, "provider.Tradier.makeRequest", "failed building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindTimeout, "provider.Tradier.makeRequest", "request timed out", err)
		}
		return nil, apperr.Wrap(apperr.KindExternal, "provider.Tradier.makeRequest", "request failed", err)
	}

	if p.logger != nil {
		if remaining := resp.Header.Get("X-Ratelimit-Available"); remaining != "" {
			p.logger.Printf("tradier rate limit remaining: %s", remaining)
		}
	}

	body, err := readLimited("provider.Tradier.makeRequest", resp)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus("provider.Tradier.makeRequest", resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// Quote returns the last trade price for ticker.
func (p *TradierProvider) Quote(ctx context.Context, ticker string) (money.Money, error) {
	body, err := p.makeRequest(ctx, http.MethodGet, "/v1/markets/quotes", url.Values{"symbols": {ticker}})
	if err != nil {
		return money.Zero, err
	}
	var resp tradierQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return money.Zero, apperr.Wrap(apperr.KindExternal, "provider.Tradier.Quote", "malformed response", err)
	}
	if len(resp.Quotes.Quote) == 0 {
		return money.Zero, apperr.New(apperr.KindNoData, "provider.Tradier.Quote", "no quote for "+ticker)
	}
	return money.NewMoney(resp.Quotes.Quote[0].Last), nil
}

// OptionChain returns the full chain for ticker at expiration.
func (p *TradierProvider) OptionChain(ctx context.Context, ticker string, expiration time.Time) (*option.Chain, error) {
	spot, err := p.Quote(ctx, ticker)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"symbol":     {ticker},
		"expiration": {expiration.Format("2006-01-02")},
		"greeks":     {"true"},
	}
	body, err := p.makeRequest(ctx, http.MethodGet, "/v1/markets/options/chains", params)
	if err != nil {
		return nil, err
	}
	var resp tradierOptionChainResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, "provider.Tradier.OptionChain", "malformed response", err)
	}
	if len(resp.Options.Option) == 0 {
		return nil, apperr.New(apperr.KindNoData, "provider.Tradier.OptionChain", "empty chain for "+ticker)
	}

	chain := option.NewChain(ticker, expiration, spot)
	for _, o := range resp.Options.Option {
		typ := option.Put
		if strings.EqualFold(o.OptionType, "call") {
			typ = option.Call
		}
		q := option.Quote{
			Strike:       money.NewStrike(o.Strike),
			Type:         typ,
			Bid:          money.NewMoney(o.Bid),
			Ask:          money.NewMoney(o.Ask),
			OpenInterest: o.OpenInterest,
			Volume:       o.Volume,
		}
		if o.Greeks != nil {
			iv := o.Greeks.MidIV
			q.ImpliedVolatility = &iv
			q.Greeks = &option.Greeks{
				Delta: o.Greeks.Delta,
				Gamma: o.Greeks.Gamma,
				Theta: o.Greeks.Theta,
				Vega:  o.Greeks.Vega,
				IV:    o.Greeks.MidIV,
			}
		}
		chain.AddQuote(q)
	}
	return chain, nil
}

// EarningsCalendar is not offered by Tradier's market-data API; callers
// should use a calendar-capable provider (e.g. FinnhubProvider) for this
// operation.
func (p *TradierProvider) EarningsCalendar(ctx context.Context, from, to time.Time) ([]EarningsEvent, error) {
	return nil, apperr.New(apperr.KindInvalid, "provider.Tradier.EarningsCalendar", "not supported by this provider")
}

// HistoricalMoves derives earnings-day moves from daily historical bars
// sampled at a quarterly cadence working back from today — a heuristic
// substitute for a dedicated corporate-actions feed, documented as such.
func (p *TradierProvider) HistoricalMoves(ctx context.Context, ticker string, limit int) ([]historical.Move, error) {
	end := time.Now()
	start := end.AddDate(-(limit + 1), 0, 0)
	params := url.Values{
		"symbol":   {ticker},
		"interval": {"daily"},
		"start":    {start.Format("2006-01-02")},
		"end":      {end.Format("2006-01-02")},
	}
	body, err := p.makeRequest(ctx, http.MethodGet, "/v1/markets/history", params)
	if err != nil {
		return nil, err
	}
	var resp tradierHistoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, "provider.Tradier.HistoricalMoves", "malformed response", err)
	}
	days := []tradierHistoryDay(resp.History.Day)
	if len(days) < 2 {
		return nil, apperr.New(apperr.KindNoData, "provider.Tradier.HistoricalMoves", "insufficient history for "+ticker)
	}

	const quarterlySpacingDays = 63
	var moves []historical.Move
	for i := len(days) - 1; i > 0 && len(moves) < limit; i -= quarterlySpacingDays {
		prev := days[i-1]
		cur := days[i]
		if prev.Close <= 0 {
			continue
		}
		date, err := time.Parse("2006-01-02", cur.Date)
		if err != nil {
			continue
		}
		closeMove := (cur.Close - prev.Close) / prev.Close * 100
		gapMove := (cur.Open - prev.Close) / prev.Close * 100
		intradayMove := (cur.High - cur.Low) / prev.Close * 100
		moves = append(moves, historical.Move{
			Ticker:          ticker,
			EarningsDate:    date,
			PrevClose:       prev.Close,
			EarningsClose:   cur.Close,
			CloseMovePct:    abs(closeMove),
			GapMovePct:      abs(gapMove),
			IntradayMovePct: abs(intradayMove),
		})
	}
	return moves, nil
}

// Sentiment is not offered by Tradier; pair this provider with
// LLMSentimentProvider for that operation.
func (p *TradierProvider) Sentiment(ctx context.Context, ticker string, earningsDate time.Time) (Sentiment, error) {
	return Sentiment{}, apperr.New(apperr.KindInvalid, "provider.Tradier.Sentiment", "not supported by this provider")
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

