package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
)

type finnhubEarningsResponse struct {
	EarningsCalendar []finnhubEarningsEntry `json:"earningsCalendar"`
}

type finnhubEarningsEntry struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Hour   string `json:"hour"` // "bmo", "amc", "dmh"
}

// FinnhubProvider implements the EarningsCalendar operation; its other
// Provider methods are unsupported and exist only to satisfy the
// interface, matching the "interchangeable, but not every vendor offers
// every operation" shape described in §4.1.
type FinnhubProvider struct {
	cfg HTTPConfig
}

// NewFinnhubProvider constructs a FinnhubProvider.
func NewFinnhubProvider(cfg HTTPConfig) *FinnhubProvider {
	if cfg.Client == nil {
		cfg.Client = DefaultHTTPConfig().Client
	}
	return &FinnhubProvider{cfg: cfg}
}

// EarningsCalendar lists earnings events with dates in [from, to].
func (p *FinnhubProvider) EarningsCalendar(ctx context.Context, from, to time.Time) ([]EarningsEvent, error) {
	u := strings.TrimRight(p.cfg.BaseURL, "/") + "/calendar/earnings"
	params := url.Values{
		"from":  {from.Format("2006-01-02")},
		"to":    {to.Format("2006-01-02")},
		"token": {p.cfg.APIKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalid, "provider.Finnhub.EarningsCalendar", "failed building request", err)
	}

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindTimeout, "provider.Finnhub.EarningsCalendar", "request timed out", err)
		}
		return nil, apperr.Wrap(apperr.KindExternal, "provider.Finnhub.EarningsCalendar", "request failed", err)
	}
	body, err := readLimited("provider.Finnhub.EarningsCalendar", resp)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus("provider.Finnhub.EarningsCalendar", resp.StatusCode, body); err != nil {
		return nil, err
	}

	var parsed finnhubEarningsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, "provider.Finnhub.EarningsCalendar", "malformed response", err)
	}

	events := make([]EarningsEvent, 0, len(parsed.EarningsCalendar))
	for _, e := range parsed.EarningsCalendar {
		date, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			continue
		}
		events = append(events, EarningsEvent{Ticker: e.Symbol, Date: date, Timing: timingFromHour(e.Hour)})
	}
	return events, nil
}

func timingFromHour(hour string) Timing {
	switch strings.ToLower(hour) {
	case "bmo":
		return BMO
	case "amc":
		return AMC
	case "dmh":
		return DMH
	default:
		return Unknown
	}
}

// Quote is not supported by FinnhubProvider in this deployment.
func (p *FinnhubProvider) Quote(ctx context.Context, ticker string) (money.Money, error) {
	return money.Zero, apperr.New(apperr.KindInvalid, "provider.Finnhub.Quote", "not supported by this provider")
}

// OptionChain is not supported by FinnhubProvider in this deployment.
func (p *FinnhubProvider) OptionChain(ctx context.Context, ticker string, expiration time.Time) (*option.Chain, error) {
	return nil, apperr.New(apperr.KindInvalid, "provider.Finnhub.OptionChain", "not supported by this provider")
}

// HistoricalMoves is not supported by FinnhubProvider in this deployment.
func (p *FinnhubProvider) HistoricalMoves(ctx context.Context, ticker string, limit int) ([]historical.Move, error) {
	return nil, apperr.New(apperr.KindInvalid, "provider.Finnhub.HistoricalMoves", "not supported by this provider")
}

// Sentiment is not supported by FinnhubProvider in this deployment.
func (p *FinnhubProvider) Sentiment(ctx context.Context, ticker string, earningsDate time.Time) (Sentiment, error) {
	return Sentiment{}, apperr.New(apperr.KindInvalid, "provider.Finnhub.Sentiment", "not supported by this provider")
}
