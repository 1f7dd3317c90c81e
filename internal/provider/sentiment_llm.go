package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/option"
)

type llmSentimentRequest struct {
	Ticker       string `json:"ticker"`
	EarningsDate string `json:"earnings_date"`
}

type llmSentimentResponse struct {
	Direction string   `json:"direction"`
	Score     float64  `json:"score"`
	Catalysts []string `json:"catalysts"`
	Risks     []string `json:"risks"`
	Usage     struct {
		OutputTokens    int64 `json:"output_tokens"`
		ReasoningTokens int64 `json:"reasoning_tokens"`
		SearchRequests  int64 `json:"search_requests"`
	} `json:"usage"`
}

// UsageCallback is invoked with raw token/search counts after a successful
// sentiment call, so the caller can forward them to the budget tracker's
// Record operation without this package depending on budget directly.
type UsageCallback func(outputTokens, reasoningTokens, searchRequests int64)

// LLMSentimentProvider implements the Sentiment operation via an
// HTTP-accessible LLM backend. This is the one operation the design marks
// paid and budget-gated (§4.1); callers are expected to call a
// budget.Tracker.Check before invoking Sentiment.
type LLMSentimentProvider struct {
	cfg      HTTPConfig
	model    string
	onUsage  UsageCallback
}

// NewLLMSentimentProvider constructs an LLMSentimentProvider for the given model.
func NewLLMSentimentProvider(cfg HTTPConfig, model string, onUsage UsageCallback) *LLMSentimentProvider {
	if cfg.Client == nil {
		cfg.Client = DefaultHTTPConfig().Client
	}
	return &LLMSentimentProvider{cfg: cfg, model: model, onUsage: onUsage}
}

// Sentiment requests a sentiment read for ticker's earningsDate.
func (p *LLMSentimentProvider) Sentiment(ctx context.Context, ticker string, earningsDate time.Time) (Sentiment, error) {
	reqBody, err := json.Marshal(llmSentimentRequest{
		Ticker:       ticker,
		EarningsDate: earningsDate.Format("2006-01-02"),
	})
	if err != nil {
		return Sentiment{}, apperr.Wrap(apperr.KindInvalid, "provider.LLMSentiment.Sentiment", "failed encoding request", err)
	}

	u := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/sentiment"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(reqBody))
	if err != nil {
		return Sentiment{}, apperr.Wrap(apperr.KindInvalid, "provider.LLMSentiment.Sentiment", "failed building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Sentiment{}, apperr.Wrap(apperr.KindTimeout, "provider.LLMSentiment.Sentiment", "request timed out", err)
		}
		return Sentiment{}, apperr.Wrap(apperr.KindExternal, "provider.LLMSentiment.Sentiment", "request failed", err)
	}
	body, err := readLimited("provider.LLMSentiment.Sentiment", resp)
	if err != nil {
		return Sentiment{}, err
	}
	if err := classifyStatus("provider.LLMSentiment.Sentiment", resp.StatusCode, body); err != nil {
		return Sentiment{}, err
	}

	var parsed llmSentimentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Sentiment{}, apperr.Wrap(apperr.KindExternal, "provider.LLMSentiment.Sentiment", "malformed response", err)
	}

	if p.onUsage != nil {
		p.onUsage(parsed.Usage.OutputTokens, parsed.Usage.ReasoningTokens, parsed.Usage.SearchRequests)
	}

	score := money.Clamp(parsed.Score, -1, 1)
	return Sentiment{
		Direction: SentimentDirection(strings.ToLower(parsed.Direction)),
		Score:     score,
		Catalysts: parsed.Catalysts,
		Risks:     parsed.Risks,
	}, nil
}

// Quote is not supported by LLMSentimentProvider.
func (p *LLMSentimentProvider) Quote(ctx context.Context, ticker string) (money.Money, error) {
	return money.Zero, apperr.New(apperr.KindInvalid, "provider.LLMSentiment.Quote", "not supported by this provider")
}

// OptionChain is not supported by LLMSentimentProvider.
func (p *LLMSentimentProvider) OptionChain(ctx context.Context, ticker string, expiration time.Time) (*option.Chain, error) {
	return nil, apperr.New(apperr.KindInvalid, "provider.LLMSentiment.OptionChain", "not supported by this provider")
}

// EarningsCalendar is not supported by LLMSentimentProvider.
func (p *LLMSentimentProvider) EarningsCalendar(ctx context.Context, from, to time.Time) ([]EarningsEvent, error) {
	return nil, apperr.New(apperr.KindInvalid, "provider.LLMSentiment.EarningsCalendar", "not supported by this provider")
}

// HistoricalMoves is not supported by LLMSentimentProvider.
func (p *LLMSentimentProvider) HistoricalMoves(ctx context.Context, ticker string, limit int) ([]historical.Move, error) {
	return nil, apperr.New(apperr.KindInvalid, "provider.LLMSentiment.HistoricalMoves", "not supported by this provider")
}
