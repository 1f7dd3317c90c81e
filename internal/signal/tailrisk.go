package signal

import (
	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
)

// TailRiskLevel classifies how fat-tailed the historical move distribution is (§4.9).
type TailRiskLevel string

const (
	TailHigh   TailRiskLevel = "HIGH"
	TailNormal TailRiskLevel = "NORMAL"
	TailLow    TailRiskLevel = "LOW"
)

// PositionLimits caps position size based on tail risk.
type PositionLimits struct {
	Ticker        string
	TailRiskRatio float64
	TailRiskLevel TailRiskLevel
	MaxContracts  int
	MaxNotional   float64
	AvgMove       float64
	MaxMove       float64
}

// NormalCaps are the caps applied outside the HIGH tail-risk level.
const (
	NormalMaxContracts = 100
	NormalMaxNotional  = 50_000
	HighMaxContracts   = 50
	HighMaxNotional    = 25_000
)

// ComputeTailRisk derives position caps from a ticker's historical move distribution.
func ComputeTailRisk(ticker string, moves []historical.Move, metric historical.MoveMetric) (*PositionLimits, error) {
	if len(moves) == 0 {
		return nil, apperr.New(apperr.KindNoData, "signal.ComputeTailRisk", "no historical moves to assess tail risk")
	}

	pcts := historical.Pcts(moves, metric)
	meanAbs := historical.MeanAbs(pcts)
	if meanAbs <= 0 {
		return nil, apperr.New(apperr.KindInvalid, "signal.ComputeTailRisk", "mean historical move is non-positive")
	}
	maxAbs := historical.MaxAbs(pcts)

	ratio := maxAbs / meanAbs

	var level TailRiskLevel
	var maxContracts int
	var maxNotional float64
	switch {
	case ratio > 2.5:
		level = TailHigh
		maxContracts = HighMaxContracts
		maxNotional = HighMaxNotional
	case ratio >= 1.5:
		level = TailNormal
		maxContracts = NormalMaxContracts
		maxNotional = NormalMaxNotional
	default:
		level = TailLow
		maxContracts = NormalMaxContracts
		maxNotional = NormalMaxNotional
	}

	return &PositionLimits{
		Ticker:        ticker,
		TailRiskRatio: ratio,
		TailRiskLevel: level,
		MaxContracts:  maxContracts,
		MaxNotional:   maxNotional,
		AvgMove:       meanAbs,
		MaxMove:       maxAbs,
	}, nil
}
