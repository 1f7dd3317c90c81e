package signal

import "github.com/eddiefleurent/vrpscanner/internal/apperr"

// VixRegime names a VIX level band, ordered from calmest to most fearful.
type VixRegime string

const (
	VixVeryLow      VixRegime = "very_low"
	VixLow          VixRegime = "low"
	VixNormal       VixRegime = "normal"
	VixNormalHigh   VixRegime = "normal_high"
	VixElevated     VixRegime = "elevated"
	VixElevatedHigh VixRegime = "elevated_high"
	VixHigh         VixRegime = "high"
	VixExtreme      VixRegime = "extreme"
)

// vixRegimeBand is one entry of the ordered regime table: [lowerBound,
// upperBound) except for the last band, which has no upper bound.
type vixRegimeBand struct {
	regime     VixRegime
	lowerBound float64
	upperBound float64
}

// vixRegimeBands mirrors the VIX_REGIMES table: very_low below 12, a calm
// middle band up to 20, then widening fear bands up to extreme at 40+.
var vixRegimeBands = []vixRegimeBand{
	{VixVeryLow, 0, 12},
	{VixLow, 12, 15},
	{VixNormal, 15, 20},
	{VixNormalHigh, 20, 25},
	{VixElevated, 25, 30},
	{VixElevatedHigh, 30, 35},
	{VixHigh, 35, 40},
	{VixExtreme, 40, 0}, // unbounded above
}

// ClassifyVIXRegime classifies level into its VIX regime band.
func ClassifyVIXRegime(level float64) (VixRegime, error) {
	if level < 0 {
		return "", apperr.New(apperr.KindInvalid, "signal.ClassifyVIXRegime", "VIX level cannot be negative")
	}
	for _, b := range vixRegimeBands {
		if level >= b.lowerBound && (b.upperBound == 0 || level < b.upperBound) {
			return b.regime, nil
		}
	}
	return VixExtreme, nil
}

// IsVIXTradingRecommended reports whether level is calm enough to open new
// positions: extreme volatility (VIX >= 40) counsels against new risk.
func IsVIXTradingRecommended(level float64) bool {
	regime, err := ClassifyVIXRegime(level)
	if err != nil {
		return true
	}
	return regime != VixExtreme
}
