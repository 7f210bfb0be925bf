package domain

import (
	"math"
	"time"
)

// AlertLevel is the four-step bleaching alert scale.
type AlertLevel string

const (
	NoRisk AlertLevel = "no-risk"
	Watch  AlertLevel = "watch"
	Alert1 AlertLevel = "alert-1"
	Alert2 AlertLevel = "alert-2"
)

// Rank orders alert levels from 0 (no-risk) to 3 (alert-2). Unknown levels rank -1.
func (l AlertLevel) Rank() int {
	switch l {
	case NoRisk:
		return 0
	case Watch:
		return 1
	case Alert1:
		return 2
	case Alert2:
		return 3
	default:
		return -1
	}
}

// ParseAlertLevel validates an alert level name.
func ParseAlertLevel(s string) (AlertLevel, bool) {
	l := AlertLevel(s)
	return l, l.Rank() >= 0
}

// Strategy names how a risk score was produced.
type Strategy string

const (
	StrategyModel   Strategy = "model"
	StrategyFormula Strategy = "formula"
	StrategyDHW     Strategy = "dhw"
)

// Basis names the metric an alert level was derived from.
type Basis string

const (
	BasisScore Basis = "score"
	BasisDHW   Basis = "dhw"
)

// Score and DHW band edges, lower bound inclusive.
const (
	scoreWatch  = 30.0
	scoreAlert1 = 60.0
	scoreAlert2 = 85.0

	dhwWatch  = 2.0
	dhwAlert1 = 4.0
	dhwAlert2 = 8.0
)

// RiskAssessment is the scorer output for one day.
type RiskAssessment struct {
	Score    float64    `json:"risk_score"`
	Level    AlertLevel `json:"alert_level"`
	Basis    Basis      `json:"alert_basis"`
	Strategy Strategy   `json:"strategy"`

	// Fallback is set when a model was configured but the formula had to be used.
	Fallback       bool   `json:"fallback,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// ClassifyScore maps a 0-100 risk score to an alert level.
func ClassifyScore(score float64) AlertLevel {
	return step(score, scoreWatch, scoreAlert1, scoreAlert2)
}

// ClassifyDHW maps accumulated degree heating weeks to an alert level. Only
// paths without a risk score use it.
func ClassifyDHW(dhw float64) AlertLevel {
	if math.IsNaN(dhw) {
		dhw = 0
	}
	return step(dhw, dhwWatch, dhwAlert1, dhwAlert2)
}

func step(v, watch, alert1, alert2 float64) AlertLevel {
	switch {
	case v < watch:
		return NoRisk
	case v < alert1:
		return Watch
	case v < alert2:
		return Alert1
	default:
		return Alert2
	}
}

// ClampScore bounds a score to [0, 100]. NaN maps to 0.
func ClampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// FormulaInputs carries the features the deterministic risk formula reads.
type FormulaInputs struct {
	SST            float64
	Threshold      float64
	Irradiance     float64
	Chlorophyll    float64
	PollutionIndex float64
	PH             float64
	// PHObserved gates the acidification term; a zero-defaulted pH is not a reading.
	PHObserved bool
}

// FormulaInputsFrom extracts formula inputs from a fused record.
func FormulaInputsFrom(r *FusedRecord) FormulaInputs {
	return FormulaInputs{
		SST:            r.SST,
		Threshold:      r.ThermalThreshold,
		Irradiance:     r.Irradiance,
		Chlorophyll:    r.Chlorophyll,
		PollutionIndex: r.PollutionIndex,
		PH:             r.PH,
		PHObserved:     r.Observed(PH),
	}
}

// FormulaScore computes the additive non-linear bleaching risk score:
//   - thermal:       (sst - threshold)^2 * 15 above threshold
//   - light synergy: (irradiance - 45) * 0.5 * min(thermal * 0.1, 1) above threshold and 45
//   - refuge:        -10 for chlorophyll strictly inside (0.3, 1.0)
//   - pollution:     +25 when pollution_index > 0.01
//   - acidification: (8.05 - pH) * 80 below 8.05, +10 more when also above threshold
//
// The sum is clamped to [0, 100].
func FormulaScore(in FormulaInputs) float64 {
	hot := in.SST > in.Threshold

	var thermal float64
	if hot {
		excess := in.SST - in.Threshold
		thermal = excess * excess * 15
	}
	score := thermal

	if hot && in.Irradiance > 45 {
		score += (in.Irradiance - 45) * 0.5 * math.Min(thermal*0.1, 1)
	}
	if in.Chlorophyll > 0.3 && in.Chlorophyll < 1.0 {
		score -= 10
	}
	if in.PollutionIndex > 0.01 {
		score += 25
	}
	if in.PHObserved && in.PH < 8.05 {
		score += (8.05 - in.PH) * 80
		if hot {
			score += 10
		}
	}
	return ClampScore(score)
}

// Status is the persisted daily record: fused features plus assessment.
type Status struct {
	Date             time.Time  `json:"date"`
	SST              float64    `json:"sst"`
	ThermalThreshold float64    `json:"thermal_threshold"`
	Anomaly          float64    `json:"anomaly"`
	DHW              float64    `json:"dhw"`
	WindSpeed        float64    `json:"wind_speed"`
	Irradiance       float64    `json:"irradiance"`
	Turbidity        float64    `json:"turbidity"`
	Salinity         float64    `json:"salinity"`
	PH               float64    `json:"ph"`
	Oxygen           float64    `json:"oxygen"`
	Nitrate          float64    `json:"nitrate"`
	Chlorophyll      float64    `json:"chlorophyll"`
	RiskScore        float64    `json:"risk_score"`
	AlertLevel       AlertLevel `json:"alert_level"`
	AlertBasis       Basis      `json:"alert_basis"`
	Strategy         Strategy   `json:"strategy"`
	Origin           Origin     `json:"origin"`
}

// NewStatus combines a fused record and its assessment into the persisted
// form. Irradiance is stored as the benthic (attenuated) value.
func NewStatus(r FusedRecord, a RiskAssessment) Status {
	origin := r.Origin
	if origin == "" {
		origin = OriginObserved
	}
	return Status{
		Date:             TruncateDay(r.Date),
		SST:              r.SST,
		ThermalThreshold: r.ThermalThreshold,
		Anomaly:          r.Anomaly,
		DHW:              r.DHWFinal,
		WindSpeed:        r.WindSpeed,
		Irradiance:       r.BenthicIrradiance,
		Turbidity:        r.Turbidity,
		Salinity:         r.Salinity,
		PH:               r.PH,
		Oxygen:           r.Oxygen,
		Nitrate:          r.Nitrate,
		Chlorophyll:      r.Chlorophyll,
		RiskScore:        a.Score,
		AlertLevel:       a.Level,
		AlertBasis:       a.Basis,
		Strategy:         a.Strategy,
		Origin:           origin,
	}
}
