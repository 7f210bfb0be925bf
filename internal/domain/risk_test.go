package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormulaScore_ReferenceScenario(t *testing.T) {
	in := FormulaInputs{
		SST:         29.0,
		Threshold:   27.0,
		Irradiance:  50,
		Chlorophyll: 0.5,
		PH:          8.1,
		PHObserved:  true,
	}

	score := FormulaScore(in)

	// thermal 60 + light 2.5 - refuge 10
	assert.InDelta(t, 52.5, score, 1e-9)
	assert.Equal(t, Watch, ClassifyScore(score))
}

func TestFormulaScore_HypoxiaLowersThreshold(t *testing.T) {
	threshold := ThermalThreshold(27.0, 150, 50, true)
	assert.InDelta(t, 26.0, threshold, 1e-9)
	assert.InDelta(t, 3.0, HeatExcess(29.0, threshold), 1e-9)

	score := FormulaScore(FormulaInputs{
		SST:         29.0,
		Threshold:   threshold,
		Irradiance:  50,
		Chlorophyll: 0.5,
		PH:          8.1,
		PHObserved:  true,
	})
	// thermal 135 + light 2.5 - 10 clamps to 100
	assert.InDelta(t, 100.0, score, 1e-9)
	assert.Equal(t, Alert2, ClassifyScore(score))
}

func TestFormulaScore_Terms(t *testing.T) {
	base := FormulaInputs{SST: 26, Threshold: 27, PH: 8.1, PHObserved: true}

	tests := []struct {
		name string
		mod  func(*FormulaInputs)
		want float64
	}{
		{"cool water scores zero", func(*FormulaInputs) {}, 0},
		{"thermal is quadratic", func(in *FormulaInputs) { in.SST = 28 }, 15},
		{"light needs heat", func(in *FormulaInputs) { in.Irradiance = 80 }, 0},
		{"light below 45 inactive", func(in *FormulaInputs) { in.SST = 28; in.Irradiance = 40 }, 15},
		{"pollution penalty", func(in *FormulaInputs) { in.PollutionIndex = 0.02 }, 25},
		{"pollution at edge inactive", func(in *FormulaInputs) { in.PollutionIndex = 0.01 }, 0},
		{"refuge band exclusive low", func(in *FormulaInputs) { in.Chlorophyll = 0.3; in.PollutionIndex = 0.02 }, 25},
		{"refuge band applies", func(in *FormulaInputs) { in.Chlorophyll = 0.31; in.PollutionIndex = 0.02 }, 15},
		{"acidification", func(in *FormulaInputs) { in.PH = 8.0 }, 4},
		{"acidification synergy with heat", func(in *FormulaInputs) { in.PH = 8.0; in.SST = 28 }, 15 + 4 + 10},
		{"unobserved ph ignored", func(in *FormulaInputs) { in.PH = 0; in.PHObserved = false }, 0},
		{"clamped at 100", func(in *FormulaInputs) { in.SST = 40 }, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mod(&in)
			assert.InDelta(t, tt.want, FormulaScore(in), 1e-9)
		})
	}
}

func TestClassifyScore_Bands(t *testing.T) {
	tests := []struct {
		score float64
		want  AlertLevel
	}{
		{0, NoRisk},
		{29.999, NoRisk},
		{30, Watch},
		{59.999, Watch},
		{60, Alert1},
		{84.999, Alert1},
		{85, Alert2},
		{100, Alert2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyScore(tt.score), "score %v", tt.score)
	}
}

func TestClassifyScore_Monotonic(t *testing.T) {
	prev := ClassifyScore(0).Rank()
	for s := 0.0; s <= 100; s += 0.25 {
		rank := ClassifyScore(s).Rank()
		assert.GreaterOrEqual(t, rank, prev, "score %v", s)
		prev = rank
	}
}

func TestClassifyDHW_Bands(t *testing.T) {
	assert.Equal(t, NoRisk, ClassifyDHW(0))
	assert.Equal(t, NoRisk, ClassifyDHW(1.99))
	assert.Equal(t, Watch, ClassifyDHW(2))
	assert.Equal(t, Alert1, ClassifyDHW(4))
	assert.Equal(t, Alert2, ClassifyDHW(8))
	assert.Equal(t, NoRisk, ClassifyDHW(math.NaN()))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-5))
	assert.Equal(t, 100.0, ClampScore(250))
	assert.Equal(t, 0.0, ClampScore(math.NaN()))
	assert.Equal(t, 42.0, ClampScore(42))
}

func TestParseAlertLevel(t *testing.T) {
	l, ok := ParseAlertLevel("alert-1")
	assert.True(t, ok)
	assert.Equal(t, Alert1, l)

	_, ok = ParseAlertLevel("red")
	assert.False(t, ok)
}
