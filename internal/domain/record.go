package domain

import (
	"math"
	"time"
)

// RawObservation is one parsed (timestamp, variable, value) triple from a
// source file. Value is NaN when the cell was missing or non-numeric.
type RawObservation struct {
	Time     time.Time
	Variable Variable
	Value    float64
}

// Missing reports whether the observation carries no usable value.
func (o RawObservation) Missing() bool {
	return math.IsNaN(o.Value)
}

// Point is one bucketed value of a series.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is the aligned form of one variable: strictly increasing timestamps,
// at most one value per bucket.
type Series struct {
	Variable Variable
	Points   []Point
}

// Origin tags whether a record is backed by real data or by a fallback
// substitution made after a remote source was exhausted.
type Origin string

const (
	OriginObserved  Origin = "observed"
	OriginSimulated Origin = "simulated"
)

// FusedRecord is one calendar day of the fused feature table.
type FusedRecord struct {
	Date time.Time `json:"date"`

	SST         float64 `json:"sst"`
	DHW         float64 `json:"dhw_source"`
	Salinity    float64 `json:"salinity"`
	PH          float64 `json:"ph"`
	Oxygen      float64 `json:"oxygen"`
	Nitrate     float64 `json:"nitrate"`
	Chlorophyll float64 `json:"chlorophyll"`
	Irradiance  float64 `json:"irradiance"`
	Turbidity   float64 `json:"turbidity"`
	WindSpeed   float64 `json:"wind_speed"`

	// Derived features.
	ThermalThreshold     float64 `json:"thermal_threshold"`
	HeatExcess           float64 `json:"heat_excess"`
	DHWEstimate          float64 `json:"dhw_estimate"`
	DHWFinal             float64 `json:"dhw"`
	BenthicIrradiance    float64 `json:"benthic_irradiance"`
	InteractionLightHeat float64 `json:"interaction_light_heat"`
	PollutionIndex       float64 `json:"pollution_index"`
	Anomaly              float64 `json:"anomaly"`

	Fills  map[Variable]Fill `json:"-"`
	Origin Origin            `json:"origin"`
}

// Value returns the raw variable value of the record.
func (r *FusedRecord) Value(v Variable) float64 {
	if p := r.field(v); p != nil {
		return *p
	}
	return 0
}

// SetValue assigns a raw variable value.
func (r *FusedRecord) SetValue(v Variable, value float64) {
	if p := r.field(v); p != nil {
		*p = value
	}
}

// Observed reports whether v carries data (observed or imputed) rather than
// the zero default.
func (r *FusedRecord) Observed(v Variable) bool {
	return r.Fills[v].HasData()
}

func (r *FusedRecord) field(v Variable) *float64 {
	switch v {
	case SST:
		return &r.SST
	case DHW:
		return &r.DHW
	case Salinity:
		return &r.Salinity
	case PH:
		return &r.PH
	case Oxygen:
		return &r.Oxygen
	case Nitrate:
		return &r.Nitrate
	case Chlorophyll:
		return &r.Chlorophyll
	case Irradiance:
		return &r.Irradiance
	case Turbidity:
		return &r.Turbidity
	case WindSpeed:
		return &r.WindSpeed
	default:
		return nil
	}
}

// Feature resolves an estimator feature name against the record. Raw variables
// use their Variable name; derived features use their JSON name.
func (r *FusedRecord) Feature(name string) (float64, bool) {
	if p := r.field(Variable(name)); p != nil {
		return *p, true
	}
	switch name {
	case "thermal_threshold":
		return r.ThermalThreshold, true
	case "heat_excess":
		return r.HeatExcess, true
	case "dhw_estimate":
		return r.DHWEstimate, true
	case "dhw_final":
		return r.DHWFinal, true
	case "benthic_irradiance":
		return r.BenthicIrradiance, true
	case "interaction_light_heat":
		return r.InteractionLightHeat, true
	case "pollution_index":
		return r.PollutionIndex, true
	case "anomaly":
		return r.Anomaly, true
	default:
		return 0, false
	}
}
