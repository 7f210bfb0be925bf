package domain

import (
	"errors"
	"fmt"
)

// BoundingBox is the lat/lon window averaged by remote grid queries.
type BoundingBox struct {
	LatMin float64 `mapstructure:"lat_min"`
	LatMax float64 `mapstructure:"lat_max"`
	LonMin float64 `mapstructure:"lon_min"`
	LonMax float64 `mapstructure:"lon_max"`
}

// SourceSpec tells the source reader where a variable lives: file glob
// patterns relative to the data directory, and accepted value column names in
// priority order (matched case-insensitively).
type SourceSpec struct {
	Variable Variable `mapstructure:"variable"`
	Patterns []string `mapstructure:"patterns"`
	Columns  []string `mapstructure:"columns"`
}

// Profile holds the site-specific constants of a monitoring run.
type Profile struct {
	Site string      `mapstructure:"site"`
	BBox BoundingBox `mapstructure:"bbox"`

	ThermalThreshold   float64 `mapstructure:"thermal_threshold"`
	Depth              float64 `mapstructure:"depth"`
	HypoxiaOxygen      float64 `mapstructure:"hypoxia_oxygen"`
	DHWWindowDays      int     `mapstructure:"dhw_window_days"`
	DHWSourceFloor     float64 `mapstructure:"dhw_source_floor"`
	InterpolationLimit int     `mapstructure:"interpolation_limit"`

	// TurbidityProxy enables turbidity = 0.05 + 0.3 * chlorophyll when no
	// turbidity source is readable.
	TurbidityProxy bool `mapstructure:"turbidity_proxy"`

	Sources []SourceSpec `mapstructure:"sources"`

	// SeasonalVariables receive month-of-year climatology before interpolation.
	SeasonalVariables []Variable `mapstructure:"seasonal_variables"`

	// Features is the ordered estimator input schema.
	Features []string `mapstructure:"features"`
}

// DefaultFeatures is the estimator schema shipped with the reference model.
var DefaultFeatures = []string{
	"sst", "irradiance", "salinity", "chlorophyll", "ph", "nitrate",
	"interaction_light_heat", "pollution_index", "oxygen",
}

// DefaultProfile returns the Abrolhos Bank reference configuration.
func DefaultProfile() Profile {
	return Profile{
		Site: "abrolhos",
		BBox: BoundingBox{LatMin: -18.10, LatMax: -17.20, LonMin: -39.05, LonMax: -38.33},

		ThermalThreshold:   27.0,
		Depth:              7.5,
		HypoxiaOxygen:      150,
		DHWWindowDays:      84,
		DHWSourceFloor:     0.05,
		InterpolationLimit: 14,
		TurbidityProxy:     true,

		Sources: []SourceSpec{
			{Variable: SST, Patterns: []string{"temperature*.csv", "sst*.csv", "dhw*.csv"}, Columns: []string{"thetao", "sst", "CRW_SST"}},
			{Variable: DHW, Patterns: []string{"dhw*.csv"}, Columns: []string{"CRW_DHW", "dhw"}},
			{Variable: Salinity, Patterns: []string{"salinity*.csv"}, Columns: []string{"so", "sal", "sob"}},
			{Variable: PH, Patterns: []string{"ph.csv", "ph_*.csv"}, Columns: []string{"ph", "talk"}},
			{Variable: Oxygen, Patterns: []string{"oxygen*.csv"}, Columns: []string{"o2", "do", "oxygen", "dissolved_oxygen"}},
			{Variable: Nitrate, Patterns: []string{"nitrate*.csv"}, Columns: []string{"no3", "nitrate"}},
			{Variable: Chlorophyll, Patterns: []string{"chlorophyll*.csv"}, Columns: []string{"chl", "chlor_a"}},
			{Variable: Irradiance, Patterns: []string{"par*.csv", "Global weekly*.csv"}, Columns: []string{"par", "ppfd"}},
			{Variable: Turbidity, Patterns: []string{"turbidity*.csv", "cmems_mod_glo_bgc-optics*.csv"}, Columns: []string{"kd", "kd490"}},
			{Variable: WindSpeed, Patterns: []string{"wind*.csv"}, Columns: []string{"wind_speed", "wind", "ws"}},
		},
		SeasonalVariables: []Variable{Irradiance},
		Features:          append([]string(nil), DefaultFeatures...),
	}
}

// Source returns the spec for v, if configured.
func (p Profile) Source(v Variable) (SourceSpec, bool) {
	for _, s := range p.Sources {
		if s.Variable == v {
			return s, true
		}
	}
	return SourceSpec{}, false
}

// Validate checks that the profile is usable.
func (p Profile) Validate() error {
	if p.ThermalThreshold <= 0 {
		return errors.New("thermal_threshold must be positive")
	}
	if p.Depth < 0 {
		return errors.New("depth must not be negative")
	}
	if p.DHWWindowDays < 1 {
		return errors.New("dhw_window_days must be at least 1")
	}
	if p.InterpolationLimit < 0 {
		return errors.New("interpolation_limit must not be negative")
	}
	if p.BBox.LatMin > p.BBox.LatMax || p.BBox.LonMin > p.BBox.LonMax {
		return errors.New("bbox min must not exceed max")
	}
	if len(p.Sources) == 0 {
		return errors.New("at least one source is required")
	}
	for _, s := range p.Sources {
		if _, err := ParseVariable(string(s.Variable)); err != nil {
			return fmt.Errorf("sources: %w", err)
		}
		if len(s.Patterns) == 0 || len(s.Columns) == 0 {
			return fmt.Errorf("sources: %s needs patterns and columns", s.Variable)
		}
	}
	for _, v := range p.SeasonalVariables {
		if _, err := ParseVariable(string(v)); err != nil {
			return fmt.Errorf("seasonal_variables: %w", err)
		}
	}
	probe := FusedRecord{}
	for _, f := range p.Features {
		if _, ok := probe.Feature(f); !ok {
			return fmt.Errorf("features: unknown feature %q", f)
		}
	}
	return nil
}
