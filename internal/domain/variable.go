package domain

import "fmt"

// Variable identifies one environmental measurement stream.
type Variable string

const (
	SST         Variable = "sst"
	DHW         Variable = "dhw"
	Salinity    Variable = "salinity"
	PH          Variable = "ph"
	Oxygen      Variable = "oxygen"
	Nitrate     Variable = "nitrate"
	Chlorophyll Variable = "chlorophyll"
	Irradiance  Variable = "irradiance"
	Turbidity   Variable = "turbidity"
	WindSpeed   Variable = "wind_speed"
)

// Variables lists every supported variable in canonical column order.
var Variables = []Variable{SST, DHW, Salinity, PH, Oxygen, Nitrate, Chlorophyll, Irradiance, Turbidity, WindSpeed}

// ParseVariable validates a variable name.
func ParseVariable(s string) (Variable, error) {
	for _, v := range Variables {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variable %q", s)
}

// Fill records how a fused cell obtained its value.
type Fill uint8

const (
	// FillMissing marks a cell nobody has filled yet. It never survives fusion.
	FillMissing Fill = iota
	FillObserved
	FillSeasonal
	FillInterpolated
	FillZero
)

func (f Fill) String() string {
	switch f {
	case FillObserved:
		return "observed"
	case FillSeasonal:
		return "seasonal"
	case FillInterpolated:
		return "interpolated"
	case FillZero:
		return "zero"
	default:
		return "missing"
	}
}

// HasData reports whether the value came from data (observed or imputed)
// rather than the zero default.
func (f Fill) HasData() bool {
	return f == FillObserved || f == FillSeasonal || f == FillInterpolated
}
