package domain

import (
	"math"
	"time"
)

// ThermalThreshold returns the bleaching threshold for a day. Observed
// dissolved oxygen below the hypoxia level lowers the base threshold by
// (hypoxia - oxygen) / 100, at most one degree.
func ThermalThreshold(base, hypoxia, oxygen float64, oxygenObserved bool) float64 {
	if !oxygenObserved || oxygen >= hypoxia {
		return base
	}
	return base - math.Min((hypoxia-oxygen)/100, 1.0)
}

// HeatExcess is the positive exceedance of sst over the threshold. Any
// fractional exceedance counts.
func HeatExcess(sst, threshold float64) float64 {
	return math.Max(sst-threshold, 0)
}

// BenthicIrradiance attenuates surface irradiance through depth meters of
// water with attenuation coefficient turbidity.
func BenthicIrradiance(surface, turbidity, depth float64) float64 {
	return surface * math.Exp(-turbidity*depth)
}

// FinalDHW prefers a source DHW above floor, else the local estimate.
func FinalDHW(source, estimate, floor float64) float64 {
	if source > floor {
		return source
	}
	return estimate
}

// Derive fills the derived features of records in place. Records must be
// sorted by date with unique dates, as produced by the fuser. The DHW
// estimate sums heat excess over the trailing window of calendar days
// (inclusive of the current day) and divides by 7.
func Derive(records []FusedRecord, p Profile) {
	window := time.Duration(p.DHWWindowDays) * 24 * time.Hour

	// hot counts the window's days with positive excess. When it drops to
	// zero the running sum is reset so subtraction residue cannot linger.
	var sum float64
	hot, start := 0, 0
	for i := range records {
		r := &records[i]
		r.ThermalThreshold = ThermalThreshold(p.ThermalThreshold, p.HypoxiaOxygen, r.Oxygen, r.Observed(Oxygen))
		r.HeatExcess = HeatExcess(r.SST, r.ThermalThreshold)
		r.Anomaly = r.SST - r.ThermalThreshold

		sum += r.HeatExcess
		if r.HeatExcess > 0 {
			hot++
		}
		for start < i && !records[start].Date.After(r.Date.Add(-window)) {
			sum -= records[start].HeatExcess
			if records[start].HeatExcess > 0 {
				hot--
			}
			start++
		}
		if hot == 0 {
			sum = 0
		}
		r.DHWEstimate = math.Max(sum, 0) / 7.0

		r.DHWFinal = FinalDHW(r.DHW, r.DHWEstimate, p.DHWSourceFloor)
		r.BenthicIrradiance = BenthicIrradiance(r.Irradiance, r.Turbidity, p.Depth)
		r.InteractionLightHeat = r.SST * r.Irradiance
		r.PollutionIndex = r.Nitrate * r.Chlorophyll
		if r.Origin == "" {
			r.Origin = OriginObserved
		}
	}
}
