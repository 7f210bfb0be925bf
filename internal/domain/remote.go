package domain

import "time"

// Snapshot is the bounding-box mean of the remote heat-stress product for one
// day: sea-surface temperature, degree heating weeks, and the maximum monthly
// mean climatology used as the bleaching threshold.
type Snapshot struct {
	Date   time.Time `json:"date"`
	SST    float64   `json:"sst"`
	DHW    float64   `json:"dhw"`
	MMM    float64   `json:"mmm"`
	Origin Origin    `json:"origin"`
}

// SimulatedSnapshot is substituted when no remote day could be fetched. SST
// sits exactly on the threshold so no heat stress is implied.
func SimulatedSnapshot(day time.Time, threshold float64) Snapshot {
	return Snapshot{
		Date:   TruncateDay(day),
		SST:    threshold,
		DHW:    0,
		MMM:    threshold,
		Origin: OriginSimulated,
	}
}

// Covariates are the secondary physical readings attached to a status day.
type Covariates struct {
	WindSpeed float64 `json:"wind_speed"`
	Turbidity float64 `json:"turbidity"`
	Origin    Origin  `json:"origin"`
}
