// Package domain models coral-reef thermal stress monitoring data and the
// bleaching-risk rules applied to it.
//
// # Data Sources
//
// Sea-surface temperature and degree-heating-week series come from NOAA Coral
// Reef Watch products served through ERDDAP (https://coastwatch.pfeg.noaa.gov/erddap/).
// Biogeochemical covariates (salinity, pH, dissolved oxygen, nitrate,
// chlorophyll, light attenuation) come from Copernicus Marine subsets. Both are
// exported as CSV; see package source for the accepted layouts.
//
// # Variables
//
//	sst          sea-surface temperature, degrees C          (thetao, sst, CRW_SST)
//	dhw          degree heating weeks, degC-weeks            (CRW_DHW, dhw)
//	salinity     practical salinity units                    (so, sal, sob)
//	ph           total scale pH                              (ph, talk)
//	oxygen       dissolved oxygen, mmol m-3                  (o2, do, oxygen)
//	nitrate      mmol m-3                                    (no3, nitrate)
//	chlorophyll  mg m-3                                      (chl, chlor_a)
//	irradiance   surface PAR, mol photons m-2 d-1            (par, ppfd)
//	turbidity    diffuse attenuation Kd490, m-1              (kd, kd490)
//	wind_speed   m s-1                                       (wind_speed, wind)
//
// # Derived Features
//
//	benthic_irradiance     = irradiance * exp(-turbidity * depth), depth 7.5 m
//	thermal_threshold      = 27.0, lowered by min((150 - oxygen)/100, 1.0)
//	                         when observed oxygen is below 150
//	heat_excess            = max(sst - thermal_threshold, 0)
//	dhw_estimate           = sum(heat_excess over trailing 84 days) / 7
//	dhw_final              = source dhw when > 0.05, else dhw_estimate
//	interaction_light_heat = sst * irradiance
//	pollution_index        = nitrate * chlorophyll
//	anomaly                = sst - thermal_threshold
//
// The DHW estimate accumulates every positive exceedance, not only those of
// 1 degree or more as in the Coral Reef Watch product. This makes it a
// sensitivity variant and it must not be truncated.
//
// # Alert Levels
//
// The risk score (0-100) is the primary metric:
//
//	score < 30 no-risk | < 60 watch | < 85 alert-1 | otherwise alert-2
//
// Code paths that only have degree heating weeks (the remote daily status job)
// classify on DHW instead and record alert_basis = "dhw":
//
//	dhw < 2 no-risk | < 4 watch | < 8 alert-1 | otherwise alert-2
//
// The two scales are never mixed within one record.
package domain
