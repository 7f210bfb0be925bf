// Package copernicus supplies the wind and turbidity covariates of the daily
// status job. The marine service requires an authenticated toolbox session,
// so the provider returns fixed climatological values tagged as simulated.
package copernicus

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

const (
	// DefaultWindSpeed is a typical trade-wind speed over the bank in m/s.
	DefaultWindSpeed = 6.5
	// DefaultTurbidity is a clear-water attenuation coefficient.
	DefaultTurbidity = 0.05
)

// Provider implements pipeline.CovariateSource.
type Provider struct {
	WindSpeed float64
	Turbidity float64
	logger    *slog.Logger
}

// NewProvider returns a provider with the default covariates.
func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{WindSpeed: DefaultWindSpeed, Turbidity: DefaultTurbidity, logger: logger}
}

// Covariates returns the simulated readings for day.
func (p *Provider) Covariates(ctx context.Context, day time.Time) (domain.Covariates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Covariates{}, err
	}
	p.logger.Debug("simulating covariates", "date", day.Format("2006-01-02"))
	return domain.Covariates{
		WindSpeed: p.WindSpeed,
		Turbidity: p.Turbidity,
		Origin:    domain.OriginSimulated,
	}, nil
}
