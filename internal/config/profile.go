package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

// LoadProfile returns the default site profile overlaid with the file at
// path (YAML, TOML or JSON by extension). An empty path yields the defaults.
// Keys absent from the file keep their default; lists present replace the
// default list entirely.
func LoadProfile(path string) (domain.Profile, error) {
	p := domain.DefaultProfile()
	if path == "" {
		return p, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return domain.Profile{}, fmt.Errorf("read site profile: %w", err)
	}
	// the decoder merges into existing slice elements, so clear overridden lists
	if v.IsSet("sources") {
		p.Sources = nil
	}
	if v.IsSet("seasonal_variables") {
		p.SeasonalVariables = nil
	}
	if v.IsSet("features") {
		p.Features = nil
	}
	if err := v.Unmarshal(&p); err != nil {
		return domain.Profile{}, fmt.Errorf("decode site profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return domain.Profile{}, fmt.Errorf("site profile %s: %w", path, err)
	}
	return p, nil
}
