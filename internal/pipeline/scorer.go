package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/model"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
)

// Estimator is a trained risk model fed an ordered feature vector.
type Estimator interface {
	Predict(x []float64) (float64, error)
	CheckSchema(features []string) error
}

// ArtifactLoader loads an estimator artifact from a path or URI.
type ArtifactLoader interface {
	Load(ctx context.Context, path string) (*model.Artifact, error)
}

// Scorer maps fused records to risk assessments. It uses the estimator when
// one is available and otherwise the deterministic formula, tagging those
// results as a fallback.
type Scorer struct {
	estimator Estimator
	features  []string
	reason    string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewScorer creates a Scorer. Pass a nil estimator to score with the formula
// only. An estimator whose schema differs from features is discarded with a
// warning.
func NewScorer(est Estimator, features []string, logger *slog.Logger, metrics *observability.Metrics) *Scorer {
	s := &Scorer{
		features: features,
		logger:   logger,
		metrics:  metrics,
		reason:   "no estimator configured",
	}
	if est == nil {
		return s
	}
	if err := est.CheckSchema(features); err != nil {
		logger.Warn("estimator unusable, using formula", "error", err)
		s.reason = err.Error()
		return s
	}
	s.estimator = est
	s.reason = ""
	return s
}

// LoadScorer loads the artifact at path and builds a Scorer around it. A
// missing or unloadable artifact never fails: the scorer falls back to the
// formula and logs a warning.
func LoadScorer(ctx context.Context, loader ArtifactLoader, path string, features []string, logger *slog.Logger, metrics *observability.Metrics) *Scorer {
	artifact, err := loader.Load(ctx, path)
	if err != nil {
		logger.Warn("estimator not loaded, using formula", "path", path, "error", err)
		s := NewScorer(nil, features, logger, metrics)
		s.reason = err.Error()
		return s
	}
	logger.Info("estimator loaded", "path", path, "name", artifact.Name, "trees", len(artifact.Trees))
	return NewScorer(artifact, features, logger, metrics)
}

// Strategy reports which strategy Score will try first.
func (s *Scorer) Strategy() domain.Strategy {
	if s.estimator != nil {
		return domain.StrategyModel
	}
	return domain.StrategyFormula
}

// Score assesses one record. The record's derived features must be filled.
func (s *Scorer) Score(r *domain.FusedRecord) domain.RiskAssessment {
	if s.estimator != nil {
		score, err := s.predict(r)
		if err == nil {
			s.metrics.ScorerStrategy.WithLabelValues(string(domain.StrategyModel)).Inc()
			return domain.RiskAssessment{
				Score:    score,
				Level:    domain.ClassifyScore(score),
				Basis:    domain.BasisScore,
				Strategy: domain.StrategyModel,
			}
		}
		s.logger.Warn("estimator failed, using formula", "date", r.Date.Format(dateLayout), "error", err)
		return s.formula(r, err.Error())
	}
	return s.formula(r, s.reason)
}

func (s *Scorer) predict(r *domain.FusedRecord) (float64, error) {
	x := make([]float64, len(s.features))
	for i, name := range s.features {
		v, ok := r.Feature(name)
		if !ok {
			return 0, fmt.Errorf("%w: unknown feature %q", model.ErrSchemaMismatch, name)
		}
		x[i] = v
	}
	return s.estimator.Predict(x)
}

func (s *Scorer) formula(r *domain.FusedRecord, reason string) domain.RiskAssessment {
	s.metrics.ScorerStrategy.WithLabelValues(string(domain.StrategyFormula)).Inc()
	score := domain.FormulaScore(domain.FormulaInputsFrom(r))
	return domain.RiskAssessment{
		Score:          score,
		Level:          domain.ClassifyScore(score),
		Basis:          domain.BasisScore,
		Strategy:       domain.StrategyFormula,
		Fallback:       true,
		FallbackReason: reason,
	}
}

// AssessDHW classifies a day by degree heating weeks alone. It is used where
// no risk score is computed; the score is reported as 0.
func AssessDHW(dhw float64) domain.RiskAssessment {
	return domain.RiskAssessment{
		Score:    0,
		Level:    domain.ClassifyDHW(dhw),
		Basis:    domain.BasisDHW,
		Strategy: domain.StrategyDHW,
	}
}
