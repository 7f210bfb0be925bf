// Package model loads the pre-trained bleaching risk estimator: a regression
// tree ensemble exported as JSON with the node arrays of a fitted forest.
package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

var (
	// ErrArtifactMissing means no artifact exists at the configured location.
	ErrArtifactMissing = errors.New("estimator artifact missing")
	// ErrSchemaMismatch means the artifact was trained on a different ordered
	// feature list than the one the pipeline feeds it.
	ErrSchemaMismatch = errors.New("estimator feature schema mismatch")
)

// leaf marks a node without children in the children arrays.
const leaf = -1

// Tree is one regression tree in flattened array form. Node 0 is the root.
// Internal node i sends x to ChildrenLeft[i] when x[Feature[i]] <= Threshold[i],
// else to ChildrenRight[i]. Leaves carry their prediction in Value.
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

// Artifact is a loaded estimator.
type Artifact struct {
	Name     string   `json:"name"`
	Features []string `json:"features"`
	Trees    []Tree   `json:"trees"`
}

// Validate checks structural soundness so Predict cannot index out of range
// or loop.
func (a *Artifact) Validate() error {
	if len(a.Features) == 0 {
		return errors.New("artifact has no features")
	}
	if len(a.Trees) == 0 {
		return errors.New("artifact has no trees")
	}
	for ti, t := range a.Trees {
		n := len(t.Value)
		if n == 0 || len(t.ChildrenLeft) != n || len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n {
			return fmt.Errorf("tree %d: node arrays differ in length", ti)
		}
		for i := 0; i < n; i++ {
			l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
			if l == leaf && r == leaf {
				continue
			}
			if l <= i || r <= i || l >= n || r >= n {
				return fmt.Errorf("tree %d node %d: invalid children %d/%d", ti, i, l, r)
			}
			if f := t.Feature[i]; f < 0 || f >= len(a.Features) {
				return fmt.Errorf("tree %d node %d: feature index %d out of range", ti, i, f)
			}
		}
	}
	return nil
}

// CheckSchema returns ErrSchemaMismatch unless the artifact's feature list
// equals want, order included.
func (a *Artifact) CheckSchema(want []string) error {
	if !slices.Equal(a.Features, want) {
		return fmt.Errorf("%w: artifact %v, pipeline %v", ErrSchemaMismatch, a.Features, want)
	}
	return nil
}

// Predict returns the mean tree output for x, clipped to [0, 100]. x must
// follow the artifact's feature order.
func (a *Artifact) Predict(x []float64) (float64, error) {
	if len(x) != len(a.Features) {
		return 0, fmt.Errorf("%w: got %d values for %d features", ErrSchemaMismatch, len(x), len(a.Features))
	}
	var sum float64
	for i := range a.Trees {
		sum += a.Trees[i].predict(x)
	}
	return domain.ClampScore(sum / float64(len(a.Trees))), nil
}

func (t *Tree) predict(x []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}
