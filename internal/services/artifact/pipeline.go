package artifact

import (
	"fmt"

	"CardioRisk/internal/domain/models"
)

// featureContract checks incoming column names against the names the artifact was fit on.
type featureContract []string

func (fc featureContract) check(v models.FeatureVector) error {
	if len(fc) == 0 {
		return nil
	}
	names := v.Names()
	if len(names) != len(fc) {
		return fmt.Errorf("feature names mismatch: got %v, artifact expects %v", names, []string(fc))
	}
	for i := range fc {
		if names[i] != fc[i] {
			return fmt.Errorf("feature names mismatch: got %v, artifact expects %v", names, []string(fc))
		}
	}
	return nil
}

// pipeline runs every transformer in order, then the final estimator.
// It answers with one label per input row.
type pipeline struct {
	features     featureContract
	transformers []step
	final        step
}

func newPipeline(features []string, steps []step) (*pipeline, error) {
	last := steps[len(steps)-1]
	if last.e == nil {
		return nil, fmt.Errorf("last step %q (%s) is not an estimator", last.name, last.kind)
	}
	for _, s := range steps[:len(steps)-1] {
		if s.t == nil {
			return nil, fmt.Errorf("step %q (%s) is not a transformer", s.name, s.kind)
		}
	}
	return &pipeline{
		features:     features,
		transformers: steps[:len(steps)-1],
		final:        last,
	}, nil
}

func (p *pipeline) Predict(v models.FeatureVector) (models.Outcome, error) {
	if err := p.features.check(v); err != nil {
		return models.Outcome{}, err
	}
	x := v.Values()
	for _, s := range p.transformers {
		var err error
		if x, err = s.t.Transform(x); err != nil {
			return models.Outcome{}, fmt.Errorf("step %q: %w", s.name, err)
		}
	}
	label, err := p.final.e.Classify(x)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("step %q: %w", p.final.name, err)
	}
	return models.BatchOutcome(label), nil
}

// namedStep calls one inner estimator directly on the raw row, skipping the
// transformers in front of it. It answers with a bare label.
type namedStep struct {
	features featureContract
	target   step
}

func newNamedStep(features []string, steps []step, name string) (*namedStep, error) {
	for _, s := range steps {
		if s.name != name {
			continue
		}
		if s.e == nil {
			return nil, fmt.Errorf("step %q (%s) is not an estimator", s.name, s.kind)
		}
		return &namedStep{features: features, target: s}, nil
	}
	return nil, fmt.Errorf("step %q not found in pipeline", name)
}

func (n *namedStep) Predict(v models.FeatureVector) (models.Outcome, error) {
	if err := n.features.check(v); err != nil {
		return models.Outcome{}, err
	}
	label, err := n.target.e.Classify(v.Values())
	if err != nil {
		return models.Outcome{}, fmt.Errorf("step %q: %w", n.target.name, err)
	}
	return models.ScalarOutcome(label), nil
}
