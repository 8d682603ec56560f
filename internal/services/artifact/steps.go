package artifact

import (
	"errors"
	"fmt"
	"math"
)

// transformer rewrites a row; all steps but the last are transformers.
type transformer interface {
	Transform(x []float64) ([]float64, error)
}

// estimator turns a row into a class label; the last step is an estimator.
type estimator interface {
	Classify(x []float64) (int, error)
}

// step is a built stage. Exactly one of t or e is set.
type step struct {
	name string
	kind string
	t    transformer
	e    estimator
}

// buildStep decodes params for spec.Kind. width is the declared feature count,
// or 0 when the artifact does not declare feature names.
func buildStep(spec StepSpec, width int) (step, error) {
	s := step{name: spec.Name, kind: spec.Kind}
	var err error
	switch spec.Kind {
	case KindStandardScaler:
		s.t, err = newStandardScaler(spec, width)
	case KindMinMaxScaler:
		s.t, err = newMinMaxScaler(spec, width)
	case KindLogisticRegression:
		s.e, err = newLogisticRegression(spec, width)
	case KindDecisionTree:
		s.e, err = newDecisionTree(spec, width)
	case KindConstantClassifier:
		s.e, err = newConstantClassifier(spec)
	default:
		err = fmt.Errorf("unknown kind %q", spec.Kind)
	}
	if err != nil {
		return step{}, fmt.Errorf("step %q: %w", spec.Name, err)
	}
	return s, nil
}

func checkWidth(field string, n, width int) error {
	if width > 0 && n != width {
		return fmt.Errorf("%s has %d values, artifact declares %d features", field, n, width)
	}
	return nil
}

func checkRow(x []float64, n int) error {
	if len(x) != n {
		return fmt.Errorf("row has %d features, step expects %d", len(x), n)
	}
	return nil
}

// --- standard_scaler ---

type standardScaler struct {
	Mean  []float64 `json:"mean" validate:"required,min=1"`
	Scale []float64 `json:"scale" validate:"required,min=1"`
}

func newStandardScaler(spec StepSpec, width int) (*standardScaler, error) {
	var s standardScaler
	if err := decodeParams(spec.Params, &s); err != nil {
		return nil, err
	}
	if len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("mean and scale differ in length (%d vs %d)", len(s.Mean), len(s.Scale))
	}
	if err := checkWidth("mean", len(s.Mean), width); err != nil {
		return nil, err
	}
	return &s, nil
}

// Transform computes (x-mean)/scale. A zero scale leaves the centered value unscaled.
func (s *standardScaler) Transform(x []float64) ([]float64, error) {
	if err := checkRow(x, len(s.Mean)); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - s.Mean[i]
		if s.Scale[i] != 0 {
			out[i] /= s.Scale[i]
		}
	}
	return out, nil
}

// --- min_max_scaler ---

type minMaxScaler struct {
	DataMin []float64 `json:"data_min" validate:"required,min=1"`
	DataMax []float64 `json:"data_max" validate:"required,min=1"`
}

func newMinMaxScaler(spec StepSpec, width int) (*minMaxScaler, error) {
	var s minMaxScaler
	if err := decodeParams(spec.Params, &s); err != nil {
		return nil, err
	}
	if len(s.DataMin) != len(s.DataMax) {
		return nil, fmt.Errorf("data_min and data_max differ in length (%d vs %d)", len(s.DataMin), len(s.DataMax))
	}
	if err := checkWidth("data_min", len(s.DataMin), width); err != nil {
		return nil, err
	}
	return &s, nil
}

// Transform maps each column onto [0,1] of the fitted range. A zero range maps to 0.
func (s *minMaxScaler) Transform(x []float64) ([]float64, error) {
	if err := checkRow(x, len(s.DataMin)); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, v := range x {
		span := s.DataMax[i] - s.DataMin[i]
		if span == 0 {
			continue
		}
		out[i] = (v - s.DataMin[i]) / span
	}
	return out, nil
}

// --- logistic_regression ---

type logisticRegression struct {
	Coefficients []float64 `json:"coefficients" validate:"required,min=1"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold" default:"0.5" validate:"gte=0,lte=1"`
}

func newLogisticRegression(spec StepSpec, width int) (*logisticRegression, error) {
	var m logisticRegression
	if err := decodeParams(spec.Params, &m); err != nil {
		return nil, err
	}
	if err := checkWidth("coefficients", len(m.Coefficients), width); err != nil {
		return nil, err
	}
	return &m, nil
}

// Classify returns 1 when sigmoid(w·x+b) reaches the threshold, 0 otherwise.
func (m *logisticRegression) Classify(x []float64) (int, error) {
	if err := checkRow(x, len(m.Coefficients)); err != nil {
		return 0, err
	}
	z := m.Intercept
	for i, v := range x {
		z += m.Coefficients[i] * v
	}
	p := sigmoid(z)
	if math.IsNaN(p) {
		return 0, errors.New("probability is NaN")
	}
	if p >= m.Threshold {
		return 1, nil
	}
	return 0, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// --- decision_tree ---

type treeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
}

type decisionTree struct {
	Nodes []treeNode `json:"nodes" validate:"required,min=1"`
}

func newDecisionTree(spec StepSpec, width int) (*decisionTree, error) {
	var t decisionTree
	if err := decodeParams(spec.Params, &t); err != nil {
		return nil, err
	}
	for i, n := range t.Nodes {
		if n.IsLeaf {
			continue
		}
		if n.FeatureIdx < 0 || (width > 0 && n.FeatureIdx >= width) {
			return nil, fmt.Errorf("node %d: feature index %d out of range", i, n.FeatureIdx)
		}
		if n.LeftChild <= i || n.LeftChild >= len(t.Nodes) || n.RightChild <= i || n.RightChild >= len(t.Nodes) {
			return nil, fmt.Errorf("node %d: children must point forward inside the tree", i)
		}
	}
	return &t, nil
}

// Classify walks from the root: left when x[feature] <= threshold, right otherwise.
// Children always point forward, so the walk ends in at most len(Nodes) steps.
func (t *decisionTree) Classify(x []float64) (int, error) {
	idx := 0
	for range t.Nodes {
		n := t.Nodes[idx]
		if n.IsLeaf {
			return n.ClassLabel, nil
		}
		if n.FeatureIdx >= len(x) {
			return 0, fmt.Errorf("feature index %d out of range for row of %d", n.FeatureIdx, len(x))
		}
		if x[n.FeatureIdx] <= n.Threshold {
			idx = n.LeftChild
		} else {
			idx = n.RightChild
		}
	}
	return 0, errors.New("tree walk did not reach a leaf")
}

// --- constant_classifier ---

type constantClassifier struct {
	Label *int `json:"label" validate:"required"`
}

func newConstantClassifier(spec StepSpec) (*constantClassifier, error) {
	var c constantClassifier
	if err := decodeParams(spec.Params, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *constantClassifier) Classify(x []float64) (int, error) {
	return *c.Label, nil
}
