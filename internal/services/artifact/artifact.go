package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// FormatVersion is the only artifact layout this package understands.
const FormatVersion = 1

// Step kinds.
const (
	KindStandardScaler     = "standard_scaler"
	KindMinMaxScaler       = "min_max_scaler"
	KindLogisticRegression = "logistic_regression"
	KindDecisionTree       = "decision_tree"
	KindConstantClassifier = "constant_classifier"
)

var validate = validator.New()

// Document is the on-disk artifact: a versioned pipeline of named steps.
type Document struct {
	FormatVersion int        `json:"format_version" validate:"required,eq=1"`
	Version       string     `json:"version"`
	PipelineType  string     `json:"pipeline_type" default:"Pipeline"`
	FeatureNames  []string   `json:"feature_names" validate:"omitempty,dive,required"`
	Steps         []StepSpec `json:"steps" validate:"required,min=1,dive"`
}

// StepSpec is one named stage. Params are decoded by the kind's builder.
type StepSpec struct {
	Name   string          `json:"name" validate:"required"`
	Kind   string          `json:"kind" validate:"required,oneof=standard_scaler min_max_scaler logistic_regression decision_tree constant_classifier"`
	Params json.RawMessage `json:"params"`
}

// StepNames lists step names in pipeline order.
func (d *Document) StepNames() []string {
	names := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		names[i] = s.Name
	}
	return names
}

// Decode parses and validates an artifact document.
func Decode(b []byte) (*Document, error) {
	var doc Document
	if err := defaults.Set(&doc); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("invalid artifact: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Steps))
	for _, s := range doc.Steps {
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("invalid artifact: duplicate step name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	return &doc, nil
}

// decodeParams fills dst from raw step params: defaults first, then JSON, then tags.
func decodeParams(raw json.RawMessage, dst interface{}) error {
	if err := defaults.Set(dst); err != nil {
		return fmt.Errorf("set defaults: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("params are required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
