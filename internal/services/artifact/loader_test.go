package artifact

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"CardioRisk/internal/domain/models"
	"CardioRisk/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalerStep() map[string]interface{} {
	return map[string]interface{}{
		"name": "scaler",
		"kind": KindStandardScaler,
		"params": map[string]interface{}{
			"mean":  []float64{130, 140, 50},
			"scale": []float64{20, 60, 15},
		},
	}
}

func logisticStep() map[string]interface{} {
	return map[string]interface{}{
		"name": "models",
		"kind": KindLogisticRegression,
		"params": map[string]interface{}{
			"coefficients": []float64{0.9, 0.8, 0.7},
			"intercept":    -0.2,
		},
	}
}

func pipelineDoc(steps ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"format_version": 1,
		"version":        "test-1",
		"pipeline_type":  "Pipeline",
		"feature_names":  models.FeatureNames(),
		"steps":          steps,
	}
}

func writeArtifact(t *testing.T, doc interface{}) string {
	t.Helper()
	var b []byte
	switch v := doc.(type) {
	case string:
		b = []byte(v)
	default:
		var err error
		b, err = json.Marshal(v)
		require.NoError(t, err)
	}
	path := filepath.Join(t.TempDir(), "artifact.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func vector(sbp, sugar, age float64) models.FeatureVector {
	return models.NewFeatureVector(models.PatientFeatures{
		SystolicBloodPressure: sbp,
		BloodSugar:            sugar,
		Age:                   age,
	})
}

func TestLoadPipeline(t *testing.T) {
	path := writeArtifact(t, pipelineDoc(scalerStep(), logisticStep()))

	h := Load(path)
	require.True(t, h.Ready())
	require.NoError(t, h.Err())

	info, ok := h.Info()
	require.True(t, ok)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, "test-1", info.Version)
	assert.Equal(t, "Pipeline", info.PipelineType)
	assert.Equal(t, []string{"scaler", "models"}, info.Steps)
	assert.Equal(t, models.FeatureNames(), info.Features)
	assert.Equal(t, "pipeline", info.Entrypoint)
	assert.Len(t, info.Checksum, 64)
}

func TestPipelinePredict(t *testing.T) {
	h := Load(writeArtifact(t, pipelineDoc(scalerStep(), logisticStep())))
	require.True(t, h.Ready())

	tests := []struct {
		name string
		v    models.FeatureVector
		want int
	}{
		{"elevated readings", vector(180, 250, 70), 1},
		{"normal readings", vector(110, 90, 30), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Predict(tt.v)
			require.NoError(t, err)
			assert.False(t, out.IsScalar())
			label, err := out.Label()
			require.NoError(t, err)
			assert.Equal(t, tt.want, label)
		})
	}
}

func TestStepEntrypointSkipsTransformers(t *testing.T) {
	path := writeArtifact(t, pipelineDoc(scalerStep(), logisticStep()))
	h := Load(path, WithEntrypoint(EntrypointStep), WithStep("models"))
	require.True(t, h.Ready())

	// Raw 110/90/30 is far above the fitted means once unscaled.
	out, err := h.Predict(vector(110, 90, 30))
	require.NoError(t, err)
	assert.True(t, out.IsScalar())
	label, err := out.Label()
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	out, err = h.Predict(vector(0, 0, 0))
	require.NoError(t, err)
	label, _ = out.Label()
	assert.Equal(t, 0, label)

	info, _ := h.Info()
	assert.Equal(t, "step", info.Entrypoint)
}

func TestEntrypointsAgreeOnBareEstimator(t *testing.T) {
	path := writeArtifact(t, pipelineDoc(logisticStep()))
	asPipeline := Load(path)
	asStep := Load(path, WithEntrypoint(EntrypointStep))
	require.True(t, asPipeline.Ready())
	require.True(t, asStep.Ready())

	for _, v := range []models.FeatureVector{vector(0, 0, 0), vector(1, 1, 1), vector(-3, -2, -1), vector(0.1, 0.05, 0.2)} {
		a, err := asPipeline.Predict(v)
		require.NoError(t, err)
		b, err := asStep.Predict(v)
		require.NoError(t, err)
		la, _ := a.Label()
		lb, _ := b.Label()
		assert.Equal(t, la, lb)
	}
}

func TestLoadFailuresYieldAbsentHandle(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path func(t *testing.T) string
		opts []Option
	}{
		{"empty path", func(t *testing.T) string { return "" }, nil},
		{"missing file", func(t *testing.T) string { return filepath.Join(dir, "missing.json") }, nil},
		{"directory", func(t *testing.T) string { return dir }, nil},
		{"corrupt json", func(t *testing.T) string { return writeArtifact(t, `{"format_version": 1, "steps": [`) }, nil},
		{"not an object", func(t *testing.T) string { return writeArtifact(t, `[1,2,3]`) }, nil},
		{"unknown field", func(t *testing.T) string {
			doc := pipelineDoc(logisticStep())
			doc["weights"] = []float64{1}
			return writeArtifact(t, doc)
		}, nil},
		{"wrong format version", func(t *testing.T) string {
			doc := pipelineDoc(logisticStep())
			doc["format_version"] = 2
			return writeArtifact(t, doc)
		}, nil},
		{"no steps", func(t *testing.T) string { return writeArtifact(t, pipelineDoc()) }, nil},
		{"unknown kind", func(t *testing.T) string {
			return writeArtifact(t, pipelineDoc(map[string]interface{}{"name": "models", "kind": "svm", "params": map[string]interface{}{}}))
		}, nil},
		{"duplicate step names", func(t *testing.T) string {
			s := scalerStep()
			s["name"] = "models"
			return writeArtifact(t, pipelineDoc(s, logisticStep()))
		}, nil},
		{"dimension mismatch", func(t *testing.T) string {
			s := logisticStep()
			s["params"] = map[string]interface{}{"coefficients": []float64{1, 2}}
			return writeArtifact(t, pipelineDoc(s))
		}, nil},
		{"missing params", func(t *testing.T) string {
			return writeArtifact(t, pipelineDoc(map[string]interface{}{"name": "models", "kind": KindLogisticRegression}))
		}, nil},
		{"threshold out of range", func(t *testing.T) string {
			s := logisticStep()
			s["params"] = map[string]interface{}{"coefficients": []float64{1, 1, 1}, "threshold": 1.5}
			return writeArtifact(t, pipelineDoc(s))
		}, nil},
		{"last step is a transformer", func(t *testing.T) string {
			return writeArtifact(t, pipelineDoc(logisticStep(), scalerStep()))
		}, nil},
		{"inner step is an estimator", func(t *testing.T) string {
			s := logisticStep()
			s["name"] = "first"
			return writeArtifact(t, pipelineDoc(s, logisticStep()))
		}, nil},
		{"missing named step", func(t *testing.T) string {
			return writeArtifact(t, pipelineDoc(scalerStep(), logisticStep()))
		}, []Option{WithEntrypoint(EntrypointStep), WithStep("classifier")}},
		{"named step is a transformer", func(t *testing.T) string {
			return writeArtifact(t, pipelineDoc(scalerStep(), logisticStep()))
		}, []Option{WithEntrypoint(EntrypointStep), WithStep("scaler")}},
		{"unknown entrypoint", func(t *testing.T) string {
			return writeArtifact(t, pipelineDoc(logisticStep()))
		}, []Option{WithEntrypoint("lambda")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h *Handle
			require.NotPanics(t, func() { h = Load(tt.path(t), tt.opts...) })

			assert.False(t, h.Ready())
			assert.Error(t, h.Err())

			_, ok := h.Info()
			assert.False(t, ok)

			_, err := h.Predict(vector(120, 100, 40))
			assert.ErrorIs(t, err, models.ErrModelUnavailable)
		})
	}
}

func TestFeatureNameMismatchIsInferenceError(t *testing.T) {
	doc := pipelineDoc(logisticStep())
	doc["feature_names"] = []string{"age", "blood_sugar", "systolic_blood_pressure"}
	h := Load(writeArtifact(t, doc))
	require.True(t, h.Ready())

	_, err := h.Predict(vector(120, 100, 40))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature names mismatch")
}

func TestUndeclaredFeatureNamesFallBackToFixedOrder(t *testing.T) {
	doc := pipelineDoc(logisticStep())
	delete(doc, "feature_names")
	h := Load(writeArtifact(t, doc))
	require.True(t, h.Ready())

	info, _ := h.Info()
	assert.Equal(t, models.FeatureNames(), info.Features)

	_, err := h.Predict(vector(120, 100, 40))
	assert.NoError(t, err)
}

func TestDecisionTreeArtifact(t *testing.T) {
	tree := map[string]interface{}{
		"name": "models",
		"kind": KindDecisionTree,
		"params": map[string]interface{}{
			"nodes": []map[string]interface{}{
				{"feature_idx": 2, "threshold": 55, "left_child": 1, "right_child": 2},
				{"is_leaf": true, "class_label": 0},
				{"is_leaf": true, "class_label": 1},
			},
		},
	}
	h := Load(writeArtifact(t, pipelineDoc(tree)))
	require.True(t, h.Ready())

	out, err := h.Predict(vector(120, 100, 60))
	require.NoError(t, err)
	label, _ := out.Label()
	assert.Equal(t, 1, label)

	out, err = h.Predict(vector(120, 100, 55))
	require.NoError(t, err)
	label, _ = out.Label()
	assert.Equal(t, 0, label)
}

func TestDecisionTreeRejectsBackwardChildren(t *testing.T) {
	tree := map[string]interface{}{
		"name": "models",
		"kind": KindDecisionTree,
		"params": map[string]interface{}{
			"nodes": []map[string]interface{}{
				{"feature_idx": 0, "threshold": 1, "left_child": 0, "right_child": 1},
				{"is_leaf": true, "class_label": 1},
			},
		},
	}
	h := Load(writeArtifact(t, pipelineDoc(tree)))
	assert.False(t, h.Ready())
	assert.Contains(t, h.Err().Error(), "children must point forward")
}

func TestMinMaxScalerAndConstantClassifier(t *testing.T) {
	scaler := map[string]interface{}{
		"name": "minmax",
		"kind": KindMinMaxScaler,
		"params": map[string]interface{}{
			"data_min": []float64{90, 70, 20},
			"data_max": []float64{200, 300, 20},
		},
	}
	constant := map[string]interface{}{
		"name":   "models",
		"kind":   KindConstantClassifier,
		"params": map[string]interface{}{"label": 2},
	}
	h := Load(writeArtifact(t, pipelineDoc(scaler, constant)))
	require.True(t, h.Ready())

	out, err := h.Predict(vector(145, 185, 20))
	require.NoError(t, err)
	label, err := out.Label()
	require.NoError(t, err)
	assert.Equal(t, 2, label)

	mm := &minMaxScaler{DataMin: []float64{90, 70, 20}, DataMax: []float64{200, 300, 20}}
	x, err := mm.Transform([]float64{145, 185, 33})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, x[0], 1e-9)
	assert.InDelta(t, 0.5, x[1], 1e-9)
	assert.Equal(t, 0.0, x[2])
}

func TestStandardScalerZeroScalePassesThrough(t *testing.T) {
	s := &standardScaler{Mean: []float64{1, 2}, Scale: []float64{2, 0}}
	x, err := s.Transform([]float64{5, 7})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, x)

	_, err = s.Transform([]float64{1})
	assert.Error(t, err)
}

func TestLogisticThresholdDefaultsAndOverrides(t *testing.T) {
	var m logisticRegression
	require.NoError(t, decodeParams(json.RawMessage(`{"coefficients":[1]}`), &m))
	assert.Equal(t, 0.5, m.Threshold)

	require.NoError(t, decodeParams(json.RawMessage(`{"coefficients":[1],"threshold":0}`), &m))
	assert.Equal(t, 0.0, m.Threshold)
}

func TestLoadLogsDiagnostic(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, zerolog.InfoLevel)

	h := Load(writeArtifact(t, pipelineDoc(scalerStep(), logisticStep())), WithLogger(log))
	require.True(t, h.Ready())
	info, _ := h.Info()
	assert.Contains(t, buf.String(), "model artifact loaded")
	assert.Contains(t, buf.String(), info.Checksum)

	buf.Reset()
	Load(filepath.Join(t.TempDir(), "missing.json"), WithLogger(log))
	assert.Contains(t, buf.String(), "model artifact not loaded")
	assert.Contains(t, buf.String(), "missing.json")
}

func TestHandleConcurrentPredict(t *testing.T) {
	h := Load(writeArtifact(t, pipelineDoc(scalerStep(), logisticStep())))
	require.True(t, h.Ready())

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := vector(180, 250, 70)
			if i%2 == 0 {
				v = vector(110, 90, 30)
			}
			out, err := h.Predict(v)
			if err != nil {
				errs <- err
				return
			}
			label, _ := out.Label()
			want := 1
			if i%2 == 0 {
				want = 0
			}
			if label != want {
				errs <- assert.AnError
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
