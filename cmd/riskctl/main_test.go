package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"CardioRisk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeService(t *testing.T, result models.PredictionResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/predict":
			var req map[string]float64
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 145.0, req["systolic_blood_pressure"])
			assert.Equal(t, 58.0, req["age"])
			_ = json.NewEncoder(w).Encode(result)
		case "/model-info":
			_, _ = w.Write([]byte(`{"error":"pipeline not loaded"}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestPredictCommand(t *testing.T) {
	srv := fakeService(t, models.PredictionResult{Prediction: 1, RiskLevel: "high risk", Message: "see a doctor"})
	defer srv.Close()

	var out bytes.Buffer
	err := run([]string{"predict", "-addr", srv.URL, "-sbp", "145", "-sugar", "130", "-age", "58"}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	var res models.PredictionResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 1, res.Prediction)
}

func TestPredictCommandNoVerdict(t *testing.T) {
	srv := fakeService(t, models.PredictionResult{Prediction: -1, RiskLevel: "error", Message: "model not loaded"})
	defer srv.Close()

	err := run([]string{"predict", "-addr", srv.URL, "-sbp", "145", "-sugar", "130", "-age", "58"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.EqualError(t, err, "no verdict: model not loaded")
}

func TestPredictCommandNeedsAllFeatures(t *testing.T) {
	err := run([]string{"predict", "-sbp", "145"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestInfoCommand(t *testing.T) {
	srv := fakeService(t, models.PredictionResult{})
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, run([]string{"info", "-addr", srv.URL}, &out, &bytes.Buffer{}))
	assert.JSONEq(t, `{"error":"pipeline not loaded"}`, out.String())
}

func TestInspectCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run([]string{"inspect", "-v", "-model", "../../models/heart_pipeline.json",
		"-sbp", "110", "-sugar", "90", "-age", "30"}, &out, &errOut)
	require.NoError(t, err)

	var got struct {
		Info   models.ModelInfo        `json:"info"`
		Result models.PredictionResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []string{"scaler", "models"}, got.Info.Steps)
	assert.Equal(t, 0, got.Result.Prediction)
	assert.Contains(t, errOut.String(), "model artifact loaded")

	err = run([]string{"inspect", "-model", "does-not-exist.json"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "artifact not loaded")
}

func TestUnknownCommand(t *testing.T) {
	var errOut bytes.Buffer
	assert.Error(t, run([]string{"train"}, &bytes.Buffer{}, &errOut))
	assert.Contains(t, errOut.String(), "usage: riskctl")
	assert.Error(t, run(nil, &bytes.Buffer{}, &errOut))
}
