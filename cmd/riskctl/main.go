// Command riskctl talks to a running risk service or inspects an artifact file.
//
//	riskctl predict -sbp 145 -sugar 130 -age 58
//	riskctl info
//	riskctl inspect -model models/heart_pipeline.json -sbp 145 -sugar 130 -age 58
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"CardioRisk/internal/domain/models"
	"CardioRisk/internal/services/artifact"
	"CardioRisk/internal/usecase"
	xhttp "CardioRisk/pkg/http"
	"CardioRisk/pkg/logger"

	"github.com/rs/zerolog"
)

const usage = `usage: riskctl <command> [flags]

commands:
  predict   POST features to /predict
  info      GET /model-info
  inspect   load an artifact locally and optionally score one patient
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "riskctl:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}

	switch args[0] {
	case "predict":
		return predict(args[1:], stdout)
	case "info":
		return info(args[1:], stdout)
	case "inspect":
		return inspect(args[1:], stdout, stderr)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

type featureFlags struct {
	sbp, sugar, age *float64
}

func addFeatureFlags(fs *flag.FlagSet) featureFlags {
	return featureFlags{
		sbp:   fs.Float64("sbp", -1, "systolic blood pressure"),
		sugar: fs.Float64("sugar", -1, "blood sugar"),
		age:   fs.Float64("age", -1, "age in years"),
	}
}

// set reports whether every feature flag was given.
func (f featureFlags) set(fs *flag.FlagSet) bool {
	seen := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { seen[fl.Name] = true })
	return seen["sbp"] && seen["sugar"] && seen["age"]
}

func (f featureFlags) patient() models.PatientFeatures {
	return models.PatientFeatures{
		SystolicBloodPressure: *f.sbp,
		BloodSugar:            *f.sugar,
		Age:                   *f.age,
	}
}

func newClient(fs *flag.FlagSet) (*string, *time.Duration) {
	addr := fs.String("addr", "http://localhost:8001", "service base URL")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	return addr, timeout
}

func predict(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	addr, timeout := newClient(fs)
	feats := addFeatureFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !feats.set(fs) {
		return errors.New("predict needs -sbp, -sugar and -age")
	}

	p := feats.patient()
	client := xhttp.NewClient(xhttp.WithBaseURL(*addr), xhttp.WithTimeout(*timeout), xhttp.WithUserAgent("riskctl"))
	var res models.PredictionResult
	err := client.PostJSON(context.Background(), "/predict", models.PredictRequest{
		SystolicBloodPressure: &p.SystolicBloodPressure,
		BloodSugar:            &p.BloodSugar,
		Age:                   &p.Age,
	}, &res)
	if err != nil {
		return err
	}
	if err := writeJSON(stdout, res); err != nil {
		return err
	}
	if res.NoVerdict() {
		return fmt.Errorf("no verdict: %s", res.Message)
	}
	return nil
}

func info(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	addr, timeout := newClient(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := xhttp.NewClient(xhttp.WithBaseURL(*addr), xhttp.WithTimeout(*timeout), xhttp.WithUserAgent("riskctl"))
	var raw json.RawMessage
	if err := client.GetJSON(context.Background(), "/model-info", nil, &raw); err != nil {
		return err
	}
	return writeJSON(stdout, raw)
}

func inspect(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	path := fs.String("model", "", "artifact path")
	entrypoint := fs.String("entrypoint", string(artifact.EntrypointPipeline), "pipeline or step")
	step := fs.String("step", artifact.DefaultStep, "step name for the step entrypoint")
	verbose := fs.Bool("v", false, "log the load diagnostic")
	feats := addFeatureFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logger.Nop()
	if *verbose {
		log = logger.NewWithWriter(stderr, zerolog.InfoLevel)
	}
	h := artifact.Load(*path,
		artifact.WithEntrypoint(artifact.Entrypoint(*entrypoint)),
		artifact.WithStep(*step),
		artifact.WithLogger(log),
	)
	mi, ok := h.Info()
	if !ok {
		return fmt.Errorf("artifact not loaded: %w", h.Err())
	}

	out := struct {
		Info   models.ModelInfo         `json:"info"`
		Result *models.PredictionResult `json:"result,omitempty"`
	}{Info: mi}
	if feats.set(fs) {
		res := usecase.NewRiskAssessor(h, nil, log).Predict(feats.patient())
		out.Result = &res
	}
	return writeJSON(stdout, out)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
