package models

// Feature column names in the order the trained artifact was fit on.
const (
	FeatureSystolicBloodPressure = "systolic_blood_pressure"
	FeatureBloodSugar            = "blood_sugar"
	FeatureAge                   = "age"
)

// FeatureNames returns the fixed column order expected by the artifact.
func FeatureNames() []string {
	return []string{FeatureSystolicBloodPressure, FeatureBloodSugar, FeatureAge}
}

// PatientFeatures is one patient's clinical input. Values are passed through as-is:
// raw clinical units or pre-normalized, the artifact interprets them.
type PatientFeatures struct {
	SystolicBloodPressure float64
	BloodSugar            float64
	Age                   float64
}

// FeatureVector is one row in artifact column order. It is built once per request
// and never mutated.
type FeatureVector struct {
	names  []string
	values []float64
}

// NewFeatureVector lays out p as [systolic_blood_pressure, blood_sugar, age].
func NewFeatureVector(p PatientFeatures) FeatureVector {
	return FeatureVector{
		names:  FeatureNames(),
		values: []float64{p.SystolicBloodPressure, p.BloodSugar, p.Age},
	}
}

// Names returns a copy of the column names.
func (v FeatureVector) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Values returns a copy of the row values.
func (v FeatureVector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Len is the number of columns.
func (v FeatureVector) Len() int { return len(v.values) }

// Map returns the vector as name → value, for logging and audit payloads.
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.names))
	for i, name := range v.names {
		m[name] = v.values[i]
	}
	return m
}
