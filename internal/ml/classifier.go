// Package ml is the boundary to the pre-trained risk classifier. The model
// artifact is opaque; the package only knows its JSON manifest (feature-name
// list and reported test accuracy) and a narrow predict contract.
//
// The production classifier shells out to a Python inference script over
// JSON stdin/stdout. A deterministic heuristic classifier is available as a
// development fallback behind a config flag.
package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

// Distribution maps each risk label to its probability. Values are in [0,1]
// and sum to 1.
type Distribution map[attendance.RiskLevel]float64

// Prediction is the classifier output: the argmax label, the full
// distribution, and the winning probability as confidence.
type Prediction struct {
	Risk        attendance.RiskLevel `json:"risk"`
	Probability Distribution         `json:"probability"`
	Confidence  float64              `json:"confidence"`
}

// Classifier is the narrow interface the risk stage depends on. The artifact
// format behind an implementation is an external contract, not something the
// core should know about.
type Classifier interface {
	Predict(ctx context.Context, vector []float64) (Prediction, error)
}

// Manifest describes the classifier artifact: the ordered feature-name list
// the model was trained on, its reported test accuracy, and the model file.
type Manifest struct {
	FeatureNames []string `json:"feature_names"`
	TestAccuracy float64  `json:"test_accuracy"`
	ModelPath    string   `json:"model_path"`
}

// LoadManifest reads and parses the artifact manifest. A missing or
// malformed manifest is a ConfigurationError: the service must not start
// without a verifiable model contract.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, attendance.NewConfigurationError(
			fmt.Sprintf("classifier manifest %s not readable", path), err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, attendance.NewConfigurationError(
			fmt.Sprintf("classifier manifest %s is not valid JSON", path), err)
	}
	if len(m.FeatureNames) == 0 {
		return nil, attendance.NewConfigurationError(
			fmt.Sprintf("classifier manifest %s has no feature names", path), nil)
	}
	return &m, nil
}

// Validate checks the manifest's feature names against the extractor's
// manifest. Any disagreement in length, order, or naming is a
// ConfigurationError; running with a mismatched layout would silently
// feed the model garbage.
func (m *Manifest) Validate(expected []string) error {
	if len(m.FeatureNames) != len(expected) {
		return attendance.NewConfigurationError(fmt.Sprintf(
			"classifier expects %d features, extractor produces %d",
			len(m.FeatureNames), len(expected)), nil)
	}
	for i, name := range expected {
		if m.FeatureNames[i] != name {
			return attendance.NewConfigurationError(fmt.Sprintf(
				"feature %d mismatch: classifier has %q, extractor has %q",
				i, m.FeatureNames[i], name), nil)
		}
	}
	return nil
}

// normalize validates probability values and rescales small drift so the
// distribution sums to exactly 1.
func normalize(dist Distribution) (Distribution, error) {
	sum := 0.0
	for label, p := range dist {
		if p != p || p < 0 || p > 1 {
			return nil, fmt.Errorf("invalid probability %f for label %s", p, label)
		}
		sum += p
	}
	if sum <= 0 {
		return nil, fmt.Errorf("probability distribution sums to %f", sum)
	}
	out := make(Distribution, len(dist))
	for label, p := range dist {
		out[label] = p / sum
	}
	return out, nil
}

// argmax returns the label with the highest probability and that probability.
// Iteration is over a fixed label order for determinism.
func argmax(dist Distribution) (attendance.RiskLevel, float64) {
	order := []attendance.RiskLevel{attendance.RiskHigh, attendance.RiskLow, attendance.RiskModerate}
	best := order[0]
	bestP := -1.0
	for _, label := range order {
		if p, ok := dist[label]; ok && p > bestP {
			best = label
			bestP = p
		}
	}
	return best, bestP
}
