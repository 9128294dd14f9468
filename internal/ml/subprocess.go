package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

// MetricsTracker is the narrow metrics surface the classifier reports to.
type MetricsTracker interface {
	ClassifierPredictionsInc()
	ClassifierFailuresInc()
	ClassifierTimeoutsInc()
	ClassifierLatencyObserve(float64)
}

// SubprocessClassifier runs inference through a Python script that loads the
// pickled model artifact. Requests and responses travel as JSON over
// stdin/stdout, one process per prediction, bounded by a timeout.
type SubprocessClassifier struct {
	modelPath  string
	scriptPath string
	pythonPath string
	timeout    time.Duration
	metrics    MetricsTracker
}

type inferenceRequest struct {
	Features []float64 `json:"features"`
}

type inferenceResponse struct {
	Risk          string             `json:"risk"`
	Probabilities map[string]float64 `json:"probabilities"`
	Error         string             `json:"error,omitempty"`
}

// NewSubprocessClassifier builds the production classifier. The model file
// must exist; the inference script is created next to it when missing.
// A missing Python interpreter or model file is a ConfigurationError.
func NewSubprocessClassifier(modelPath string, timeout time.Duration, metrics MetricsTracker) (*SubprocessClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, attendance.NewConfigurationError(
			fmt.Sprintf("classifier model %s not found", modelPath), err)
	}

	pythonPath, err := findPython()
	if err != nil {
		return nil, attendance.NewConfigurationError("no Python 3 interpreter for classifier inference", err)
	}

	scriptPath := filepath.Join(filepath.Dir(modelPath), "risk_inference.py")
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		if err := writeInferenceScript(scriptPath); err != nil {
			return nil, attendance.NewConfigurationError("cannot create inference script", err)
		}
	}

	c := &SubprocessClassifier{
		modelPath:  modelPath,
		scriptPath: scriptPath,
		pythonPath: pythonPath,
		timeout:    timeout,
		metrics:    metrics,
	}

	log.Info().
		Str("model_path", modelPath).
		Str("python_path", pythonPath).
		Msg("risk classifier ready")
	return c, nil
}

// Predict runs one inference. Feature values are validated for NaN and
// extreme magnitudes before the subprocess is spawned.
func (c *SubprocessClassifier) Predict(ctx context.Context, vector []float64) (Prediction, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ClassifierLatencyObserve(time.Since(start).Seconds())
		}
	}()

	for i, f := range vector {
		if f != f {
			return Prediction{}, fmt.Errorf("feature %d is NaN", i)
		}
		if f > 1e10 || f < -1e10 {
			return Prediction{}, fmt.Errorf("feature %d has extreme value: %f", i, f)
		}
	}

	reqJSON, err := json.Marshal(inferenceRequest{Features: vector})
	if err != nil {
		return Prediction{}, fmt.Errorf("marshal inference request: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Each prediction runs its own subprocess, so concurrent calls need no
	// serialization; the worker pool bounds how many run at once.
	cmd := exec.CommandContext(runCtx, c.pythonPath, c.scriptPath, c.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if c.metrics != nil {
			c.metrics.ClassifierFailuresInc()
		}
		if runCtx.Err() == context.DeadlineExceeded {
			if c.metrics != nil {
				c.metrics.ClassifierTimeoutsInc()
			}
			return Prediction{}, fmt.Errorf("inference timeout after %v", c.timeout)
		}
		log.Error().
			Err(err).
			Str("stderr", stderr.String()).
			Str("model_path", c.modelPath).
			Msg("classifier inference failed")
		return Prediction{}, fmt.Errorf("python inference failed: %w, stderr: %s", err, stderr.String())
	}

	var resp inferenceResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Prediction{}, fmt.Errorf("parse inference response: %w, stdout: %s", err, stdout.String())
	}
	if resp.Error != "" {
		if c.metrics != nil {
			c.metrics.ClassifierFailuresInc()
		}
		return Prediction{}, fmt.Errorf("python inference error: %s", resp.Error)
	}

	dist := make(Distribution, len(resp.Probabilities))
	for label, p := range resp.Probabilities {
		dist[attendance.RiskLevel(label)] = p
	}
	dist, err = normalize(dist)
	if err != nil {
		return Prediction{}, fmt.Errorf("invalid inference response: %w", err)
	}

	risk, confidence := argmax(dist)
	if resp.Risk != "" {
		risk = attendance.RiskLevel(resp.Risk)
		confidence = dist[risk]
	}

	if c.metrics != nil {
		c.metrics.ClassifierPredictionsInc()
	}

	return Prediction{Risk: risk, Probability: dist, Confidence: confidence}, nil
}

func findPython() (string, error) {
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidates := []string{
			filepath.Join(venv, "bin", "python3"),
			filepath.Join(venv, "bin", "python"),
			filepath.Join(venv, "Scripts", "python.exe"),
		}
		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	for _, candidate := range []string{"python3", "python"} {
		path, err := exec.LookPath(candidate)
		if err != nil {
			continue
		}
		cmd := exec.Command(path, "-c", "import sys; exit(0 if sys.version_info[0] == 3 else 1)")
		if err := cmd.Run(); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no Python 3 executable found")
}

func writeInferenceScript(path string) error {
	script := `#!/usr/bin/env python3
"""Risk classifier inference bridge. Reads {"features": [...]} from stdin,
loads the pickled model, and writes {"risk", "probabilities"} to stdout."""
import json
import pickle
import sys

import numpy as np


def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "usage: risk_inference.py <model_path>"}))
        sys.exit(1)

    try:
        request = json.load(sys.stdin)
        features = np.array([request["features"]], dtype=np.float64)

        with open(sys.argv[1], "rb") as f:
            artifact = pickle.load(f)
        model = artifact["model"]

        risk = model.predict(features)[0]
        probabilities = model.predict_proba(features)[0]
        print(json.dumps({
            "risk": str(risk),
            "probabilities": {
                str(label): float(p)
                for label, p in zip(model.classes_, probabilities)
            },
        }))
    except Exception as e:  # surfaced to the Go side as an inference error
        print(json.dumps({"error": str(e)}))
        sys.exit(1)


if __name__ == "__main__":
    main()
`
	return os.WriteFile(path, []byte(script), 0o755)
}
