package cfg

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	HTTPPort    int
	MetricsPort int

	DataPath string

	ModelPath      string
	ManifestPath   string
	PredictTimeout time.Duration
	AllowFallback  bool

	TotalSessionsPlanned int
	Workers              int

	FaceServiceURL string
	StreamURL      string
	Ping           time.Duration
	RESTTimeout    time.Duration
}

type ConfigFile struct {
	Server struct {
		HTTPPort    int `yaml:"httpPort"`
		MetricsPort int `yaml:"metricsPort"`
	} `yaml:"server"`

	ML struct {
		ModelPath      string `yaml:"modelPath"`
		ManifestPath   string `yaml:"manifestPath"`
		PredictTimeout string `yaml:"predictTimeout"`
		AllowFallback  bool   `yaml:"allowFallback"`
	} `yaml:"ml"`

	Analysis struct {
		TotalSessionsPlanned int `yaml:"totalSessionsPlanned"`
		Workers              int `yaml:"workers"`
	} `yaml:"analysis"`

	FaceService struct {
		BaseURL      string `yaml:"baseURL"`
		StreamURL    string `yaml:"streamURL"`
		PingInterval string `yaml:"pingInterval"`
		RESTTimeout  string `yaml:"restTimeout"`
	} `yaml:"faceService"`

	System struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	predictTimeout, err := time.ParseDuration(config.ML.PredictTimeout)
	if err != nil {
		predictTimeout = 10 * time.Second
	}

	ping, err := time.ParseDuration(config.FaceService.PingInterval)
	if err != nil {
		ping = 15 * time.Second
	}

	restTimeout, err := time.ParseDuration(config.FaceService.RESTTimeout)
	if err != nil {
		restTimeout = 5 * time.Second
	}

	settings := Settings{
		HTTPPort:             getIntFromEnvOrConfig("HTTP_PORT", config.Server.HTTPPort, 8080),
		MetricsPort:          getIntFromEnvOrConfig("METRICS_PORT", config.Server.MetricsPort, 9090),
		DataPath:             getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ModelPath:            getEnvOrDefault("MODEL_PATH", config.ML.ModelPath),
		ManifestPath:         getEnvOrDefault("MANIFEST_PATH", config.ML.ManifestPath),
		PredictTimeout:       predictTimeout,
		AllowFallback:        getBoolFromEnvOrConfig("ALLOW_HEURISTIC_FALLBACK", config.ML.AllowFallback),
		TotalSessionsPlanned: getIntFromEnvOrConfig("TOTAL_SESSIONS_PLANNED", config.Analysis.TotalSessionsPlanned, 80),
		Workers:              getIntFromEnvOrConfig("ANALYSIS_WORKERS", config.Analysis.Workers, runtime.NumCPU()),
		FaceServiceURL:       getEnvOrDefault("FACE_SERVICE_URL", config.FaceService.BaseURL),
		StreamURL:            getEnvOrDefault("FACE_STREAM_URL", config.FaceService.StreamURL),
		Ping:                 ping,
		RESTTimeout:          restTimeout,
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		HTTPPort:             getIntOrDefault("HTTP_PORT", 8080),
		MetricsPort:          getIntOrDefault("METRICS_PORT", 9090),
		DataPath:             os.Getenv("DATA_PATH"), // optional, memory-only when empty
		ModelPath:            getEnvOrDefault("MODEL_PATH", "models/attendance_risk_model.pkl"),
		ManifestPath:         getEnvOrDefault("MANIFEST_PATH", "models/attendance_risk_model.json"),
		PredictTimeout:       getDurationOrDefault("PREDICT_TIMEOUT", 10*time.Second),
		AllowFallback:        getBoolOrDefault("ALLOW_HEURISTIC_FALLBACK", false),
		TotalSessionsPlanned: getIntOrDefault("TOTAL_SESSIONS_PLANNED", 80),
		Workers:              getIntOrDefault("ANALYSIS_WORKERS", runtime.NumCPU()),
		FaceServiceURL:       os.Getenv("FACE_SERVICE_URL"), // optional
		StreamURL:            os.Getenv("FACE_STREAM_URL"),  // optional
		Ping:                 getDurationOrDefault("PING_INTERVAL", 15*time.Second),
		RESTTimeout:          getDurationOrDefault("REST_TIMEOUT", 5*time.Second),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.HTTPPort < 1024 || settings.HTTPPort > 65535 {
		return fmt.Errorf("HTTP port must be between 1024 and 65535, got %d", settings.HTTPPort)
	}
	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.HTTPPort == settings.MetricsPort {
		return fmt.Errorf("HTTP and metrics ports must differ, both are %d", settings.HTTPPort)
	}

	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.ManifestPath == "" {
		return fmt.Errorf("manifest path cannot be empty")
	}

	if settings.PredictTimeout < time.Second || settings.PredictTimeout > time.Minute {
		return fmt.Errorf("predict timeout must be between 1s and 1m, got %v", settings.PredictTimeout)
	}
	if settings.Ping < time.Second || settings.Ping > 5*time.Minute {
		return fmt.Errorf("ping interval must be between 1s and 5m, got %v", settings.Ping)
	}
	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}

	if settings.TotalSessionsPlanned <= 0 || settings.TotalSessionsPlanned > 1000 {
		return fmt.Errorf("total planned sessions must be between 1 and 1000, got %d", settings.TotalSessionsPlanned)
	}
	if settings.Workers <= 0 || settings.Workers > 256 {
		return fmt.Errorf("analysis workers must be between 1 and 256, got %d", settings.Workers)
	}

	return nil
}
