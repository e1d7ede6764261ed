package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDCapture string
	MQTTClientIDAnalyze string
	MQTTClientIDWeb     string

	// Topics
	TopicRaw     string
	TopicSamples string
	TopicResults string

	// Capture serial input
	SerialPort     string
	SerialBaudRate int

	// Step detector
	NoiseThreshold    float64 // raw counts; |diff| above this marks a plateau transition
	MinPlateauSamples int     // plateaus shorter than this are discarded as noise
	// CommandedDistances is the ordered list of rig positions (mm) a capture
	// sweep moves through; plateaus are assigned to it in order.
	CommandedDistances []float64

	// Analysis
	EvalRangeMin float64 // mm
	EvalRangeMax float64 // mm
	MaxDistance  float64 // mm; ingested samples beyond this are dropped
	ScenarioFile string  // optional YAML scenario override

	// Output
	ReportDir string
	ChartDir  string

	// Web server
	WebServerPort int
}

// Default returns the configuration used when no file overrides a key.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDCapture: "rangecal-capture",
		MQTTClientIDAnalyze: "rangecal-analyze",
		MQTTClientIDWeb:     "rangecal-web",

		TopicRaw:     "rangecal/raw",
		TopicSamples: "rangecal/samples",
		TopicResults: "rangecal/results",

		SerialPort:     "/dev/ttyUSB0",
		SerialBaudRate: 115200,

		NoiseThreshold:    50,
		MinPlateauSamples: 5,

		EvalRangeMin: 1.5,
		EvalRangeMax: 3.0,
		MaxDistance:  4.0,

		ReportDir: ".",
		ChartDir:  ".",

		WebServerPort: 8080,
	}
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct. Keys not
// present in the file keep their defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CAPTURE":
		c.MQTTClientIDCapture = value
	case "MQTT_CLIENT_ID_ANALYZE":
		c.MQTTClientIDAnalyze = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_RAW":
		c.TopicRaw = value
	case "TOPIC_SAMPLES":
		c.TopicSamples = value
	case "TOPIC_RESULTS":
		c.TopicResults = value

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// Step detector
	case "NOISE_THRESHOLD":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid NOISE_THRESHOLD %q: %w", value, err)
		}
		c.NoiseThreshold = v
	case "MIN_PLATEAU_SAMPLES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MIN_PLATEAU_SAMPLES %q: %w", value, err)
		}
		c.MinPlateauSamples = n
	case "COMMANDED_DISTANCES":
		dists, err := parseFloatList(value)
		if err != nil {
			return fmt.Errorf("invalid COMMANDED_DISTANCES %q: %w", value, err)
		}
		c.CommandedDistances = dists

	// Analysis
	case "EVAL_RANGE_MIN":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid EVAL_RANGE_MIN %q: %w", value, err)
		}
		c.EvalRangeMin = v
	case "EVAL_RANGE_MAX":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid EVAL_RANGE_MAX %q: %w", value, err)
		}
		c.EvalRangeMax = v
	case "MAX_DISTANCE":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_DISTANCE %q: %w", value, err)
		}
		c.MaxDistance = v
	case "SCENARIO_FILE":
		c.ScenarioFile = value

	// Output
	case "REPORT_DIR":
		c.ReportDir = value
	case "CHART_DIR":
		c.ChartDir = value

	// Web server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// parseFloatList parses a comma-separated list of floats.
func parseFloatList(value string) ([]float64, error) {
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// validate checks that the resulting configuration is usable.
func (c *Config) validate() error {
	if c.NoiseThreshold <= 0 {
		return fmt.Errorf("NOISE_THRESHOLD must be positive, got %g", c.NoiseThreshold)
	}
	if c.MinPlateauSamples < 1 {
		return fmt.Errorf("MIN_PLATEAU_SAMPLES must be at least 1, got %d", c.MinPlateauSamples)
	}
	if c.EvalRangeMin >= c.EvalRangeMax {
		return fmt.Errorf("EVAL_RANGE_MIN (%g) must be below EVAL_RANGE_MAX (%g)", c.EvalRangeMin, c.EvalRangeMax)
	}
	if c.MaxDistance <= 0 {
		return fmt.Errorf("MAX_DISTANCE must be positive, got %g", c.MaxDistance)
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	for i := 1; i < len(c.CommandedDistances); i++ {
		if c.CommandedDistances[i] <= c.CommandedDistances[i-1] {
			return fmt.Errorf("COMMANDED_DISTANCES must be strictly increasing, got %v", c.CommandedDistances)
		}
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// InitGlobalDefaults initializes the global configuration with defaults,
// for runs without a config file.
func InitGlobalDefaults() {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig = Default()
	})
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
