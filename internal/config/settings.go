package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Settings is the CLI's on-disk configuration: backend transport, LLM
// model choice, and stability analysis window/resolution. It is distinct
// from KnowledgeBase, which is loaded at runtime from the metrics
// backend's "qos/config" resource rather than from a local file.
type Settings struct {
	BackendCommand     string        `yaml:"backend_command"`
	BackendURL         string        `yaml:"backend_url"`
	LLMModel           string        `yaml:"llm_model"`
	StabilityWindow    time.Duration `yaml:"stability_window"`
	StabilityResolution time.Duration `yaml:"stability_resolution"`
}

// DefaultSettings leaves the transport command unset (the operator must
// supply one) and defaults to a 24h/5m stability window.
func DefaultSettings() Settings {
	return Settings{
		LLMModel:            "llama-3.3-70b-versatile",
		StabilityWindow:     24 * time.Hour,
		StabilityResolution: 5 * time.Minute,
	}
}

// LoadSettings reads a YAML settings file at path and merges it over
// DefaultSettings, the same built-in-defaults-plus-override shape
// pkg/config/loader.go uses for tarsy.yaml. A missing file is not an
// error: the defaults apply as-is.
func LoadSettings(path string) (Settings, error) {
	out := DefaultSettings()

	body, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	var override Settings
	if err := yaml.Unmarshal(body, &override); err != nil {
		return out, fmt.Errorf("parsing settings file %s: %w", path, err)
	}

	if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
		return out, fmt.Errorf("merging settings file %s: %w", path, err)
	}
	return out, nil
}
