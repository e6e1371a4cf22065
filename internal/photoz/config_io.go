package photoz

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadTrainConfig reads a training configuration from a JSON file.
// Fields omitted from the file keep their defaults, so partial configs
// are safe.
func LoadTrainConfig(path string) (TrainConfig, error) {
	cfg := DefaultTrainConfig()
	if err := loadJSON(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadEstimateConfig reads an inference configuration from a JSON
// file, with the same partial-config behavior as LoadTrainConfig.
func LoadEstimateConfig(path string) (EstimateConfig, error) {
	cfg := DefaultEstimateConfig()
	if err := loadJSON(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func loadJSON(path string, v any) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("read config %s: %w", cleanPath, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse config %s: %w", cleanPath, err)
	}
	return nil
}
