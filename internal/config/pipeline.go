package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
)

// PipelineConfig tunes the inbound-item pipeline. Loaded once at startup from
// PIPELINE_CONFIG_PATH; missing file falls back to defaults.
type PipelineConfig struct {
	Matching struct {
		// AcceptThreshold is the minimum primary-match confidence required to
		// auto-link a client to a created task. Below it the match is stored
		// for manual review but the task keeps a null client.
		AcceptThreshold float64 `yaml:"accept_threshold"`
		// NameSimilarityCutoff is the minimum string similarity kept by the
		// name-matching stage.
		NameSimilarityCutoff float64 `yaml:"name_similarity_cutoff"`
	} `yaml:"matching"`

	Extraction struct {
		// EnabledSources lists the source types the AI extractor runs for.
		EnabledSources []string `yaml:"enabled_sources"`
		// AutoTaskCategories are rule-classified categories that must yield a
		// task even when extraction produced none.
		AutoTaskCategories []string `yaml:"auto_task_categories"`
	} `yaml:"extraction"`

	Batch struct {
		// MaxConcurrent bounds the errgroup fan-out over independent items.
		MaxConcurrent int `yaml:"max_concurrent"`
	} `yaml:"batch"`
}

func DefaultPipelineConfig() PipelineConfig {
	var cfg PipelineConfig
	cfg.Matching.AcceptThreshold = 0.6
	cfg.Matching.NameSimilarityCutoff = 0.6
	cfg.Extraction.EnabledSources = []string{"email", "phone_call", "web_form"}
	cfg.Extraction.AutoTaskCategories = []string{"urgent", "document", "complaint"}
	cfg.Batch.MaxConcurrent = 4
	return cfg
}

func LoadPipelineConfig(path string, log *logger.Logger) (PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if log != nil {
				log.Warn("Pipeline config file not found, using defaults", "path", path)
			}
			return cfg, nil
		}
		return cfg, fmt.Errorf("read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse pipeline config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *PipelineConfig) Validate() error {
	if c.Matching.AcceptThreshold < 0 || c.Matching.AcceptThreshold > 1 {
		return fmt.Errorf("matching.accept_threshold must be in [0,1], got %v", c.Matching.AcceptThreshold)
	}
	if c.Matching.NameSimilarityCutoff < 0 || c.Matching.NameSimilarityCutoff > 1 {
		return fmt.Errorf("matching.name_similarity_cutoff must be in [0,1], got %v", c.Matching.NameSimilarityCutoff)
	}
	if c.Batch.MaxConcurrent < 1 {
		return fmt.Errorf("batch.max_concurrent must be >= 1, got %d", c.Batch.MaxConcurrent)
	}
	return nil
}

func (c *PipelineConfig) ExtractionEnabledFor(sourceType string) bool {
	for _, s := range c.Extraction.EnabledSources {
		if strings.EqualFold(strings.TrimSpace(s), sourceType) {
			return true
		}
	}
	return false
}

func (c *PipelineConfig) RequiresTask(category string) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return false
	}
	for _, cat := range c.Extraction.AutoTaskCategories {
		if strings.ToLower(strings.TrimSpace(cat)) == category {
			return true
		}
	}
	return false
}
