package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/inspector/internal/defects"
	"github.com/JaimeStill/inspector/pkg/formatting"
	"github.com/JaimeStill/inspector/pkg/pagination"
)

const (
	EnvDefectLabels    = "INSPECTOR_DEFECT_LABELS"
	EnvClassifyPrompt  = "INSPECTOR_CLASSIFY_PROMPT"
	EnvMaxImageSize    = "INSPECTOR_MAX_IMAGE_SIZE"
	EnvClassifyTimeout = "INSPECTOR_CLASSIFY_TIMEOUT"
	EnvHashWorkers     = "INSPECTOR_HASH_WORKERS"
)

var limitsEnv = &pagination.ConfigEnv{
	DefaultLimit: "INSPECTOR_RESULTS_DEFAULT_LIMIT",
	MaxLimit:     "INSPECTOR_RESULTS_MAX_LIMIT",
}

// InspectionConfig holds classification and result listing settings.
type InspectionConfig struct {
	Labels          []string            `toml:"labels"`
	Prompt          string              `toml:"prompt"`
	MaxImageSize    formatting.ByteSize `toml:"max_image_size"`
	ClassifyTimeout string              `toml:"classify_timeout"`
	HashWorkers     int                 `toml:"hash_workers"`
	Limits          pagination.Config   `toml:"limits"`
}

// ClassifyTimeoutDuration returns ClassifyTimeout as a time.Duration.
func (c *InspectionConfig) ClassifyTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ClassifyTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation
// for the inspection config and its nested limits.
func (c *InspectionConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Limits.Finalize(limitsEnv); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *InspectionConfig) Merge(overlay *InspectionConfig) {
	if len(overlay.Labels) > 0 {
		c.Labels = overlay.Labels
	}
	if overlay.Prompt != "" {
		c.Prompt = overlay.Prompt
	}
	if overlay.MaxImageSize != 0 {
		c.MaxImageSize = overlay.MaxImageSize
	}
	if overlay.ClassifyTimeout != "" {
		c.ClassifyTimeout = overlay.ClassifyTimeout
	}
	if overlay.HashWorkers != 0 {
		c.HashWorkers = overlay.HashWorkers
	}
	c.Limits.Merge(&overlay.Limits)
}

func (c *InspectionConfig) loadDefaults() {
	if len(c.Labels) == 0 {
		c.Labels = defects.DefaultLabels
	}
	if c.MaxImageSize == 0 {
		c.MaxImageSize = 20 * 1024 * 1024
	}
	if c.ClassifyTimeout == "" {
		c.ClassifyTimeout = "2m"
	}
	if c.HashWorkers == 0 {
		c.HashWorkers = 4
	}
}

func (c *InspectionConfig) loadEnv() error {
	if v := os.Getenv(EnvDefectLabels); v != "" {
		c.Labels = defects.ParseLabels(v)
	}
	if v := os.Getenv(EnvClassifyPrompt); v != "" {
		c.Prompt = v
	}
	if v := os.Getenv(EnvMaxImageSize); v != "" {
		n, err := formatting.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxImageSize, err)
		}
		c.MaxImageSize = formatting.ByteSize(n)
	}
	if v := os.Getenv(EnvClassifyTimeout); v != "" {
		c.ClassifyTimeout = v
	}
	if v := os.Getenv(EnvHashWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HashWorkers = n
		}
	}
	return nil
}

func (c *InspectionConfig) validate() error {
	labels := defects.NewLabelSet(c.Labels).Labels()
	if len(labels) == 0 {
		return fmt.Errorf("labels required")
	}
	c.Labels = labels

	if c.MaxImageSize < 0 {
		return fmt.Errorf("max_image_size must not be negative")
	}
	if _, err := time.ParseDuration(c.ClassifyTimeout); err != nil {
		return fmt.Errorf("invalid classify_timeout: %w", err)
	}
	if c.HashWorkers < 1 {
		return fmt.Errorf("hash_workers must be positive")
	}
	c.Prompt = strings.TrimSpace(c.Prompt)
	return nil
}
