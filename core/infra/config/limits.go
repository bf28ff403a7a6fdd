package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Limits bounds tool inputs and artifact lifetimes.
type Limits struct {
	MaxTTLHours   int `yaml:"max_ttl_hours"`
	MaxSections   int `yaml:"max_sections"`
	MaxTableRows  int `yaml:"max_table_rows"`
	MaxTableCols  int `yaml:"max_table_cols"`
	MaxHeadingLvl int `yaml:"max_heading_level"`
}

// DefaultLimits returns the built-in bounds used when no limits file exists.
func DefaultLimits() Limits {
	return Limits{
		MaxTTLHours:   7 * 24,
		MaxSections:   100,
		MaxTableRows:  500,
		MaxTableCols:  64,
		MaxHeadingLvl: 9,
	}
}

// ParseLimits parses limits data from YAML bytes.
func ParseLimits(data []byte) (Limits, error) {
	limits := DefaultLimits()
	if len(data) == 0 {
		return limits, nil
	}
	if err := validateConfigSchema("limits", limitsSchemaFile, data); err != nil {
		return limits, err
	}
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return limits, fmt.Errorf("parse limits config: %w", err)
	}
	if limits.MaxTTLHours <= 0 {
		return limits, fmt.Errorf("limits: max_ttl_hours must be positive")
	}
	return limits, nil
}

// LoadLimits reads a YAML limits file. A missing file yields the defaults.
func LoadLimits(path string) (Limits, error) {
	if path == "" {
		return DefaultLimits(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultLimits(), nil
		}
		return DefaultLimits(), fmt.Errorf("read limits config: %w", err)
	}
	return ParseLimits(data)
}
