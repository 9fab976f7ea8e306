// Package config carries the build configuration, optionally persisted as a
// YAML file next to the working directory.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full set of build parameters.
type Config struct {
	pathname string

	KmerSize      int     `yaml:"k"`
	Omega         float64 `yaml:"omega"`
	Filter        string  `yaml:"filter"`
	Mu            float64 `yaml:"mu"`
	Algorithm     string  `yaml:"algorithm"`
	GhostStrategy string  `yaml:"ghost-strategy"`
	NumBatches    int     `yaml:"num-batches"`
	Threads       int     `yaml:"threads"`
	OnDisk        bool    `yaml:"on-disk"`
	WithPositions bool    `yaml:"with-positions"`
	UseUnrooted   bool    `yaml:"use-unrooted"`
	// ReductionRatio is the gap ratio at or above which alignment columns
	// are dropped before reconstruction.
	ReductionRatio float64 `yaml:"reduction-ratio"`
}

// Default returns the configuration a build starts from.
func Default() *Config {
	return &Config{
		KmerSize:       10,
		Omega:          1.5,
		Filter:         "mif0",
		Mu:             1.0,
		Algorithm:      "DCLA",
		GhostStrategy:  "both",
		NumBatches:     32,
		Threads:        1,
		ReductionRatio: 0.99,
	}
}

// LoadOrCreate reads a config file, creating it with defaults when absent.
func LoadOrCreate(configFile string) (*Config, error) {
	f, err := os.Open(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.pathname = configFile
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.pathname = configFile
	return cfg, nil
}

func (c *Config) Render(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(c)
}

// Save writes the configuration atomically.
func (c *Config) Save() error {
	dir := filepath.Dir(c.pathname)
	tmpFile, err := os.CreateTemp(dir, "config.*.yaml")
	if err != nil {
		return err
	}

	err = c.Render(tmpFile)
	tmpFile.Close()
	if err != nil {
		os.Remove(tmpFile.Name())
		return err
	}
	return os.Rename(tmpFile.Name(), c.pathname)
}

// Validate rejects parameter combinations the build cannot honor.
func (c *Config) Validate() error {
	if c.KmerSize <= 0 {
		return fmt.Errorf("k must be positive, got %d", c.KmerSize)
	}
	if c.Omega <= 0 {
		return fmt.Errorf("omega must be positive, got %g", c.Omega)
	}
	if c.Mu <= 0 || c.Mu > 1 {
		return fmt.Errorf("mu must be in (0, 1], got %g", c.Mu)
	}
	if c.NumBatches <= 0 {
		return fmt.Errorf("num-batches must be positive, got %d", c.NumBatches)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", c.Threads)
	}
	if c.ReductionRatio <= 0 || c.ReductionRatio > 1 {
		return fmt.Errorf("reduction-ratio must be in (0, 1], got %g", c.ReductionRatio)
	}
	return nil
}
