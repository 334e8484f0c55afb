// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds kestrel configuration settings
type Config struct {
	Backend string `yaml:"backend" description:"Window backend (headless, term)" default:"headless"`
	Title   string `yaml:"title" description:"Window title, also the save-data namespace" default:"kestrel"`
	Width   int    `yaml:"width" description:"Frame buffer width in pixels" default:"320"`
	Height  int    `yaml:"height" description:"Frame buffer height in pixels" default:"240"`
	FPS     int    `yaml:"fps" description:"Target frames per second" default:"60"`

	// MaxTicks bounds a run; 0 means run until the window closes.
	MaxTicks      uint64 `yaml:"max_ticks" description:"Stop after this many ticks (0 = unbounded)" default:"0"`
	FrameBudgetMS int    `yaml:"frame_budget_ms" description:"Interrupt a single script call after this many milliseconds (0 = no budget)" default:"2000"`

	Assets string `yaml:"assets" description:"Asset root: directory or .zip archive (relative to data dir)" default:"assets"`
	SaveDB string `yaml:"save_db" description:"SQLite save-data file (relative to data dir, empty = in-memory)" default:"save.db"`

	// Headless frame dumps
	DumpDir   string `yaml:"dump_dir" description:"Write presented frames as PNG into this directory (headless only)"`
	DumpEvery int    `yaml:"dump_every" description:"Dump every Nth presented frame" default:"60"`

	Watch bool `yaml:"watch" description:"Reload the script when the file changes" default:"false"`
}

// DefaultConfig returns the default configuration for runtime use.
func DefaultConfig() Config {
	return Config{
		Backend:       "headless",
		Title:         "kestrel",
		Width:         320,
		Height:        240,
		FPS:           60,
		FrameBudgetMS: 2000,
		Assets:        "assets",
		SaveDB:        "save.db",
		DumpEvery:     60,
	}
}

// DefaultDataDir is the default data directory for kestrel
const DefaultDataDir = "~/.kestrel"

// GetDataDir returns the data directory.
// Resolution order: -d flag > KESTREL_DATA env var > ~/.kestrel
func GetDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv("KESTREL_DATA"); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "" // Can't determine default
	}
	return filepath.Join(home, ".kestrel")
}

// GetConfigPath returns the path to the config file in the data directory.
// Returns empty string if dataDir is empty.
func GetConfigPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig loads configuration from config.yaml in the data directory.
// If dataDir is empty or the file doesn't exist, returns default config.
// Relative asset, save and dump paths are resolved against the data directory.
func LoadConfig(dataDir string) (Config, error) {
	config, err := LoadConfigFromPath(GetConfigPath(dataDir))
	if err != nil {
		return config, err
	}

	if dataDir != "" {
		config.Assets = ResolvePath(config.Assets, dataDir)
		config.SaveDB = ResolvePath(config.SaveDB, dataDir)
		config.DumpDir = ResolvePath(config.DumpDir, dataDir)
	}

	return config, nil
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty or the file doesn't exist, returns default config.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay config file values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks value ranges and fills zero values with defaults.
func (c *Config) Validate() error {
	validBackends := map[string]bool{
		"headless": true,
		"term":     true,
	}
	if !validBackends[c.Backend] {
		return fmt.Errorf("invalid backend '%s' in config (must be headless or term)", c.Backend)
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("width and height must not be negative (got %dx%d)", c.Width, c.Height)
	}
	if c.FPS < 0 || c.FPS > 1000 {
		return fmt.Errorf("fps must be between 1 and 1000 (got %d)", c.FPS)
	}
	if c.FrameBudgetMS < 0 {
		return fmt.Errorf("frame_budget_ms must not be negative (got %d)", c.FrameBudgetMS)
	}
	if c.DumpEvery < 0 {
		return fmt.Errorf("dump_every must not be negative (got %d)", c.DumpEvery)
	}

	defaults := DefaultConfig()
	if c.Width == 0 {
		c.Width = defaults.Width
	}
	if c.Height == 0 {
		c.Height = defaults.Height
	}
	if c.FPS == 0 {
		c.FPS = defaults.FPS
	}
	if c.DumpEvery == 0 {
		c.DumpEvery = defaults.DumpEvery
	}
	if strings.TrimSpace(c.Title) == "" {
		c.Title = defaults.Title
	}
	return nil
}

// ResolvePath expands ~ and resolves relative paths against baseDir.
// Empty paths stay empty.
func ResolvePath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// DisplayConfig prints the effective configuration
func DisplayConfig(dataDir string, config Config) {
	fmt.Println("Current Configuration:")
	fmt.Println("=====================")
	fmt.Printf("Data dir:    %s\n", dataDir)
	fmt.Printf("Config file: %s\n", GetConfigPath(dataDir))
	fmt.Printf("Backend:     %s (%dx%d @ %d fps)\n", config.Backend, config.Width, config.Height, config.FPS)
	fmt.Printf("Title:       %s\n", config.Title)
	fmt.Printf("Assets:      %s\n", config.Assets)
	if config.SaveDB != "" {
		fmt.Printf("Save data:   %s\n", config.SaveDB)
	} else {
		fmt.Printf("Save data:   in-memory\n")
	}
	if config.MaxTicks > 0 {
		fmt.Printf("Max ticks:   %d\n", config.MaxTicks)
	}
	fmt.Printf("Watch:       %v\n", config.Watch)
	fmt.Println()
}
