// Package config handles the nvmfile.toml host configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"rgehrsitz/nvm/internal/image"
	"rgehrsitz/nvm/internal/storage"
)

// DefaultCapacity matches the program memory of the reference board.
const DefaultCapacity = 8192

// Config is the host-side configuration of the loader.
type Config struct {
	Memory Memory `toml:"memory"`
	VM     VM     `toml:"vm"`
	Log    Log    `toml:"log"`
}

// Memory selects and sizes the program memory backend.
type Memory struct {
	Kind     string `toml:"kind"`     // "eeprom" or "flash"
	Capacity int    `toml:"capacity"` // bytes
	File     string `toml:"file"`     // eeprom backing file, empty for RAM
}

// VM describes the running VM.
type VM struct {
	Features []string `toml:"features"`
}

// Log configures zerolog.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Memory.Kind == "" {
		c.Memory.Kind = string(storage.KindEEPROM)
	}
	if c.Memory.Capacity == 0 {
		c.Memory.Capacity = DefaultCapacity
	}
	if c.VM.Features == nil {
		c.VM.Features = []string{"lookupswitch", "tableswitch", "32bit", "float", "array", "inheritance", "extstdlib"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Features returns the VM's supported feature mask.
func (c *Config) Features() (image.Feature, error) {
	var f image.Feature
	for _, name := range c.VM.Features {
		bit, err := image.ParseFeature(name)
		if err != nil {
			return 0, err
		}
		f |= bit
	}
	return f, nil
}

// LogLevel returns the configured zerolog level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	return zerolog.ParseLevel(c.Log.Level)
}

// OpenBackend constructs the configured program memory.
func (c *Config) OpenBackend() (storage.Backend, error) {
	switch storage.Kind(c.Memory.Kind) {
	case storage.KindFlash:
		if c.Memory.File != "" {
			return nil, fmt.Errorf("memory.file is only supported for eeprom")
		}
		return storage.NewFlash(c.Memory.Capacity)
	case storage.KindEEPROM:
		if c.Memory.File != "" {
			return storage.OpenEEPROM(c.Memory.File, c.Memory.Capacity)
		}
		return storage.NewEEPROM(c.Memory.Capacity)
	default:
		return nil, fmt.Errorf("unknown memory kind %q", c.Memory.Kind)
	}
}
