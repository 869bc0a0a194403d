// Package config holds the tunables of a kernel instance.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// MaxProcs is the capacity of the process table.
	MaxProcs int `yaml:"maxProcs"`

	// Frames is the number of physical pages in the frame pool.
	Frames int `yaml:"frames"`

	// MaxHeapPages caps both the heap of one process and its free page list.
	MaxHeapPages int `yaml:"maxHeapPages"`

	StackPages int `yaml:"stackPages"`

	// Quantum is the number of instructions a process runs before the timer
	// forces a yield. Zero leaves scheduling purely cooperative.
	Quantum int `yaml:"quantum"`

	LogLevel    string `yaml:"logLevel"`
	Trace       string `yaml:"trace"`
	LoaderCache int    `yaml:"loaderCache"`
}

func Default() *Config {
	return &Config{
		MaxProcs:     32,
		Frames:       1024,
		MaxHeapPages: 64,
		StackPages:   1,
		LogLevel:     "info",
		LoaderCache:  16,
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.MaxProcs <= 0:
		return errors.Wrapf(ErrInvalidConfig, "maxProcs must be positive, got %d", c.MaxProcs)
	case c.Frames <= 0:
		return errors.Wrapf(ErrInvalidConfig, "frames must be positive, got %d", c.Frames)
	case c.MaxHeapPages <= 0:
		return errors.Wrapf(ErrInvalidConfig, "maxHeapPages must be positive, got %d", c.MaxHeapPages)
	case c.StackPages <= 0:
		return errors.Wrapf(ErrInvalidConfig, "stackPages must be positive, got %d", c.StackPages)
	case c.Quantum < 0:
		return errors.Wrapf(ErrInvalidConfig, "quantum must not be negative, got %d", c.Quantum)
	case c.LoaderCache < 0:
		return errors.Wrapf(ErrInvalidConfig, "loaderCache must not be negative, got %d", c.LoaderCache)
	}

	return nil
}
