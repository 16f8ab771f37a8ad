package main

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "CRS_"

type config struct {
	From      string `koanf:"from"`
	To        string `koanf:"to"`
	Output    string `koanf:"output"`
	CacheSize int    `koanf:"cache_size"`
	Verbose   bool   `koanf:"verbose"`
}

// loadConfig loads the configuration. Later sources override earlier ones:
// defaults, the YAML file cfgFile, CRS_ environment variables, and flags that
// were set explicitly.
func loadConfig(cfgFile string, flags *pflag.FlagSet) (*config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"to":         "EPSG:4326",
		"output":     "table",
		"cache_size": 32,
		"verbose":    false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}

	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%s: %w", cfgFile, err)
		}
	}

	// CRS_CACHE_SIZE -> cache_size.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("flags: %w", err)
		}
	}

	var cfg config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *config) validate() error {
	switch c.Output {
	case "table", "csv", "markdown":
	default:
		return fmt.Errorf("%s: unknown output format", c.Output)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	}
	return nil
}
