package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/vango-dev/eventwire/internal/errors"
)

// sections are the nested config tables. Environment keys starting with a
// section name and an underscore address that table.
var sections = []string{"server", "http", "log", "metrics", "tracing", "aws"}

// flagKeys maps CLI flags whose names differ from their config keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"host":       "server.host",
	"port":       "server.port",
	"timeout":    "http.timeout",
	"metrics":    "metrics.enabled",
	"tracing":    "tracing.enabled",
	"region":     "aws.region",
}

// skipFlags are flags that never map to config keys.
var skipFlags = map[string]bool{
	"config": true,
	"help":   true,
}

// Load reads configuration from defaults, the config file, the environment
// and flags. Precedence (highest to lowest): flags > env vars > config file
// > defaults.
//
// cfgFile may be empty, in which case eventwire.yaml in the working
// directory is used when present. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.New("E320").WithDetail("defaults").Wrap(err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, errors.New("E320").WithDetail(used).Wrap(err)
		}
	}

	// 3. Environment (EVENTWIRE_SERVER_PORT -> server.port)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.New("E320").WithDetail("environment").Wrap(err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || skipFlags[f.Name] {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.New("E320").WithDetail("flags").Wrap(err)
		}
	}

	cfg := New()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.New("E320").Wrap(err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the explicit path, else ConfigFileName when it
// exists, else "".
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	return ""
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, sec := range sections {
		if rest, ok := strings.CutPrefix(key, sec+"_"); ok {
			return sec + "." + rest
		}
	}
	return key
}

func flagKey(name string) string {
	if k, ok := flagKeys[name]; ok {
		return k
	}
	return strings.ReplaceAll(name, "-", "_")
}
