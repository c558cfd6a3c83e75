// Package config describes which backend a facade opens and how.
//
// A YAML file looks like:
//
//	kind: networked-pool
//	persistent_id: app
//	server_list:
//	  - host: 10.0.0.1
//	    port: 11211
//	    weight: 2
//	  - host: 10.0.0.2
//	options:
//	  protocol: memcached
//	  timeout: 500ms
//
// Every top-level key can be overridden from the environment with the
// LEDGERCACHE_ prefix, e.g. LEDGERCACHE_KIND=memory.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Kind string

const (
	KindMemory        Kind = "memory"
	KindSharedMemory  Kind = "shared-memory"
	KindNetworkedPool Kind = "networked-pool"
)

const EnvPrefix = "LEDGERCACHE"

var ErrInvalidConfig = errors.New("invalid cache config")

type Server struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`   // 0 => protocol default
	Weight int    `mapstructure:"weight"` // 0 => 1
}

type Config struct {
	Kind         Kind           `mapstructure:"kind"`
	Servers      []Server       `mapstructure:"server_list"`
	PersistentID string         `mapstructure:"persistent_id"`
	Options      map[string]any `mapstructure:"options"` // backend-specific knobs
}

// Validate checks the parts every backend relies on. Backend-specific options
// are checked when the backend is opened.
func (c Config) Validate() error {
	switch c.Kind {
	case "":
		return fmt.Errorf("%w: kind is empty", ErrInvalidConfig)
	case KindMemory, KindSharedMemory:
	case KindNetworkedPool:
		if len(c.Servers) == 0 {
			return fmt.Errorf("%w: %s needs at least one server", ErrInvalidConfig, c.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, c.Kind)
	}
	for i, s := range c.Servers {
		if strings.TrimSpace(s.Host) == "" {
			return fmt.Errorf("%w: server %d: host is empty", ErrInvalidConfig, i)
		}
		if s.Port < 0 || s.Port > 65535 {
			return fmt.Errorf("%w: server %d: port %d out of range", ErrInvalidConfig, i, s.Port)
		}
		if s.Weight < 0 {
			return fmt.Errorf("%w: server %d: negative weight", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Option returns the string option name, lowercased, or def when unset.
func (c Config) Option(name, def string) string {
	v, ok := c.Options[name]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return strings.ToLower(s)
}

// Load reads path (any format viper understands) and applies LEDGERCACHE_*
// environment overrides. With an empty path it looks for ledgercache.yaml in
// . and ./config, and a missing file is not an error. The result is validated.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("kind", string(KindMemory))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("persistent_id")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ledgercache")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeOptions decodes backend options into out, a pointer to a struct with
// mapstructure tags. Durations may be strings ("500ms") and numbers may be
// strings; unknown keys are ignored.
func DecodeOptions(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("%w: options: %w", ErrInvalidConfig, err)
	}
	return nil
}
