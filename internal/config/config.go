// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package config loads Zombify configuration from built-in defaults, an
// optional YAML file, command-line flags, and the environment, in that
// order of increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/zombify/zombify/internal/xdg"
)

// Error codes for configuration.
const (
	CodeLoadFailed = "CONFIG_LOAD_FAILED"
	CodeInvalid    = "CONFIG_INVALID"
)

// Engine kinds.
const (
	EnginePermit = "permit"
	EngineMemory = "memory"
)

// Config is the process configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Engine   EngineConfig   `koanf:"engine"`
	Cache    CacheConfig    `koanf:"cache"`
	Story    StoryConfig    `koanf:"story"`
	Admin    AdminConfig    `koanf:"admin"`
	Log      LogConfig      `koanf:"log"`
}

// DatabaseConfig locates PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// EngineConfig selects and configures the policy engine.
type EngineConfig struct {
	Kind          string        `koanf:"kind" validate:"oneof=permit memory"`
	APIURL        string        `koanf:"api_url" validate:"omitempty,url"`
	PDPURL        string        `koanf:"pdp_url" validate:"omitempty,url"`
	APIKey        string        `koanf:"api_key"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	DefaultTenant string        `koanf:"default_tenant" validate:"required"`
}

// CacheConfig enables the Redis decision cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string        `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	TTL       time.Duration `koanf:"ttl" validate:"gt=0"`
}

// StoryConfig configures story state handling.
type StoryConfig struct {
	SchemaConstraint string `koanf:"schema_constraint"`
}

// AdminConfig names the grant that guards administrative tools.
type AdminConfig struct {
	Action   string `koanf:"action" validate:"required"`
	Resource string `koanf:"resource" validate:"required"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" validate:"oneof=json text"`
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
}

// defaults are loaded before any other layer.
var defaults = map[string]any{
	"engine.kind":           EnginePermit,
	"engine.api_url":        "https://api.permit.io",
	"engine.pdp_url":        "https://cloudpdp.api.permit.io",
	"engine.timeout":        "10s",
	"engine.default_tenant": "default",
	"cache.ttl":             "30s",
	"admin.action":          "manage",
	"admin.resource":        "story_state",
	"log.format":            "json",
	"log.level":             "info",
}

// envOverlay is read with the ZOMBIFY_ prefix. Each variable also has an
// unprefixed alternative, so DATABASE_URL and PERMIT_API_KEY work as is.
type envOverlay struct {
	DatabaseURL   *string        `envconfig:"DATABASE_URL"`
	EngineKind    *string        `envconfig:"ENGINE_KIND"`
	PermitAPIURL  *string        `envconfig:"PERMIT_API_URL"`
	PermitPDPURL  *string        `envconfig:"PERMIT_PDP_URL"`
	PermitAPIKey  *string        `envconfig:"PERMIT_API_KEY"`
	EngineTimeout *time.Duration `envconfig:"ENGINE_TIMEOUT"`
	DefaultTenant *string        `envconfig:"DEFAULT_TENANT"`
	RedisAddr     *string        `envconfig:"REDIS_ADDR"`
	CacheTTL      *time.Duration `envconfig:"CACHE_TTL"`
	SchemaRange   *string        `envconfig:"STORY_SCHEMA_CONSTRAINT"`
	LogFormat     *string        `envconfig:"LOG_FORMAT"`
	LogLevel      *string        `envconfig:"LOG_LEVEL"`
}

func (e envOverlay) apply(c *Config) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Database.URL, e.DatabaseURL)
	set(&c.Engine.Kind, e.EngineKind)
	set(&c.Engine.APIURL, e.PermitAPIURL)
	set(&c.Engine.PDPURL, e.PermitPDPURL)
	set(&c.Engine.APIKey, e.PermitAPIKey)
	set(&c.Engine.DefaultTenant, e.DefaultTenant)
	set(&c.Cache.RedisAddr, e.RedisAddr)
	set(&c.Story.SchemaConstraint, e.SchemaRange)
	set(&c.Log.Format, e.LogFormat)
	set(&c.Log.Level, e.LogLevel)
	if e.EngineTimeout != nil {
		c.Engine.Timeout = *e.EngineTimeout
	}
	if e.CacheTTL != nil {
		c.Cache.TTL = *e.CacheTTL
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"database-url":   "database.url",
	"engine":         "engine.kind",
	"engine-api-url": "engine.api_url",
	"engine-pdp-url": "engine.pdp_url",
	"engine-timeout": "engine.timeout",
	"tenant":         "engine.default_tenant",
	"redis-addr":     "cache.redis_addr",
	"log-format":     "log.format",
	"log-level":      "log.level",
}

// RegisterFlags adds the configuration flags. Flag defaults are empty so an
// unset flag never overrides the file or built-in defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (default $XDG_CONFIG_HOME/zombify/config.yaml)")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("engine", "", "policy engine: permit or memory")
	flags.String("engine-api-url", "", "policy engine management API URL")
	flags.String("engine-pdp-url", "", "policy engine decision point URL")
	flags.Duration("engine-timeout", 0, "policy engine request timeout")
	flags.String("tenant", "", "default tenant for permission checks")
	flags.String("redis-addr", "", "Redis address for the decision cache (empty disables it)")
	flags.String("log-format", "", "log format: json or text")
	flags.String("log-level", "", "log level: debug, info, warn, error")
}

// Load builds the configuration. flags may be nil. A missing default config
// file is skipped; a missing file named by --config or ZOMBIFY_CONFIG is an
// error.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, oops.Code(CodeLoadFailed).With("key", key).Wrap(err)
		}
	}

	path, explicit, err := configPath(flags)
	if err != nil {
		return nil, err
	}
	if explicit || fileExists(path) {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeLoadFailed).With("path", path).Wrapf(err, "load config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeLoadFailed).Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(CodeLoadFailed).Wrapf(err, "decode config")
	}

	var env envOverlay
	if err := envconfig.Process("zombify", &env); err != nil {
		return nil, oops.Code(CodeLoadFailed).Wrapf(err, "read environment")
	}
	env.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func configPath(flags *pflag.FlagSet) (path string, explicit bool, err error) {
	if flags != nil {
		if p, _ := flags.GetString("config"); p != "" {
			return p, true, nil
		}
	}
	if p := os.Getenv("ZOMBIFY_CONFIG"); p != "" {
		return p, true, nil
	}
	p, err := xdg.ConfigFile()
	if err != nil {
		return "", false, oops.Code(CodeLoadFailed).Wrap(err)
	}
	return p, false, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return oops.Code(CodeInvalid).
				With("field", fe.Namespace()).
				With("rule", fe.Tag()).
				Errorf("invalid configuration: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return oops.Code(CodeInvalid).Wrap(err)
	}
	return nil
}
