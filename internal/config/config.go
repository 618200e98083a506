// Package config loads runtime settings for the export binary from the
// environment (and an optional .env/config file) using viper.
package config

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"imisexport/internal/apperr"
)

// Publish strategies.
const (
	StrategySwap    = "swap"
	StrategyReplace = "replace"
)

// Source dialects.
const (
	DialectPostgres  = "postgres"
	DialectSQLServer = "sqlserver"
)

const pageSizeEnvPrefix = "PAGE_SIZE_"

// Warehouse holds the analytics warehouse connection settings. The four
// SUPERSET_* credentials are required for any publishing command.
type Warehouse struct {
	Kind     string `mapstructure:"WAREHOUSE_KIND"`
	DSN      string `mapstructure:"WAREHOUSE_DSN"`
	User     string `mapstructure:"SUPERSET_USER"`
	Password string `mapstructure:"SUPERSET_PASSWORD"`
	Host     string `mapstructure:"SUPERSET_HOST"`
	Port     int    `mapstructure:"SUPERSET_PORT"`
	Database string `mapstructure:"SUPERSET_DATABASE"`
}

// Config is the full runtime configuration.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	SourceDSN     string `mapstructure:"SOURCE_DSN"`
	SourceDialect string `mapstructure:"SOURCE_DIALECT"`

	Warehouse Warehouse `mapstructure:",squash"`

	PublishStrategy string `mapstructure:"PUBLISH_STRATEGY"`
	LoadBatchSize   int    `mapstructure:"LOAD_BATCH_SIZE"`
	PageSize        int    `mapstructure:"PAGE_SIZE"`
	WorkDir         string `mapstructure:"WORK_DIR"`
	ExportDir       string `mapstructure:"EXPORT_DIR"`

	HTTPAddr     string `mapstructure:"HTTP_ADDR"`
	ScheduleCron string `mapstructure:"SCHEDULE_CRON"`
	LockFile     string `mapstructure:"LOCK_FILE"`

	MetricsBackend string `mapstructure:"METRICS_BACKEND"`
	PushgatewayURL string `mapstructure:"PUSHGATEWAY_URL"`
	DatadogAddr    string `mapstructure:"DATADOG_ADDR"`

	SequenceDSN string `mapstructure:"SEQUENCE_DSN"`

	// PageSizes holds per-dataset overrides read from PAGE_SIZE_<DATASET>,
	// keyed by dataset name (e.g. "claim-general").
	PageSizes map[string]int `mapstructure:"-"`
}

var keys = []string{
	"ENV", "LOG_LEVEL",
	"SOURCE_DSN", "SOURCE_DIALECT",
	"WAREHOUSE_KIND", "WAREHOUSE_DSN",
	"SUPERSET_USER", "SUPERSET_PASSWORD", "SUPERSET_HOST", "SUPERSET_PORT", "SUPERSET_DATABASE",
	"PUBLISH_STRATEGY", "LOAD_BATCH_SIZE", "PAGE_SIZE", "WORK_DIR", "EXPORT_DIR",
	"HTTP_ADDR", "SCHEDULE_CRON", "LOCK_FILE",
	"METRICS_BACKEND", "PUSHGATEWAY_URL", "DATADOG_ADDR",
	"SEQUENCE_DSN",
}

// Load reads configuration from the environment. When file is non-empty it
// is read first (dotenv, yaml, json, toml); environment variables win.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SOURCE_DIALECT", DialectPostgres)
	v.SetDefault("WAREHOUSE_KIND", "postgres")
	v.SetDefault("SUPERSET_PORT", 5432)
	v.SetDefault("PUBLISH_STRATEGY", StrategySwap)
	v.SetDefault("LOAD_BATCH_SIZE", 5000)
	v.SetDefault("PAGE_SIZE", 1000)
	v.SetDefault("WORK_DIR", os.TempDir())
	v.SetDefault("EXPORT_DIR", "exports")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SCHEDULE_CRON", "0 2 * * *")
	v.SetDefault("LOCK_FILE", "imisexport.lock")
	v.SetDefault("METRICS_BACKEND", "none")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperr.Config("config.Load", "read %s: %v", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperr.Config("config.Load", "unmarshal: %v", err)
	}
	cfg.PageSizes = pageSizeOverrides(v, os.Environ())
	return cfg, nil
}

// pageSizeOverrides reads PAGE_SIZE_<DATASET> keys from the environment and
// from the config file. Values that are not integers read as 0 so Validate
// can report them.
func pageSizeOverrides(v *viper.Viper, environ []string) map[string]int {
	names := map[string]string{}
	add := func(key string) {
		upper := strings.ToUpper(key)
		if !strings.HasPrefix(upper, pageSizeEnvPrefix) {
			return
		}
		name := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(upper, pageSizeEnvPrefix), "_", "-"))
		if name != "" {
			names[name] = upper
		}
	}
	for _, kv := range environ {
		if k, _, ok := strings.Cut(kv, "="); ok {
			add(k)
		}
	}
	for _, k := range v.AllKeys() {
		add(k)
	}

	out := make(map[string]int, len(names))
	for name, key := range names {
		_ = v.BindEnv(key)
		out[name] = v.GetInt(key)
	}
	return out
}

// PageSizeFor returns the page size for the named dataset.
func (c *Config) PageSizeFor(dataset string) int {
	if n, ok := c.PageSizes[dataset]; ok && n > 0 {
		return n
	}
	return c.PageSize
}

// IsDev reports whether ENV=development.
func (c *Config) IsDev() bool { return c.Env == "development" }

// RequireWarehouse fails with a config error naming every missing SUPERSET_*
// credential. A DSN override does not lift the requirement.
func (c *Config) RequireWarehouse() error {
	missing := c.Warehouse.missing()
	if len(missing) == 0 {
		return nil
	}
	return apperr.Config("config", "missing required environment variables: %s", strings.Join(missing, ", "))
}

func (w Warehouse) missing() []string {
	var out []string
	for name, val := range map[string]string{
		"SUPERSET_USER":     w.User,
		"SUPERSET_PASSWORD": w.Password,
		"SUPERSET_HOST":     w.Host,
		"SUPERSET_DATABASE": w.Database,
	} {
		if strings.TrimSpace(val) == "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
