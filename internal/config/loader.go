// Package config provides configuration loading, defaults, and validation for
// DexAtlas.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "DEXATLAS"

// newViper builds a Viper instance with YAML file type, DEXATLAS_ env prefix
// and a "." -> "_" key replacer, so "pipeline.allow_unresolved" resolves to
// DEXATLAS_PIPELINE_ALLOW_UNRESOLVED.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

// registerDefaults declares every key to viper.  Unmarshal only consults
// environment variables for keys viper already knows about.
func registerDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	defaults := map[string]interface{}{
		"input.table_path":          d.Input.TablePath,
		"input.rob_path":            d.Input.RobPath,
		"input.rules_path":          d.Input.RulesPath,
		"input.pdf_dir":             d.Input.PDFDir,
		"input.adjudications_path":  d.Input.AdjudicationsPath,
		"input.events_path":         "",
		"input.linkage_policy_path": d.Input.LinkagePolicyPath,
		"input.references_path":     "",

		"output.interim_dir":     d.Output.InterimDir,
		"output.processed_dir":   d.Output.ProcessedDir,
		"output.docs_data_dir":   d.Output.DocsDataDir,
		"output.parquet_enabled": true,

		"pipeline.allow_unresolved":          false,
		"pipeline.retain_unclear_comparator": false,
		"pipeline.workers":                   d.Pipeline.Workers,
		"pipeline.fulltext_pages":            d.Pipeline.FulltextPages,
		"pipeline.rob_overall_column":        d.Pipeline.RobOverallColumn,
		"pipeline.rob_fallback_column":       d.Pipeline.RobFallbackColumn,
		"pipeline.watch_debounce":            d.Pipeline.WatchDebounce,

		"validation.bolus_min":    d.Validation.BolusMin,
		"validation.bolus_max":    d.Validation.BolusMax,
		"validation.infusion_min": d.Validation.InfusionMin,
		"validation.infusion_max": d.Validation.InfusionMax,

		"bundle.shrinkage_csv": "",
		"bundle.crude_csv":     "",
		"bundle.overall_csv":   "",
		"bundle.x_min_or":      d.Bundle.XMinOR,
		"bundle.x_max_or":      d.Bundle.XMaxOR,
		"bundle.grid_points":   d.Bundle.GridPoints,

		"log.level":        d.Log.Level,
		"log.format":       d.Log.Format,
		"log.output_paths": d.Log.OutputPaths,

		"metrics.enabled":       false,
		"metrics.namespace":     d.Metrics.Namespace,
		"metrics.textfile_path": "",

		"minio.enabled":    false,
		"minio.endpoint":   "",
		"minio.access_key": "",
		"minio.secret_key": "",
		"minio.use_ssl":    false,
		"minio.region":     d.MinIO.Region,
		"minio.bucket":     d.MinIO.Bucket,
		"minio.prefix":     "",

		"kafka.enabled":       false,
		"kafka.brokers":       []string{},
		"kafka.topic":         d.Kafka.Topic,
		"kafka.required_acks": d.Kafka.RequiredAcks,
		"kafka.compression":   d.Kafka.Compression,
		"kafka.write_timeout": d.Kafka.WriteTimeout,
		"kafka.create_topic":  false,

		"database.host":            d.Database.Host,
		"database.port":            d.Database.Port,
		"database.user":            d.Database.User,
		"database.password":        "",
		"database.db_name":         d.Database.DBName,
		"database.ssl_mode":        d.Database.SSLMode,
		"database.max_conns":       d.Database.MaxConns,
		"database.min_conns":       0,
		"database.connect_timeout": d.Database.ConnectTimeout,

		"server.port":             d.Server.Port,
		"server.mode":             d.Server.Mode,
		"server.read_timeout":     d.Server.ReadTimeout,
		"server.write_timeout":    d.Server.WriteTimeout,
		"server.shutdown_timeout": d.Server.ShutdownTimeout,
		"server.cors_origins":     []string{},
	}
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
}

// Load reads the YAML file at configPath, merges DEXATLAS_* environment
// overrides, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from defaults and DEXATLAS_* variables only.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch re-parses configPath whenever it changes on disk and hands the result
// to onChange.  Parse or validation failures go to onError (when non-nil) and
// the previous configuration stays in effect.  Watch does not block.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

//Personal.AI order the ending
