// Package config defines all configuration structures for DexAtlas.  No I/O or
// parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// InputConfig locates the raw inputs of a curation run.  Optional inputs are
// skipped when the path is empty or the file does not exist.
type InputConfig struct {
	TablePath         string `mapstructure:"table_path"`
	RobPath           string `mapstructure:"rob_path"`
	RulesPath         string `mapstructure:"rules_path"`
	PDFDir            string `mapstructure:"pdf_dir"`
	AdjudicationsPath string `mapstructure:"adjudications_path"`
	EventsPath        string `mapstructure:"events_path"`
	LinkagePolicyPath string `mapstructure:"linkage_policy_path"`
	ReferencesPath    string `mapstructure:"references_path"`
}

// OutputConfig locates generated artifacts.
type OutputConfig struct {
	InterimDir     string `mapstructure:"interim_dir"`
	ProcessedDir   string `mapstructure:"processed_dir"`
	DocsDataDir    string `mapstructure:"docs_data_dir"`
	ParquetEnabled bool   `mapstructure:"parquet_enabled"`
}

// PipelineConfig holds curation policy switches.
type PipelineConfig struct {
	AllowUnresolved         bool          `mapstructure:"allow_unresolved"`
	RetainUnclearComparator bool          `mapstructure:"retain_unclear_comparator"`
	Workers                 int           `mapstructure:"workers"`
	FulltextPages           int           `mapstructure:"fulltext_pages"`
	RobOverallColumn        int           `mapstructure:"rob_overall_column"`  // 1-based
	RobFallbackColumn       int           `mapstructure:"rob_fallback_column"` // 1-based
	WatchDebounce           time.Duration `mapstructure:"watch_debounce"`
}

// ValidationConfig holds the plausibility bands of the QA gate.
type ValidationConfig struct {
	BolusMin    float64 `mapstructure:"bolus_min"`
	BolusMax    float64 `mapstructure:"bolus_max"`
	InfusionMin float64 `mapstructure:"infusion_min"`
	InfusionMax float64 `mapstructure:"infusion_max"`
}

// BundleConfig locates the model summaries joined into the forest-plot
// bundle.  The stage is skipped while ShrinkageCSV is empty.
type BundleConfig struct {
	ShrinkageCSV string  `mapstructure:"shrinkage_csv"`
	CrudeCSV     string  `mapstructure:"crude_csv"`
	OverallCSV   string  `mapstructure:"overall_csv"`
	XMinOR       float64 `mapstructure:"x_min_or"`
	XMaxOR       float64 `mapstructure:"x_max_or"`
	GridPoints   int     `mapstructure:"grid_points"`
}

// Enabled reports whether the bundle stage has inputs to read.
func (b BundleConfig) Enabled() bool { return b.ShrinkageCSV != "" }

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Namespace    string `mapstructure:"namespace"`
	TextfilePath string `mapstructure:"textfile_path"`
}

// MinIOConfig holds object-store publish settings.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// KafkaConfig holds release-event settings.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	RequiredAcks int           `mapstructure:"required_acks"`
	Compression  string        `mapstructure:"compression"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CreateTopic  bool          `mapstructure:"create_topic"` // create the topic before publishing
}

// DatabaseConfig holds PostgreSQL export parameters.
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"db_name"`
	SSLMode        string        `mapstructure:"ssl_mode"`
	MaxConns       int           `mapstructure:"max_conns"`
	MinConns       int           `mapstructure:"min_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ServerConfig holds preview API tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"` // empty allows any origin
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Input      InputConfig      `mapstructure:"input"`
	Output     OutputConfig     `mapstructure:"output"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Validation ValidationConfig `mapstructure:"validation"`
	Bundle     BundleConfig     `mapstructure:"bundle"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a fully-populated Config and
// returns the first problem found.  Sections for optional services are only
// checked when the service is enabled.
func (c *Config) Validate() error {
	// Input
	if c.Input.TablePath == "" {
		return fmt.Errorf("config: input.table_path is required")
	}
	if c.Input.RobPath == "" {
		return fmt.Errorf("config: input.rob_path is required")
	}
	if c.Input.RulesPath == "" {
		return fmt.Errorf("config: input.rules_path is required")
	}

	// Output
	if c.Output.InterimDir == "" || c.Output.ProcessedDir == "" {
		return fmt.Errorf("config: output.interim_dir and output.processed_dir are required")
	}

	// Pipeline
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("config: pipeline.workers must be >= 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.FulltextPages < 1 {
		return fmt.Errorf("config: pipeline.fulltext_pages must be >= 1, got %d", c.Pipeline.FulltextPages)
	}
	if c.Pipeline.RobOverallColumn < 2 || c.Pipeline.RobFallbackColumn < 2 {
		return fmt.Errorf("config: pipeline RoB columns must be >= 2 (column 1 holds the study id)")
	}

	// Validation bands
	v := c.Validation
	if v.BolusMin < 0 || v.BolusMin >= v.BolusMax {
		return fmt.Errorf("config: validation bolus band [%g, %g] is invalid", v.BolusMin, v.BolusMax)
	}
	if v.InfusionMin < 0 || v.InfusionMin >= v.InfusionMax {
		return fmt.Errorf("config: validation infusion band [%g, %g] is invalid", v.InfusionMin, v.InfusionMax)
	}

	// Bundle
	b := c.Bundle
	if b.Enabled() && (b.CrudeCSV == "" || b.OverallCSV == "") {
		return fmt.Errorf("config: bundle.crude_csv and bundle.overall_csv are required with bundle.shrinkage_csv")
	}
	if b.XMinOR <= 0 || b.XMinOR >= b.XMaxOR {
		return fmt.Errorf("config: bundle odds-ratio limits [%g, %g] are invalid", b.XMinOR, b.XMaxOR)
	}
	if b.GridPoints < 31 {
		return fmt.Errorf("config: bundle.grid_points must be >= 31, got %d", b.GridPoints)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// MinIO
	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required when minio is enabled")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required when minio is enabled")
		}
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka is enabled")
		}
	}

	// Database
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	return nil
}

//Personal.AI order the ending
