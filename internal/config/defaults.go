package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultTablePath         = "data/raw/supplementary_table.csv"
	DefaultRobPath           = "data/raw/rob2.xlsx"
	DefaultRulesPath         = "config/comparator_rules.yml"
	DefaultPDFDir            = "data/raw/trial_pdfs"
	DefaultAdjudicationsPath = "data/manual_adjudications.json"
	DefaultLinkagePolicyPath = "config/linkage_policy.yml"

	DefaultInterimDir   = "data/interim"
	DefaultProcessedDir = "data/processed"
	DefaultDocsDataDir  = "docs/data"

	DefaultWorkers           = 4
	DefaultFulltextPages     = 5
	DefaultRobOverallColumn  = 10
	DefaultRobFallbackColumn = 13
	DefaultWatchDebounce     = 2 * time.Second

	DefaultBolusMin    = 0.01
	DefaultBolusMax    = 10.0
	DefaultInfusionMin = 0.01
	DefaultInfusionMax = 5.0

	DefaultBundleXMinOR     = 0.1
	DefaultBundleXMaxOR     = 3.5
	DefaultBundleGridPoints = 181

	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultMetricsNamespace = "dexatlas"

	DefaultMinIOBucket = "dexatlas-releases"
	DefaultMinIORegion = "us-east-1"

	DefaultKafkaTopic        = "dexatlas.dataset.released"
	DefaultKafkaAcks         = -1
	DefaultKafkaCompression  = "snappy"
	DefaultKafkaWriteTimeout = 10 * time.Second

	DefaultDBHost           = "localhost"
	DefaultDBPort           = 5432
	DefaultDBName           = "dexatlas"
	DefaultDBUser           = "dexatlas"
	DefaultDBSSLMode        = "disable"
	DefaultDBMaxConns       = 4
	DefaultDBConnectTimeout = 10 * time.Second

	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 15 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second
)

// NewDefaultConfig returns a Config with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Output.ParquetEnabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields in cfg.  Values set explicitly are
// left unchanged.  Booleans are defaulted through viper in loader.go since a
// false cannot be told apart from unset here.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Input ─────────────────────────────────────────────────────────────────
	if cfg.Input.TablePath == "" {
		cfg.Input.TablePath = DefaultTablePath
	}
	if cfg.Input.RobPath == "" {
		cfg.Input.RobPath = DefaultRobPath
	}
	if cfg.Input.RulesPath == "" {
		cfg.Input.RulesPath = DefaultRulesPath
	}
	if cfg.Input.PDFDir == "" {
		cfg.Input.PDFDir = DefaultPDFDir
	}
	if cfg.Input.AdjudicationsPath == "" {
		cfg.Input.AdjudicationsPath = DefaultAdjudicationsPath
	}
	if cfg.Input.LinkagePolicyPath == "" {
		cfg.Input.LinkagePolicyPath = DefaultLinkagePolicyPath
	}

	// ── Output ────────────────────────────────────────────────────────────────
	if cfg.Output.InterimDir == "" {
		cfg.Output.InterimDir = DefaultInterimDir
	}
	if cfg.Output.ProcessedDir == "" {
		cfg.Output.ProcessedDir = DefaultProcessedDir
	}
	if cfg.Output.DocsDataDir == "" {
		cfg.Output.DocsDataDir = DefaultDocsDataDir
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = DefaultWorkers
	}
	if cfg.Pipeline.FulltextPages == 0 {
		cfg.Pipeline.FulltextPages = DefaultFulltextPages
	}
	if cfg.Pipeline.RobOverallColumn == 0 {
		cfg.Pipeline.RobOverallColumn = DefaultRobOverallColumn
	}
	if cfg.Pipeline.RobFallbackColumn == 0 {
		cfg.Pipeline.RobFallbackColumn = DefaultRobFallbackColumn
	}
	if cfg.Pipeline.WatchDebounce == 0 {
		cfg.Pipeline.WatchDebounce = DefaultWatchDebounce
	}

	// ── Validation ────────────────────────────────────────────────────────────
	if cfg.Validation.BolusMin == 0 && cfg.Validation.BolusMax == 0 {
		cfg.Validation.BolusMin = DefaultBolusMin
		cfg.Validation.BolusMax = DefaultBolusMax
	}
	if cfg.Validation.InfusionMin == 0 && cfg.Validation.InfusionMax == 0 {
		cfg.Validation.InfusionMin = DefaultInfusionMin
		cfg.Validation.InfusionMax = DefaultInfusionMax
	}

	// ── Bundle ────────────────────────────────────────────────────────────────
	if cfg.Bundle.XMinOR == 0 && cfg.Bundle.XMaxOR == 0 {
		cfg.Bundle.XMinOR = DefaultBundleXMinOR
		cfg.Bundle.XMaxOR = DefaultBundleXMaxOR
	}
	if cfg.Bundle.GridPoints == 0 {
		cfg.Bundle.GridPoints = DefaultBundleGridPoints
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stderr"}
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.Region == "" {
		cfg.MinIO.Region = DefaultMinIORegion
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.RequiredAcks == 0 {
		cfg.Kafka.RequiredAcks = DefaultKafkaAcks
	}
	if cfg.Kafka.Compression == "" {
		cfg.Kafka.Compression = DefaultKafkaCompression
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = DefaultDBSSLMode
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = DefaultDBConnectTimeout
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
}

//Personal.AI order the ending
