package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/DexAtlas/internal/config"
)

func validConfig() *config.Config {
	return config.NewDefaultConfig()
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing table", func(c *config.Config) { c.Input.TablePath = "" }, "input.table_path"},
		{"missing rob", func(c *config.Config) { c.Input.RobPath = "" }, "input.rob_path"},
		{"missing rules", func(c *config.Config) { c.Input.RulesPath = "" }, "input.rules_path"},
		{"missing processed dir", func(c *config.Config) { c.Output.ProcessedDir = "" }, "output.interim_dir"},
		{"zero workers", func(c *config.Config) { c.Pipeline.Workers = 0 }, "pipeline.workers"},
		{"zero pages", func(c *config.Config) { c.Pipeline.FulltextPages = 0 }, "fulltext_pages"},
		{"rob column on id", func(c *config.Config) { c.Pipeline.RobOverallColumn = 1 }, "RoB columns"},
		{"inverted bolus band", func(c *config.Config) { c.Validation.BolusMin = 20 }, "bolus band"},
		{"negative infusion band", func(c *config.Config) { c.Validation.InfusionMin = -1 }, "infusion band"},
		{"bundle without crude", func(c *config.Config) { c.Bundle.ShrinkageCSV = "s.csv" }, "bundle.crude_csv"},
		{"inverted bundle limits", func(c *config.Config) { c.Bundle.XMinOR = 5 }, "odds-ratio limits"},
		{"coarse bundle grid", func(c *config.Config) { c.Bundle.GridPoints = 10 }, "bundle.grid_points"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "text" }, "log.format"},
		{"minio without endpoint", func(c *config.Config) { c.MinIO.Enabled = true }, "minio.endpoint"},
		{"kafka without brokers", func(c *config.Config) { c.Kafka.Enabled = true }, "kafka.brokers"},
		{"db port", func(c *config.Config) { c.Database.Port = 70000 }, "database.port"},
		{"server mode", func(c *config.Config) { c.Server.Mode = "prod" }, "server.mode"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestConfig_Validate_OptionalServicesSkippedWhenDisabled(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.MinIO.Endpoint = ""
	cfg.Kafka.Brokers = nil
	assert.NoError(t, cfg.Validate())
}

//Personal.AI order the ending
