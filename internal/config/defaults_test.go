package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultTablePath, cfg.Input.TablePath)
	assert.Equal(t, DefaultProcessedDir, cfg.Output.ProcessedDir)
	assert.Equal(t, DefaultWorkers, cfg.Pipeline.Workers)
	assert.Equal(t, DefaultBolusMax, cfg.Validation.BolusMax)
	assert.Equal(t, []string{"stderr"}, cfg.Log.OutputPaths)
	assert.Equal(t, DefaultBundleGridPoints, cfg.Bundle.GridPoints)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Pipeline.Workers = 16
	cfg.Validation.InfusionMin = 0.1
	cfg.Validation.InfusionMax = 2
	ApplyDefaults(cfg)

	assert.Equal(t, 16, cfg.Pipeline.Workers)
	assert.Equal(t, 0.1, cfg.Validation.InfusionMin)
	assert.Equal(t, 2.0, cfg.Validation.InfusionMax)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.True(t, cfg.Output.ParquetEnabled)
	assert.NoError(t, cfg.Validate())
}

//Personal.AI order the ending
