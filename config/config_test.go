package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "clover-api", cfg.AppName)
	assert.Equal(t, 3004, cfg.Port)
	assert.Equal(t, "strict", cfg.RuleProfile)
	assert.Equal(t, 150, cfg.BlockCap)
	assert.Equal(t, 2*time.Second, cfg.OracleRetryDelay)
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("BLOCK_CAP", "10")
	t.Setenv("RULE_PROFILE", "lenient")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.BlockCap)
	assert.Equal(t, "lenient", cfg.RuleProfile)
}
