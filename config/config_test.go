package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-N", "1000", "-K", "16", "-DECAY", "0.8"})
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.N)
	assert.Equal(t, 16, cfg.K)
	assert.InDelta(t, 0.8, cfg.Decay, 1e-9)
}

func TestValidateRejectsKGreaterThanN(t *testing.T) {
	cfg := Default()
	cfg.N = 10
	cfg.K = 20
	assert.Error(t, cfg.Validate())
}

func TestKMeansScaleNeverOverflows(t *testing.T) {
	for _, n := range []int{1, 1000, 1_500_000, 50_000_000, 2_000_000_000} {
		scale := KMeansScale(n)
		require.Greater(t, scale, int32(0))
		assert.Less(t, int64(n)*int64(scale), int64(1)<<31)
	}
}
