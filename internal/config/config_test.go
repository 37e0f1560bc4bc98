package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/credible-commitment-machine/internal/config"
)

func TestDefaultEnclaveConfigConvertsCleanly(t *testing.T) {
	def := config.DefaultEnclaveConfig()
	cfg, err := def.ToEnclaveConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(30), cfg.MinLockDuration)
	require.Equal(t, uint64(3600), cfg.MaxLockDuration)
	require.True(t, cfg.SupportedChains[1])
	require.Equal(t, uint256.MustFromDecimal("100000"), cfg.RiskLimits.MaxSingleLockAmount)
	require.Equal(t, uint32(100), cfg.RiskLimits.MaxConcurrentLocks)
}

func TestLoadEnclaveConfigFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enclave.yaml")
	yamlBody := `
minLockDuration: 45
maxLockDuration: 900
supportedChains: [1, 42161]
settlementBuffer: 120
riskLimits:
  maxTotalLockedPerAccount: "5000000"
  maxSingleLockAmount: "250000"
  maxConcurrentLocks: 10
  maxDailyVolume: "20000000"
listenAddress: "0.0.0.0:7443"
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0644))

	file, err := config.LoadEnclaveConfigFromPath(path)
	require.NoError(t, err)
	require.Equal(t, uint64(45), file.MinLockDuration)
	require.Equal(t, []uint64{1, 42161}, file.SupportedChains)

	cfg, err := file.ToEnclaveConfig()
	require.NoError(t, err)
	require.True(t, cfg.SupportedChains[42161])
	require.Equal(t, uint256.MustFromDecimal("250000"), cfg.RiskLimits.MaxSingleLockAmount)
}

func TestLoadEnclaveConfigRejectsInvertedDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enclave.yaml")
	require.NoError(t, os.WriteFile(path, []byte("minLockDuration: 100\nmaxLockDuration: 50\n"), 0644))

	_, err := config.LoadEnclaveConfigFromPath(path)
	require.Error(t, err)
}

func TestLoadEnclaveConfigOrDefaultFallsBackWhenMissing(t *testing.T) {
	cfg := config.LoadEnclaveConfigOrDefault()
	require.NotNil(t, cfg)
}
