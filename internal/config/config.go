// Package config loads the enclave's YAML configuration file, the one
// piece of this system that does survive a restart (the enclave key,
// enclave ID, and lock state do not).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/holiman/uint256"

	"github.com/R3E-Network/credible-commitment-machine/internal/commitment"
)

// RiskLimitsFile is the YAML shape of commitment.RiskLimits: uint256
// values travel as decimal strings on the wire the same way they do at
// the RPC boundary.
type RiskLimitsFile struct {
	MaxTotalLockedPerAccount string `yaml:"maxTotalLockedPerAccount"`
	MaxSingleLockAmount      string `yaml:"maxSingleLockAmount"`
	MaxConcurrentLocks       uint32 `yaml:"maxConcurrentLocks"`
	MaxDailyVolume           string `yaml:"maxDailyVolume"`
}

// EnclaveConfigFile is the YAML shape of commitment.EnclaveConfig.
type EnclaveConfigFile struct {
	MinLockDuration  uint64          `yaml:"minLockDuration"`
	MaxLockDuration  uint64          `yaml:"maxLockDuration"`
	SupportedChains  []uint64        `yaml:"supportedChains"`
	SettlementBuffer uint64          `yaml:"settlementBuffer"`
	RiskLimits       RiskLimitsFile  `yaml:"riskLimits"`
	ListenAddress    string          `yaml:"listenAddress"`
	HTTPAddress      string          `yaml:"httpAddress"`
}

// LoadEnclaveConfig loads config/enclave.yaml.
func LoadEnclaveConfig() (*EnclaveConfigFile, error) {
	return LoadEnclaveConfigFromPath(filepath.Join("config", "enclave.yaml"))
}

// LoadEnclaveConfigFromPath loads and validates an enclave config file at path.
func LoadEnclaveConfigFromPath(path string) (*EnclaveConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read enclave config: %w", err)
	}

	var cfg EnclaveConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse enclave config: %w", err)
	}
	if cfg.MinLockDuration > 0 && cfg.MaxLockDuration > 0 && cfg.MinLockDuration > cfg.MaxLockDuration {
		return nil, fmt.Errorf("enclave config: minLockDuration exceeds maxLockDuration")
	}
	return &cfg, nil
}

// LoadEnclaveConfigOrDefault loads config/enclave.yaml or falls back to
// DefaultEnclaveConfig if the file is absent or invalid.
func LoadEnclaveConfigOrDefault() *EnclaveConfigFile {
	cfg, err := LoadEnclaveConfig()
	if err != nil {
		return DefaultEnclaveConfig()
	}
	return cfg
}

// DefaultEnclaveConfig mirrors commitment.EnclaveConfig.applyDefaults so a
// freshly deployed enclave with no config file on disk still starts.
func DefaultEnclaveConfig() *EnclaveConfigFile {
	return &EnclaveConfigFile{
		MinLockDuration:  30,
		MaxLockDuration:  3600,
		SupportedChains:  []uint64{1},
		SettlementBuffer: 300,
		RiskLimits: RiskLimitsFile{
			MaxTotalLockedPerAccount: "1000000",
			MaxSingleLockAmount:      "100000",
			MaxConcurrentLocks:       100,
			MaxDailyVolume:           "10000000",
		},
		ListenAddress: "127.0.0.1:7443",
		HTTPAddress:   "127.0.0.1:7444",
	}
}

// ToEnclaveConfig converts the YAML shape into the commitment package's
// runtime config, parsing every uint256 field. A zero-valued field in
// the file is left zero so commitment.EnclaveConfig.applyDefaults can
// fill it in exactly as it does when no config is supplied at all.
func (f *EnclaveConfigFile) ToEnclaveConfig() (commitment.EnclaveConfig, error) {
	cfg := commitment.EnclaveConfig{
		MinLockDuration:  f.MinLockDuration,
		MaxLockDuration:  f.MaxLockDuration,
		SettlementBuffer: f.SettlementBuffer,
	}

	if len(f.SupportedChains) > 0 {
		cfg.SupportedChains = make(map[uint64]bool, len(f.SupportedChains))
		for _, id := range f.SupportedChains {
			cfg.SupportedChains[id] = true
		}
	}

	var err error
	if cfg.RiskLimits.MaxTotalLockedPerAccount, err = parseOptionalAmount(f.RiskLimits.MaxTotalLockedPerAccount); err != nil {
		return commitment.EnclaveConfig{}, fmt.Errorf("riskLimits.maxTotalLockedPerAccount: %w", err)
	}
	if cfg.RiskLimits.MaxSingleLockAmount, err = parseOptionalAmount(f.RiskLimits.MaxSingleLockAmount); err != nil {
		return commitment.EnclaveConfig{}, fmt.Errorf("riskLimits.maxSingleLockAmount: %w", err)
	}
	if cfg.RiskLimits.MaxDailyVolume, err = parseOptionalAmount(f.RiskLimits.MaxDailyVolume); err != nil {
		return commitment.EnclaveConfig{}, fmt.Errorf("riskLimits.maxDailyVolume: %w", err)
	}
	cfg.RiskLimits.MaxConcurrentLocks = f.RiskLimits.MaxConcurrentLocks

	return cfg, nil
}

func parseOptionalAmount(decimal string) (*uint256.Int, error) {
	if decimal == "" {
		return nil, nil
	}
	return uint256.FromDecimal(decimal)
}
