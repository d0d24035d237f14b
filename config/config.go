package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakeportal/native/portal"
)

// Config is the protocol configuration fixed when the portal is created.
type Config struct {
	DataDir string `toml:"DataDir"`
	// CreationTime anchors the funding window and the ratchet. Zero means the
	// first start of the daemon.
	CreationTime uint64       `toml:"CreationTime"`
	Portal       Portal       `toml:"Portal"`
	Venue        Venue        `toml:"Venue"`
	Pauses       Pauses       `toml:"Pauses"`
	Genesis      []Allocation `toml:"Genesis"`
}

// Load loads the configuration from the given path. A missing file is created
// with the launch defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./portal-data"
	}
	if strings.TrimSpace(cfg.Venue.RewardAsset) == "" {
		cfg.Venue.RewardAsset = "RWD"
	}
	if err := ValidateConfig(*cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the launch configuration.
func Default() *Config {
	params := portal.DefaultParams()
	return &Config{
		DataDir: "./portal-data",
		Portal: Portal{
			FundingPhaseDurationSecs:    params.FundingPhaseDuration,
			FundingExchangeRatio:        params.FundingExchangeRatio,
			FundingRewardRate:           params.FundingRewardRate,
			PrincipalAsset:              params.PrincipalAsset,
			ReceiptAsset:                params.ReceiptAsset,
			EntitlementAsset:            params.EntitlementAsset,
			ReferenceAsset:              params.ReferenceAsset,
			InitialMaxLockDurationSecs:  params.InitialMaxLockDuration,
			TerminalMaxLockDurationSecs: params.TerminalMaxLockDuration,
			AmountToConvert:             params.AmountToConvert.String(),
		},
		Venue:   Venue{RewardAsset: "RWD"},
		Genesis: []Allocation{},
	}
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Params converts the TOML section into engine parameters.
func (p Portal) Params() (portal.Params, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(p.AmountToConvert), 10)
	if !ok {
		return portal.Params{}, fmt.Errorf("portal: AmountToConvert %q is not a base-10 integer", p.AmountToConvert)
	}
	params := portal.Params{
		FundingPhaseDuration:    p.FundingPhaseDurationSecs,
		FundingExchangeRatio:    p.FundingExchangeRatio,
		FundingRewardRate:       p.FundingRewardRate,
		PrincipalAsset:          p.PrincipalAsset,
		ReceiptAsset:            p.ReceiptAsset,
		EntitlementAsset:        p.EntitlementAsset,
		ReferenceAsset:          p.ReferenceAsset,
		InitialMaxLockDuration:  p.InitialMaxLockDurationSecs,
		TerminalMaxLockDuration: p.TerminalMaxLockDurationSecs,
		AmountToConvert:         amount,
	}
	if err := params.Validate(); err != nil {
		return portal.Params{}, err
	}
	return params, nil
}
