package config

// Portal mirrors portal.Params in TOML form. Amounts are decimal strings so
// values beyond 64 bits survive the round trip.
type Portal struct {
	FundingPhaseDurationSecs    uint64 `toml:"FundingPhaseDurationSecs"`
	FundingExchangeRatio        uint64 `toml:"FundingExchangeRatio"`
	FundingRewardRate           uint64 `toml:"FundingRewardRate"`
	PrincipalAsset              string `toml:"PrincipalAsset"`
	ReceiptAsset                string `toml:"ReceiptAsset"`
	EntitlementAsset            string `toml:"EntitlementAsset"`
	ReferenceAsset              string `toml:"ReferenceAsset"`
	InitialMaxLockDurationSecs  uint64 `toml:"InitialMaxLockDurationSecs"`
	TerminalMaxLockDurationSecs uint64 `toml:"TerminalMaxLockDurationSecs"`
	AmountToConvert             string `toml:"AmountToConvert"`
}

// Venue names the reward token paid out by the yield venue.
type Venue struct {
	RewardAsset string `toml:"RewardAsset"`
}

// Pauses lists modules whose state-mutating calls are rejected.
type Pauses struct {
	Portal bool `toml:"Portal"`
}

// IsPaused implements the pause view consumed by the engines.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case "portal":
		return p.Portal
	default:
		return false
	}
}

// Allocation funds an address at genesis.
type Allocation struct {
	Asset   string `toml:"Asset"`
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}
