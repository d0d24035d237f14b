package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"stakeportal/crypto"
	"stakeportal/native/portal"
)

var testHolder = crypto.MustNewAddress(crypto.UserPrefix, bytes.Repeat([]byte{0x42}, crypto.AddressLength)).String()

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portal.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)

	params, err := cfg.Portal.Params()
	require.NoError(t, err)
	require.Equal(t, portal.DefaultParams().AmountToConvert.String(), params.AmountToConvert.String())
	require.Equal(t, uint64(432_000), params.FundingPhaseDuration)

	// the persisted default loads back unchanged
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Portal, again.Portal)
}

func TestLoadParsesPortalSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.toml")
	contents := fmt.Sprintf(`DataDir = "./data"
CreationTime = 1700000000

[Portal]
FundingPhaseDurationSecs = 60
FundingExchangeRatio = 550
FundingRewardRate = 10
PrincipalAsset = "hlp"
ReceiptAsset = "bpsm"
EntitlementAsset = "pe"
ReferenceAsset = "psm"
InitialMaxLockDurationSecs = 7776000
TerminalMaxLockDurationSecs = 157680000
AmountToConvert = "100000000000000000000000"

[Pauses]
Portal = true

[[Genesis]]
Asset = "PSM"
Address = "%s"
Amount = "1000000000000000000"
`, testHolder)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(1_700_000_000), cfg.CreationTime)
	require.True(t, cfg.Pauses.IsPaused("portal"))
	require.False(t, cfg.Pauses.IsPaused("venue"))
	require.Equal(t, "RWD", cfg.Venue.RewardAsset)
	require.Len(t, cfg.Genesis, 1)

	value, err := cfg.Genesis[0].Value()
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", value.String())

	params, err := cfg.Portal.Params()
	require.NoError(t, err)
	require.Equal(t, uint64(60), params.FundingPhaseDuration)
}

func TestLoadRejectsInvalidPortal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.toml")
	contents := `[Portal]
FundingPhaseDurationSecs = 60
FundingExchangeRatio = 0
FundingRewardRate = 10
PrincipalAsset = "HLP"
ReceiptAsset = "BPSM"
EntitlementAsset = "PE"
ReferenceAsset = "PSM"
InitialMaxLockDurationSecs = 7776000
TerminalMaxLockDurationSecs = 157680000
AmountToConvert = "1"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	require.ErrorIs(t, err, portal.ErrInvalidParams)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.toml")
	require.NoError(t, os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestGenesisValidation(t *testing.T) {
	cfg := Default()
	cfg.Genesis = []Allocation{{Asset: "PSM", Address: "not-an-address", Amount: "1"}}
	require.Error(t, ValidateConfig(*cfg))

	cfg.Genesis = []Allocation{{Asset: "PSM", Address: testHolder, Amount: "-1"}}
	require.Error(t, ValidateConfig(*cfg))

	cfg.Genesis = []Allocation{{Asset: "PSM", Address: testHolder, Amount: "5"}}
	require.NoError(t, ValidateConfig(*cfg))
}
