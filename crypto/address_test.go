package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[19] = 0x2a
	addr := MustNewAddress(UserPrefix, raw)

	encoded := addr.String()
	require.Contains(t, encoded, "stk1")

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.True(t, decoded.Equal(addr))
	require.Equal(t, UserPrefix, decoded.Prefix())
}

func TestNewAddressRejectsBadLength(t *testing.T) {
	_, err := NewAddress(UserPrefix, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestModuleAddressDeterministic(t *testing.T) {
	a := ModuleAddress("portal")
	b := ModuleAddress(" portal ")
	c := ModuleAddress("venue")

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.Equal(t, ModulePrefix, a.Prefix())
}

func TestZeroAddress(t *testing.T) {
	var addr Address
	require.True(t, addr.IsZero())
	require.Equal(t, "", addr.String())
}
