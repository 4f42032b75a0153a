package identifier_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustrail/trustrail/pkg/identifier"
)

func testAddress(t *testing.T) []byte {
	t.Helper()
	address := make([]byte, identifier.AccountAddressLength)
	for i := range address {
		address[i] = byte(i + 1)
	}
	return address
}

func TestAccount_RoundTrip(t *testing.T) {
	address := testAddress(t)
	subaddress, err := identifier.GenSubaddress()
	require.NoError(t, err)
	require.Len(t, subaddress, identifier.SubaddressLength)

	encoded, err := identifier.EncodeAccount(identifier.TestnetPrefix, address, subaddress)
	require.NoError(t, err)

	gotAddress, gotSubaddress, err := identifier.DecodeAccount(identifier.TestnetPrefix, encoded)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(address, gotAddress))
	assert.True(t, bytes.Equal(subaddress, gotSubaddress))
}

func TestAccount_NilSubaddress(t *testing.T) {
	address := testAddress(t)
	encoded, err := identifier.EncodeAccount(identifier.TestnetPrefix, address, nil)
	require.NoError(t, err)

	gotAddress, gotSubaddress, err := identifier.DecodeAccount(identifier.TestnetPrefix, encoded)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(address, gotAddress))
	assert.Nil(t, gotSubaddress)
}

func TestAccount_HRPMismatch(t *testing.T) {
	encoded, err := identifier.EncodeAccount(identifier.TestnetPrefix, testAddress(t), nil)
	require.NoError(t, err)

	_, _, err = identifier.DecodeAccount(identifier.MainnetPrefix, encoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestAccount_BadAddressLength(t *testing.T) {
	_, err := identifier.EncodeAccount(identifier.TestnetPrefix, []byte{1, 2, 3}, nil)
	require.Error(t, err)
}

func TestAccount_DecodeGarbage(t *testing.T) {
	_, _, err := identifier.DecodeAccount(identifier.TestnetPrefix, "not-bech32")
	require.Error(t, err)
}

func TestIntent_RoundTrip(t *testing.T) {
	subaddress, err := identifier.GenSubaddress()
	require.NoError(t, err)
	accountID, err := identifier.EncodeAccount(identifier.TestnetPrefix, testAddress(t), subaddress)
	require.NoError(t, err)

	encoded := identifier.EncodeIntent(accountID, "XUS", 4500)
	intent, err := identifier.DecodeIntent(identifier.TestnetPrefix, encoded)
	require.NoError(t, err)
	assert.Equal(t, accountID, intent.AccountID)
	assert.Equal(t, "XUS", intent.Currency)
	assert.Equal(t, uint64(4500), intent.Amount)
}

func TestIntent_Rejections(t *testing.T) {
	accountID, err := identifier.EncodeAccount(identifier.TestnetPrefix, testAddress(t), nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		encoded string
	}{
		{"wrong scheme", "http://" + accountID + "?c=XUS&am=100"},
		{"missing currency", "payment://" + accountID + "?am=100"},
		{"bad amount", "payment://" + accountID + "?c=XUS&am=many"},
		{"bad account id", "payment://nonsense?c=XUS&am=100"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := identifier.DecodeIntent(identifier.TestnetPrefix, tc.encoded)
			require.Error(t, err)
		})
	}
}
