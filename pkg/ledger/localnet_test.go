package ledger_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustrail/trustrail/pkg/identifier"
	"github.com/trustrail/trustrail/pkg/ledger"
)

func TestLocalNet_Transfer(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(identifier.TestnetPrefix)

	srcPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	destPub, destPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	source, err := net.CreateAccount(srcPub, "http://sender.test", "XUS", 10_000)
	require.NoError(t, err)
	dest, err := net.CreateAccount(destPub, "http://receiver.test", "XUS", 0)
	require.NoError(t, err)

	destID, err := identifier.EncodeAccount(identifier.TestnetPrefix, dest.Address, nil)
	require.NoError(t, err)

	metadata := []byte(`{"reference_id":"ref-1"}`)
	signature := ed25519.Sign(destPriv, ledger.MetadataDigest(metadata))

	confirmation, err := net.SubmitTransfer(ctx, ledger.Transfer{
		Source:            source,
		Destination:       destID,
		Amount:            2_500,
		Currency:          "XUS",
		Metadata:          metadata,
		MetadataSignature: signature,
	})
	require.NoError(t, err)
	assert.NotZero(t, confirmation.Version)

	srcBalance, err := net.GetBalance(ctx, source.Address, "XUS")
	require.NoError(t, err)
	assert.Equal(t, uint64(7_500), srcBalance)

	destBalance, err := net.GetBalance(ctx, dest.Address, "XUS")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500), destBalance)
}

func TestLocalNet_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(identifier.TestnetPrefix)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	source, err := net.CreateAccount(pub, "http://a.test", "XUS", 100)
	require.NoError(t, err)
	dest, err := net.CreateAccount(pub, "http://b.test", "XUS", 0)
	require.NoError(t, err)
	destID, err := identifier.EncodeAccount(identifier.TestnetPrefix, dest.Address, nil)
	require.NoError(t, err)

	metadata := []byte("meta")
	_, err = net.SubmitTransfer(ctx, ledger.Transfer{
		Source:            source,
		Destination:       destID,
		Amount:            1_000,
		Currency:          "XUS",
		Metadata:          metadata,
		MetadataSignature: ed25519.Sign(priv, ledger.MetadataDigest(metadata)),
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestLocalNet_BadAttestation(t *testing.T) {
	ctx := context.Background()
	net := ledger.NewLocalNet(identifier.TestnetPrefix)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, wrongPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	source, err := net.CreateAccount(pub, "http://a.test", "XUS", 10_000)
	require.NoError(t, err)
	dest, err := net.CreateAccount(pub, "http://b.test", "XUS", 0)
	require.NoError(t, err)
	destID, err := identifier.EncodeAccount(identifier.TestnetPrefix, dest.Address, nil)
	require.NoError(t, err)

	metadata := []byte("meta")
	_, err = net.SubmitTransfer(ctx, ledger.Transfer{
		Source:            source,
		Destination:       destID,
		Amount:            1_000,
		Currency:          "XUS",
		Metadata:          metadata,
		MetadataSignature: ed25519.Sign(wrongPriv, ledger.MetadataDigest(metadata)),
	})
	require.ErrorIs(t, err, ledger.ErrBadAttestation)
}

func TestLocalNet_UnknownAccount(t *testing.T) {
	net := ledger.NewLocalNet(identifier.TestnetPrefix)
	_, err := net.GetBalance(context.Background(), make([]byte, identifier.AccountAddressLength), "XUS")
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
