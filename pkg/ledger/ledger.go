// Package ledger is the engine's view of the settlement ledger: submit a
// travel-rule transfer, query a balance, look up counterpart metadata.
// The production backend is a remote chain; LocalNet is an in-process
// stand-in with the same contract.
package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Errors surfaced by ledger backends.
var (
	ErrAccountNotFound   = errors.New("ledger: account not found")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrBadAttestation    = errors.New("ledger: travel-rule attestation rejected")
)

// LocalAccount is an account whose signing key is held by this process.
type LocalAccount struct {
	PrivateKey ed25519.PrivateKey
	Address    []byte
}

// GenerateLocalAccount creates a keypair and derives a fresh address.
func GenerateLocalAccount(addressLength int) (*LocalAccount, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}
	address := make([]byte, addressLength)
	if _, err := rand.Read(address); err != nil {
		return nil, fmt.Errorf("generate account address: %w", err)
	}
	return &LocalAccount{PrivateKey: priv, Address: address}, nil
}

// HexAddress renders the account address for logs and lookups.
func (a *LocalAccount) HexAddress() string {
	return hex.EncodeToString(a.Address)
}

// Transfer is one settlement submission. Destination is an encoded
// account identifier; Metadata carries the travel-rule payload whose
// signature the ledger verifies against the destination's compliance key
// before the transfer may settle.
type Transfer struct {
	Source            *LocalAccount
	Destination       string
	Amount            uint64
	Currency          string
	Metadata          []byte
	MetadataSignature []byte
}

// Confirmation identifies an executed transfer.
type Confirmation struct {
	Version uint64
}

// AccountInfo is the on-ledger metadata for a counterparty account.
type AccountInfo struct {
	Address             string
	CompliancePublicKey ed25519.PublicKey
	BaseURL             string
}

// Client is the ledger collaborator contract.
type Client interface {
	SubmitTransfer(ctx context.Context, t Transfer) (*Confirmation, error)
	GetBalance(ctx context.Context, address []byte, currency string) (uint64, error)
	// GetAccountInfo resolves a counterparty's compliance key and
	// off-chain service location from its on-chain address.
	GetAccountInfo(ctx context.Context, address []byte) (*AccountInfo, error)
}
