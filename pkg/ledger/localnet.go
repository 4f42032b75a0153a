package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/trustrail/trustrail/pkg/identifier"
)

// accountState is one account as LocalNet tracks it.
type accountState struct {
	balances            map[string]uint64
	compliancePublicKey ed25519.PublicKey
	baseURL             string
}

// LocalNet is an in-process ledger for tests and demos. It enforces the
// same settlement rules a real chain would: the source must cover the
// amount and the travel-rule metadata signature must verify against the
// destination's compliance key.
type LocalNet struct {
	hrp string

	mu       sync.Mutex
	accounts map[string]*accountState
	version  uint64
}

// NewLocalNet builds an empty ledger for the given network prefix.
func NewLocalNet(hrp string) *LocalNet {
	return &LocalNet{hrp: hrp, accounts: make(map[string]*accountState)}
}

// CreateAccount registers an account with an initial balance. The
// compliance key and base URL come from the owning VASP; child accounts
// register with their parent's.
func (n *LocalNet) CreateAccount(compliancePub ed25519.PublicKey, baseURL, currency string, initialBalance uint64) (*LocalAccount, error) {
	account, err := GenerateLocalAccount(identifier.AccountAddressLength)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts[account.HexAddress()] = &accountState{
		balances:            map[string]uint64{currency: initialBalance},
		compliancePublicKey: compliancePub,
		baseURL:             baseURL,
	}
	return account, nil
}

func (n *LocalNet) state(address []byte) (*accountState, error) {
	st, ok := n.accounts[hex.EncodeToString(address)]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrAccountNotFound, address)
	}
	return st, nil
}

func (n *LocalNet) SubmitTransfer(_ context.Context, t Transfer) (*Confirmation, error) {
	destAddress, _, err := identifier.DecodeAccount(n.hrp, t.Destination)
	if err != nil {
		return nil, fmt.Errorf("decode transfer destination: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	source, err := n.state(t.Source.Address)
	if err != nil {
		return nil, err
	}
	dest, err := n.state(destAddress)
	if err != nil {
		return nil, err
	}
	if source.balances[t.Currency] < t.Amount {
		return nil, fmt.Errorf("%w: balance %d, transfer %d",
			ErrInsufficientFunds, source.balances[t.Currency], t.Amount)
	}
	if !ed25519.Verify(dest.compliancePublicKey, MetadataDigest(t.Metadata), t.MetadataSignature) {
		return nil, ErrBadAttestation
	}

	source.balances[t.Currency] -= t.Amount
	dest.balances[t.Currency] += t.Amount
	n.version++
	return &Confirmation{Version: n.version}, nil
}

func (n *LocalNet) GetBalance(_ context.Context, address []byte, currency string) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	st, err := n.state(address)
	if err != nil {
		return 0, err
	}
	return st.balances[currency], nil
}

func (n *LocalNet) GetAccountInfo(_ context.Context, address []byte) (*AccountInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	st, err := n.state(address)
	if err != nil {
		return nil, err
	}
	return &AccountInfo{
		Address:             hex.EncodeToString(address),
		CompliancePublicKey: st.compliancePublicKey,
		BaseURL:             st.baseURL,
	}, nil
}
