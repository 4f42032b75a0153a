package wallet

import (
	"bytes"
	"context"

	"github.com/trustrail/trustrail/pkg/identifier"
	"github.com/trustrail/trustrail/pkg/ledger"
	"github.com/trustrail/trustrail/pkg/protocol"
)

// AddUser registers a local end user.
func (w *Wallet) AddUser(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.users[name] = &User{Name: name}
}

func (w *Wallet) user(name string) (*User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, ok := w.users[name]
	if !ok {
		return nil, protocol.NewCommandError(protocol.ErrorCodeNotFound, "",
			"no local user named %q", name)
	}
	return u, nil
}

// AddChildAccount registers a sub-account that settles payments on this
// wallet's behalf.
func (w *Wallet) AddChildAccount(account *ledger.LocalAccount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.childAccounts = append(w.childAccounts, account)
}

// GenUserAccountID mints a subaddress for the named user and encodes it
// under an available child account.
func (w *Wallet) GenUserAccountID(userName string) (string, error) {
	subaddress, err := identifier.GenSubaddress()
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	u, ok := w.users[userName]
	if !ok {
		return "", protocol.NewCommandError(protocol.ErrorCodeNotFound, "",
			"no local user named %q", userName)
	}
	if len(w.childAccounts) == 0 {
		return "", protocol.NewCommandError(protocol.ErrorCodeNotFound, "",
			"wallet has no child accounts")
	}
	u.Subaddresses = append(u.Subaddresses, subaddress)
	return identifier.EncodeAccount(w.hrp, w.childAccounts[0].Address, subaddress)
}

// findUserBySubaddress resolves which local user a conversation is about.
func (w *Wallet) findUserBySubaddress(subaddress []byte) (*User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, u := range w.users {
		if u.ownsSubaddress(subaddress) {
			return u, nil
		}
	}
	return nil, protocol.NewCommandError(protocol.ErrorCodeNotFound, "",
		"no local user owns subaddress %x", subaddress)
}

// findChildAccount resolves the sub-account holding an on-chain address.
func (w *Wallet) findChildAccount(address []byte) (*ledger.LocalAccount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range w.childAccounts {
		if bytes.Equal(a.Address, address) {
			return a, nil
		}
	}
	return nil, protocol.NewCommandError(protocol.ErrorCodeNotFound, "",
		"no child account holds address %x", address)
}

// Balance sums the parent and child account balances in one currency.
func (w *Wallet) Balance(ctx context.Context, currency string) (uint64, error) {
	w.mu.Lock()
	accounts := append([]*ledger.LocalAccount{w.parentAccount}, w.childAccounts...)
	w.mu.Unlock()

	var total uint64
	for _, a := range accounts {
		b, err := w.ledgerClient.GetBalance(ctx, a.Address, currency)
		if err != nil {
			return 0, err
		}
		total += b
	}
	return total, nil
}
