// Package identifier encodes and decodes human-readable account
// identifiers: a bech32 string binding an on-chain account address and
// an opaque subaddress under a network prefix (hrp). A subaddress ties
// one conversation to an individual end user on that party's side.
package identifier

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"net/url"
	"strconv"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Network prefixes.
const (
	MainnetPrefix = "trm"
	TestnetPrefix = "ttr"
)

const (
	// AccountAddressLength is the on-chain account address size in bytes.
	AccountAddressLength = 16
	// SubaddressLength is the fixed subaddress size in bytes.
	SubaddressLength = 8

	version = byte(1)
)

// GenSubaddress returns a fresh random subaddress.
func GenSubaddress() ([]byte, error) {
	sub := make([]byte, SubaddressLength)
	if _, err := rand.Read(sub); err != nil {
		return nil, fmt.Errorf("generate subaddress: %w", err)
	}
	return sub, nil
}

// EncodeAccount encodes (address, subaddress) under the given hrp. A nil
// subaddress encodes as all zero bytes, addressing the account itself.
func EncodeAccount(hrp string, address, subaddress []byte) (string, error) {
	if len(address) != AccountAddressLength {
		return "", fmt.Errorf("account address must be %d bytes, got %d", AccountAddressLength, len(address))
	}
	if subaddress == nil {
		subaddress = make([]byte, SubaddressLength)
	}
	if len(subaddress) != SubaddressLength {
		return "", fmt.Errorf("subaddress must be %d bytes, got %d", SubaddressLength, len(subaddress))
	}

	data := make([]byte, 0, AccountAddressLength+SubaddressLength)
	data = append(data, address...)
	data = append(data, subaddress...)
	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert account identifier bits: %w", err)
	}
	return bech32.Encode(hrp, append([]byte{version}, converted...))
}

// DecodeAccount decodes an account identifier, requiring the given hrp.
// The returned subaddress is nil when it is all zero bytes.
func DecodeAccount(hrp, encoded string) (address, subaddress []byte, err error) {
	gotHRP, data, err := bech32.Decode(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("decode account identifier: %w", err)
	}
	if gotHRP != hrp {
		return nil, nil, fmt.Errorf("account identifier hrp %q does not match expected %q", gotHRP, hrp)
	}
	if len(data) == 0 || data[0] != version {
		return nil, nil, fmt.Errorf("unsupported account identifier version")
	}
	raw, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, nil, fmt.Errorf("convert account identifier bits: %w", err)
	}
	if len(raw) != AccountAddressLength+SubaddressLength {
		return nil, nil, fmt.Errorf("account identifier payload must be %d bytes, got %d",
			AccountAddressLength+SubaddressLength, len(raw))
	}
	address = raw[:AccountAddressLength]
	subaddress = raw[AccountAddressLength:]
	if bytes.Equal(subaddress, make([]byte, SubaddressLength)) {
		subaddress = nil
	}
	return address, subaddress, nil
}

// Intent is a payment request: pay this account this amount in this
// currency.
type Intent struct {
	AccountID string
	Currency  string
	Amount    uint64
}

const intentScheme = "payment"

// EncodeIntent renders an intent as a payment URI.
func EncodeIntent(accountID, currency string, amount uint64) string {
	q := url.Values{}
	q.Set("c", currency)
	q.Set("am", strconv.FormatUint(amount, 10))
	u := url.URL{Scheme: intentScheme, Host: accountID, RawQuery: q.Encode()}
	return u.String()
}

// DecodeIntent parses a payment URI, checking the embedded account
// identifier against the expected hrp.
func DecodeIntent(hrp, encoded string) (*Intent, error) {
	u, err := url.Parse(encoded)
	if err != nil {
		return nil, fmt.Errorf("parse intent identifier: %w", err)
	}
	if u.Scheme != intentScheme {
		return nil, fmt.Errorf("intent scheme %q is not %q", u.Scheme, intentScheme)
	}
	accountID := u.Host
	if _, _, err := DecodeAccount(hrp, accountID); err != nil {
		return nil, err
	}
	currency := u.Query().Get("c")
	if currency == "" {
		return nil, fmt.Errorf("intent is missing the currency parameter")
	}
	amount, err := strconv.ParseUint(u.Query().Get("am"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse intent amount: %w", err)
	}
	return &Intent{AccountID: accountID, Currency: currency, Amount: amount}, nil
}
