package command

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/trustrail/trustrail/pkg/identifier"
)

// TravelRuleMetadata is the regulated payload that must accompany a
// settlement transfer, signed by the recipient's compliance key.
type TravelRuleMetadata struct {
	ReferenceID   string `json:"reference_id"`
	SenderAddress string `json:"sender_address"`
	Amount        uint64 `json:"amount"`
	Currency      string `json:"currency"`
}

// TravelRuleMetadataBytes renders the metadata as canonical JSON so both
// parties sign and verify byte-identical messages.
func (c *PaymentCommand) TravelRuleMetadataBytes(hrp string) ([]byte, error) {
	senderAddress, _, err := identifier.DecodeAccount(hrp, c.Payment.Sender.Address)
	if err != nil {
		return nil, fmt.Errorf("decode sender address: %w", err)
	}
	data, err := json.Marshal(TravelRuleMetadata{
		ReferenceID:   c.Payment.ReferenceID,
		SenderAddress: hex.EncodeToString(senderAddress),
		Amount:        c.Payment.Action.Amount,
		Currency:      c.Payment.Action.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal travel-rule metadata: %w", err)
	}
	canon, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("canonicalize travel-rule metadata: %w", err)
	}
	return canon, nil
}

// SenderAccountAddress returns the sender's on-chain address.
func (c *PaymentCommand) SenderAccountAddress(hrp string) ([]byte, error) {
	address, _, err := identifier.DecodeAccount(hrp, c.Payment.Sender.Address)
	return address, err
}

// ReceiverSubaddress returns the subaddress binding the receiver side of
// the conversation to an end user.
func (c *PaymentCommand) ReceiverSubaddress(hrp string) ([]byte, error) {
	_, subaddress, err := identifier.DecodeAccount(hrp, c.Payment.Receiver.Address)
	return subaddress, err
}

// MyActorSubaddress returns the subaddress on the local party's side.
func (c *PaymentCommand) MyActorSubaddress(hrp string) ([]byte, error) {
	_, subaddress, err := identifier.DecodeAccount(hrp, c.MyActor().Address)
	return subaddress, err
}
