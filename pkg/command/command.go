// Package command models one versioned negotiation state exchanged
// between two counterparties, the transition rules that make versions
// monotonic, and the resolver that decides the local party's next move.
package command

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/trustrail/trustrail/pkg/protocol"
)

// Action identifies a deferred business action for the local party.
type Action string

const (
	ActionEvaluateKYCData Action = "evaluate_kyc_data"
	ActionClearSoftMatch  Action = "clear_soft_match"
	ActionReviewKYCData   Action = "review_kyc_data"
	ActionSubmitTxn       Action = "submit_transaction"
)

// Command is one immutable version of a negotiation. A command is never
// mutated in place: progress is made by validating and storing a
// replacement version under the same reference id.
type Command interface {
	// CommandType discriminates the payload variant.
	CommandType() protocol.CommandType
	// ReferenceID is the conversation key, stable across versions.
	ReferenceID() string
	// MyActorAddress identifies the local party's side of the conversation.
	MyActorAddress() string
	// IsInbound reports whether this version was received from the
	// counterpart rather than produced locally.
	IsInbound() bool
	// Validate accepts or rejects this version as a successor of prior.
	// A nil prior means this is the first version of the conversation and
	// only structural validity is checked.
	Validate(prior Command) error
	// FollowUpAction resolves the local party's next deferred action.
	// The second return is false when no local action is required, which
	// is a valid terminal outcome, not an error.
	FollowUpAction() (Action, bool)
	// Hash is the canonical-JSON digest used for version equality.
	Hash() (string, error)
}

// envelope is the serialized form of a command used by persistent store
// backends and by version hashing.
type envelope struct {
	CommandType    protocol.CommandType `json:"command_type"`
	MyActorAddress string               `json:"my_actor_address"`
	Inbound        bool                 `json:"inbound"`
	Command        json.RawMessage      `json:"command"`
}

// Payload serializes just the variant payload, as carried on the wire
// inside a command request object.
func Payload(c Command) (json.RawMessage, error) {
	var payload any
	switch v := c.(type) {
	case *PaymentCommand:
		payload = v.Payment
	case *FundsPullPreApprovalCommand:
		payload = v.FundPullPreApproval
	default:
		return nil, fmt.Errorf("unknown command type %T", c)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", c.CommandType(), err)
	}
	return raw, nil
}

// Marshal serializes a command for storage.
func Marshal(c Command) ([]byte, error) {
	raw, err := Payload(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		CommandType:    c.CommandType(),
		MyActorAddress: c.MyActorAddress(),
		Inbound:        c.IsInbound(),
		Command:        raw,
	})
}

// Unmarshal restores a command serialized by Marshal.
func Unmarshal(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal command envelope: %w", err)
	}
	return FromRequestPayload(env.CommandType, env.Command, env.MyActorAddress, env.Inbound)
}

// FromRequestPayload builds a typed command from a raw variant payload,
// as carried by a command request object or a stored envelope.
func FromRequestPayload(ct protocol.CommandType, raw json.RawMessage, myActorAddress string, inbound bool) (Command, error) {
	switch ct {
	case protocol.CommandTypePayment:
		var p protocol.PaymentObject
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal payment payload: %w", err)
		}
		return &PaymentCommand{MyAddress: myActorAddress, Inbound: inbound, Payment: &p}, nil
	case protocol.CommandTypeFundPullPreApproval:
		var f protocol.FundPullPreApprovalObject
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("unmarshal fund pull pre approval payload: %w", err)
		}
		return &FundsPullPreApprovalCommand{MyAddress: myActorAddress, Inbound: inbound, FundPullPreApproval: &f}, nil
	default:
		return nil, protocol.NewProtocolError(protocol.ErrorCodeInvalidObject, "unknown command type: %s", ct)
	}
}

// hashCommand digests the canonical JSON of a command's envelope.
// Canonicalization makes the hash independent of map ordering so two
// structurally equal versions always compare equal.
func hashCommand(c Command) (string, error) {
	data, err := Marshal(c)
	if err != nil {
		return "", err
	}
	canon, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canonicalize command: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// Equal reports whether two commands are the same version.
func Equal(a, b Command) (bool, error) {
	ha, err := a.Hash()
	if err != nil {
		return false, err
	}
	hb, err := b.Hash()
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

// structuralCheck runs the first-version schema validation for a payload.
func structuralCheck(ct protocol.CommandType, payload any, refID string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", ct, err)
	}
	if err := protocol.ValidateStructure(ct, raw); err != nil {
		var ce *protocol.CommandError
		if errors.As(err, &ce) && ce.ReferenceID == "" {
			ce.ReferenceID = refID
		}
		return err
	}
	return nil
}
