package command

import (
	"github.com/trustrail/trustrail/pkg/protocol"
)

// paymentTransitions maps a prior payment status to the statuses a new
// version may carry. Terminal statuses have no outgoing edges.
var paymentTransitions = map[protocol.PaymentStatus][]protocol.PaymentStatus{
	protocol.PaymentStatusNone: {
		protocol.PaymentStatusNone,
		protocol.PaymentStatusSoftMatch,
		protocol.PaymentStatusReadyForSettlement,
		protocol.PaymentStatusAbort,
	},
	protocol.PaymentStatusSoftMatch: {
		protocol.PaymentStatusSoftMatch,
		protocol.PaymentStatusReadyForSettlement,
		protocol.PaymentStatusAbort,
	},
	protocol.PaymentStatusReadyForSettlement: {},
	protocol.PaymentStatusAbort:              {},
}

// PaymentCommand is one version of a payment negotiation as seen by the
// local party. MyAddress resolves to one of the two actor addresses and
// fixes the local role (sender or receiver).
type PaymentCommand struct {
	MyAddress string                  `json:"my_actor_address"`
	Inbound   bool                    `json:"inbound"`
	Payment   *protocol.PaymentObject `json:"payment"`
}

// NewPaymentCommand builds the first, outbound version of a payment
// conversation initiated by the local sender.
func NewPaymentCommand(referenceID, senderAddress string, senderKYC *protocol.KYCDataObject, receiverAddress string, amount uint64, currency string, timestamp int64) *PaymentCommand {
	return &PaymentCommand{
		MyAddress: senderAddress,
		Inbound:   false,
		Payment: &protocol.PaymentObject{
			ReferenceID: referenceID,
			Sender: protocol.PaymentActorObject{
				Address: senderAddress,
				KYCData: senderKYC,
			},
			Receiver: protocol.PaymentActorObject{
				Address: receiverAddress,
			},
			Action: protocol.PaymentActionObject{
				Amount:    amount,
				Currency:  currency,
				Action:    protocol.PaymentActionCharge,
				Timestamp: timestamp,
			},
			Status: protocol.PaymentStatusNone,
		},
	}
}

func (c *PaymentCommand) CommandType() protocol.CommandType { return protocol.CommandTypePayment }
func (c *PaymentCommand) ReferenceID() string               { return c.Payment.ReferenceID }
func (c *PaymentCommand) MyActorAddress() string            { return c.MyAddress }
func (c *PaymentCommand) IsInbound() bool                   { return c.Inbound }

// IsSender reports whether the local party is the paying side.
func (c *PaymentCommand) IsSender() bool {
	return c.MyAddress == c.Payment.Sender.Address
}

// IsReceiver reports whether the local party is the paid side.
func (c *PaymentCommand) IsReceiver() bool {
	return c.MyAddress == c.Payment.Receiver.Address
}

// MyActor returns the local party's actor object.
func (c *PaymentCommand) MyActor() *protocol.PaymentActorObject {
	if c.IsSender() {
		return &c.Payment.Sender
	}
	return &c.Payment.Receiver
}

// OpponentActor returns the counterpart's actor object.
func (c *PaymentCommand) OpponentActor() *protocol.PaymentActorObject {
	if c.IsSender() {
		return &c.Payment.Receiver
	}
	return &c.Payment.Sender
}

func (c *PaymentCommand) Hash() (string, error) { return hashCommand(c) }

// PaymentUpdate describes the changes a new version carries. Zero-valued
// fields are left as in the current version.
type PaymentUpdate struct {
	Status             protocol.PaymentStatus
	AbortCode          protocol.AbortCode
	AbortMessage       string
	RecipientSignature string
	// KYCData and AdditionalKYCData attach to the local party's actor.
	KYCData           *protocol.KYCDataObject
	AdditionalKYCData string
}

// NewVersion returns the replacement command carrying the update. The
// result is outbound: it is the local party's contribution to the
// conversation and is due to be transmitted to the counterpart.
func (c *PaymentCommand) NewVersion(u PaymentUpdate) *PaymentCommand {
	p := *c.Payment
	if c.Payment.Sender.KYCData != nil {
		kyc := *c.Payment.Sender.KYCData
		p.Sender.KYCData = &kyc
	}
	if c.Payment.Receiver.KYCData != nil {
		kyc := *c.Payment.Receiver.KYCData
		p.Receiver.KYCData = &kyc
	}
	next := &PaymentCommand{MyAddress: c.MyAddress, Inbound: false, Payment: &p}

	if u.Status != "" {
		p.Status = u.Status
	}
	if u.AbortCode != "" {
		p.AbortCode = u.AbortCode
	}
	if u.AbortMessage != "" {
		p.AbortMessage = u.AbortMessage
	}
	if u.RecipientSignature != "" {
		p.RecipientSignature = u.RecipientSignature
	}
	if u.KYCData != nil {
		next.MyActor().KYCData = u.KYCData
	}
	if u.AdditionalKYCData != "" {
		next.MyActor().AdditionalKYCData = u.AdditionalKYCData
	}
	return next
}

// Validate accepts or rejects this version as a successor of prior.
func (c *PaymentCommand) Validate(prior Command) error {
	refID := c.ReferenceID()
	if prior == nil {
		return structuralCheck(protocol.CommandTypePayment, c.Payment, refID)
	}
	pc, ok := prior.(*PaymentCommand)
	if !ok {
		return protocol.NewCommandError(protocol.ErrorCodeInvalidTransition, refID,
			"command type changed from %s to %s", prior.CommandType(), c.CommandType())
	}

	// Write-once fields.
	switch {
	case c.Payment.ReferenceID != pc.Payment.ReferenceID:
		return invalidWriteOnce(refID, "payment.reference_id")
	case c.Payment.Sender.Address != pc.Payment.Sender.Address:
		return invalidWriteOnce(refID, "payment.sender.address")
	case c.Payment.Receiver.Address != pc.Payment.Receiver.Address:
		return invalidWriteOnce(refID, "payment.receiver.address")
	case c.Payment.Action != pc.Payment.Action:
		return invalidWriteOnce(refID, "payment.action")
	case c.Payment.OriginalPaymentReferenceID != pc.Payment.OriginalPaymentReferenceID:
		return invalidWriteOnce(refID, "payment.original_payment_reference_id")
	}

	if !statusReachable(paymentTransitions[pc.Payment.Status], c.Payment.Status) {
		return protocol.NewCommandError(protocol.ErrorCodeInvalidTransition, refID,
			"payment status %q is not reachable from %q", c.Payment.Status, pc.Payment.Status).
			FieldError("payment.status")
	}

	return c.validateRequiredFields()
}

func (c *PaymentCommand) validateRequiredFields() error {
	refID := c.ReferenceID()
	switch c.Payment.Status {
	case protocol.PaymentStatusReadyForSettlement:
		if c.Payment.Sender.KYCData == nil {
			return missingField(refID, "payment.sender.kyc_data")
		}
		if c.Payment.Receiver.KYCData == nil {
			return missingField(refID, "payment.receiver.kyc_data")
		}
		if c.Payment.RecipientSignature == "" {
			return missingField(refID, "payment.recipient_signature")
		}
	case protocol.PaymentStatusAbort:
		if c.Payment.AbortCode == "" {
			return missingField(refID, "payment.abort_code")
		}
	}
	return nil
}

// FollowUpAction resolves the local party's next deferred action from
// the conversation status and the local role. Unmapped combinations
// resolve to none, which is a valid terminal outcome.
func (c *PaymentCommand) FollowUpAction() (Action, bool) {
	switch c.Payment.Status {
	case protocol.PaymentStatusNone:
		if c.IsReceiver() {
			return ActionEvaluateKYCData, true
		}
	case protocol.PaymentStatusSoftMatch:
		if c.IsSender() && c.Payment.Sender.AdditionalKYCData == "" {
			return ActionClearSoftMatch, true
		}
		if c.IsReceiver() && c.Payment.Sender.AdditionalKYCData != "" {
			return ActionReviewKYCData, true
		}
	case protocol.PaymentStatusReadyForSettlement:
		if c.IsSender() {
			return ActionSubmitTxn, true
		}
	}
	return "", false
}

func statusReachable[S comparable](allowed []S, next S) bool {
	for _, s := range allowed {
		if s == next {
			return true
		}
	}
	return false
}

func invalidWriteOnce(refID, field string) error {
	return protocol.NewCommandError(protocol.ErrorCodeInvalidTransition, refID,
		"write-once field %s differs from the prior version", field).FieldError(field)
}

func missingField(refID, field string) error {
	return protocol.NewCommandError(protocol.ErrorCodeMissingField, refID,
		"field %s is required by the new status", field).FieldError(field)
}
