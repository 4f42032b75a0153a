package command_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/trustrail/trustrail/pkg/command"
	"github.com/trustrail/trustrail/pkg/protocol"
)

func genPaymentStatus() gopter.Gen {
	return gen.OneConstOf(
		protocol.PaymentStatusNone,
		protocol.PaymentStatusSoftMatch,
		protocol.PaymentStatusReadyForSettlement,
		protocol.PaymentStatusAbort,
	)
}

// The resolver must answer for every combination of status, role and
// additional KYC data, and only ever name a known action.
func TestPaymentCommand_ResolverTotality(t *testing.T) {
	known := map[command.Action]bool{
		command.ActionEvaluateKYCData: true,
		command.ActionClearSoftMatch:  true,
		command.ActionReviewKYCData:   true,
		command.ActionSubmitTxn:       true,
	}

	properties := gopter.NewProperties(nil)
	properties.Property("resolves every input", prop.ForAll(
		func(status protocol.PaymentStatus, receiver bool, additional string) bool {
			c := newPaymentForProp()
			c.Payment.Status = status
			c.Payment.Sender.AdditionalKYCData = additional
			if receiver {
				c.MyAddress = receiverID
			}

			action, ok := c.FollowUpAction()
			if ok {
				return known[action]
			}
			return action == ""
		},
		genPaymentStatus(), gen.Bool(), gen.AlphaString(),
	))
	properties.TestingRun(t)
}

// Terminal statuses admit no successor version with a changed status.
func TestPaymentCommand_TerminalStatusesAreFinal(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("no edge leaves a terminal status", prop.ForAll(
		func(from, to protocol.PaymentStatus) bool {
			if !from.Terminal() {
				return true
			}
			prior := newPaymentForProp()
			prior.Payment.Status = from

			next := prior.NewVersion(command.PaymentUpdate{
				Status:             to,
				AbortCode:          protocol.AbortCodeRejectKYCData,
				RecipientSignature: "aa",
				KYCData:            protocol.NewIndividualKYCData("alice", "smith", nil),
			})
			next.Payment.Receiver.KYCData = protocol.NewIndividualKYCData("bob", "jones", nil)
			return next.Validate(prior) != nil
		},
		genPaymentStatus(), genPaymentStatus(),
	))
	properties.TestingRun(t)
}

// The amount is write-once: no successor may change it, whatever the
// statuses involved.
func TestPaymentCommand_AmountIsWriteOnce(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("changed amount is always rejected", prop.ForAll(
		func(from, to protocol.PaymentStatus, delta uint32) bool {
			prior := newPaymentForProp()
			prior.Payment.Status = from

			next := prior.NewVersion(command.PaymentUpdate{Status: to})
			next.Payment.Action.Amount += uint64(delta) + 1
			return next.Validate(prior) != nil
		},
		genPaymentStatus(), genPaymentStatus(), gen.UInt32(),
	))
	properties.TestingRun(t)
}

func newPaymentForProp() *command.PaymentCommand {
	return command.NewPaymentCommand(
		"ref-prop",
		senderID,
		protocol.NewIndividualKYCData("alice", "smith", nil),
		receiverID,
		1000,
		"XUS",
		1700000000,
	)
}
