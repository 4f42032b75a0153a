package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/trustrail/trustrail/pkg/command"
	"github.com/trustrail/trustrail/pkg/ledger"
	"github.com/trustrail/trustrail/pkg/policy"
	"github.com/trustrail/trustrail/pkg/protocol"
)

// runBusinessAction executes the resolved follow-up for a conversation.
// The stored command is snapshotted once at the start; a version saved
// concurrently after the snapshot surfaces as a conflict on the write
// back, never as a silently merged state.
func (w *Wallet) runBusinessAction(ctx context.Context, referenceID string) (*BgResult, error) {
	cmd, ok, err := w.cmdStore.Get(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, protocol.NewCommandError(protocol.ErrorCodeNotFound, referenceID,
			"no stored command for queued follow-up")
	}

	action, ok := cmd.FollowUpAction()
	if !ok {
		// Resolution changed since the task was queued; nothing to do.
		return nil, nil
	}
	pc, ok := cmd.(*command.PaymentCommand)
	if !ok {
		return nil, fmt.Errorf("follow-up action %s resolved for non-payment command %s", action, referenceID)
	}

	if action == command.ActionSubmitTxn {
		result, err := w.submitTravelRuleTxn(ctx, pc)
		if err != nil {
			return nil, err
		}
		return &BgResult{Action: action, Result: result}, nil
	}

	var (
		result ActionResult
		next   *command.PaymentCommand
	)
	switch action {
	case command.ActionEvaluateKYCData:
		result, next, err = w.evaluateKYCData(pc)
	case command.ActionClearSoftMatch:
		result, next, err = w.sendAdditionalKYCData(pc)
	case command.ActionReviewKYCData:
		result, next, err = w.manualReview(pc)
	default:
		return nil, fmt.Errorf("no handler for action %q", action)
	}
	if err != nil {
		return nil, err
	}
	if err := w.SaveCommand(ctx, next); err != nil {
		return nil, err
	}
	return &BgResult{Action: action, Result: result}, nil
}

// evaluateKYCData runs the compliance verdict over the counterpart's
// declared KYC data. A soft match defers the pass/reject decision; any
// other verdict resolves through the shared terminal rule.
func (w *Wallet) evaluateKYCData(pc *command.PaymentCommand) (ActionResult, *command.PaymentCommand, error) {
	opKYC := pc.OpponentActor().KYCData
	if opKYC == nil {
		return ActionResultReject, pc.NewVersion(command.PaymentUpdate{
			Status:       protocol.PaymentStatusAbort,
			AbortCode:    protocol.AbortCodeNoKYCData,
			AbortMessage: "counterpart declared no kyc data",
		}), nil
	}

	verdict, err := w.evaluationVerdict(opKYC)
	if err != nil {
		return "", nil, err
	}
	if verdict == policy.VerdictSoftMatch {
		return ActionResultSoftMatch, pc.NewVersion(command.PaymentUpdate{
			Status: protocol.PaymentStatusSoftMatch,
		}), nil
	}
	return w.kycDataResult("evaluate kyc data", verdict, pc)
}

// manualReview decides a conversation whose soft match was cleared with
// additional KYC data.
func (w *Wallet) manualReview(pc *command.PaymentCommand) (ActionResult, *command.PaymentCommand, error) {
	opKYC := pc.OpponentActor().KYCData
	verdict := policy.VerdictPass
	if opKYC != nil {
		w.mu.Lock()
		if v, ok := w.manualReviewResult[opKYC.GivenName]; ok {
			verdict = v
		}
		w.mu.Unlock()
	}
	return w.kycDataResult("review", verdict, pc)
}

// evaluationVerdict checks the configured table first, then the CEL rule.
func (w *Wallet) evaluationVerdict(kyc *protocol.KYCDataObject) (policy.Verdict, error) {
	w.mu.Lock()
	v, ok := w.evaluateKYCDataResult[kyc.GivenName]
	w.mu.Unlock()
	if ok {
		return v, nil
	}
	return w.kycPolicy.Evaluate(kyc)
}

// kycDataResult is the shared terminal-resolution rule. On pass the
// receiver attaches its KYC data and recipient signature on the way to
// ready_for_settlement; the sender moves there directly. Any other
// verdict aborts with a KYC rejection code.
func (w *Wallet) kycDataResult(action string, verdict policy.Verdict, pc *command.PaymentCommand) (ActionResult, *command.PaymentCommand, error) {
	if verdict == policy.VerdictPass {
		if pc.IsReceiver() {
			next, err := w.sendKYCDataAndRecipientSignature(pc)
			return ActionResultPass, next, err
		}
		return ActionResultPass, pc.NewVersion(command.PaymentUpdate{
			Status: protocol.PaymentStatusReadyForSettlement,
		}), nil
	}
	return ActionResultReject, pc.NewVersion(command.PaymentUpdate{
		Status:       protocol.PaymentStatusAbort,
		AbortCode:    protocol.AbortCodeRejectKYCData,
		AbortMessage: fmt.Sprintf("%s: %s", action, verdict),
	}), nil
}

// sendKYCDataAndRecipientSignature builds the receiver's accepting
// version: local user's KYC data plus the compliance signature over the
// travel-rule metadata.
func (w *Wallet) sendKYCDataAndRecipientSignature(pc *command.PaymentCommand) (*command.PaymentCommand, error) {
	metadata, err := pc.TravelRuleMetadataBytes(w.hrp)
	if err != nil {
		return nil, err
	}
	signature := ed25519.Sign(w.complianceKey, ledger.MetadataDigest(metadata))

	subaddress, err := pc.ReceiverSubaddress(w.hrp)
	if err != nil {
		return nil, err
	}
	user, err := w.findUserBySubaddress(subaddress)
	if err != nil {
		return nil, err
	}

	return pc.NewVersion(command.PaymentUpdate{
		Status:             protocol.PaymentStatusReadyForSettlement,
		RecipientSignature: hex.EncodeToString(signature),
		KYCData:            user.KYCData(),
	}), nil
}

// sendAdditionalKYCData clears a soft match by attaching the local
// user's secondary verification string; the status stays unchanged.
func (w *Wallet) sendAdditionalKYCData(pc *command.PaymentCommand) (ActionResult, *command.PaymentCommand, error) {
	subaddress, err := pc.MyActorSubaddress(w.hrp)
	if err != nil {
		return "", nil, err
	}
	user, err := w.findUserBySubaddress(subaddress)
	if err != nil {
		return "", nil, err
	}
	return ActionResultSentAdditionalKYCData, pc.NewVersion(command.PaymentUpdate{
		AdditionalKYCData: user.AdditionalKYCData(),
	}), nil
}

// submitTravelRuleTxn settles a ready conversation on the ledger. This
// is a one-way side effect: a failure is surfaced to the operator and
// never silently retried, since a blind retry risks double-submission.
func (w *Wallet) submitTravelRuleTxn(ctx context.Context, pc *command.PaymentCommand) (ActionResult, error) {
	senderAddress, err := pc.SenderAccountAddress(w.hrp)
	if err != nil {
		return "", err
	}
	child, err := w.findChildAccount(senderAddress)
	if err != nil {
		return "", err
	}
	metadata, err := pc.TravelRuleMetadataBytes(w.hrp)
	if err != nil {
		return "", err
	}
	signature, err := hex.DecodeString(pc.Payment.RecipientSignature)
	if err != nil {
		return "", protocol.NewCommandError(protocol.ErrorCodeInvalidFieldValue, pc.ReferenceID(),
			"recipient signature is not valid hex: %v", err).FieldError("payment.recipient_signature")
	}

	confirmation, err := w.ledgerClient.SubmitTransfer(ctx, ledger.Transfer{
		Source:            child,
		Destination:       pc.Payment.Receiver.Address,
		Amount:            pc.Payment.Action.Amount,
		Currency:          pc.Payment.Action.Currency,
		Metadata:          metadata,
		MetadataSignature: signature,
	})
	if err != nil {
		return "", protocol.NewCommandError(protocol.ErrorCodeLedgerSubmissionFailed, pc.ReferenceID(),
			"settlement transaction rejected: %v", err)
	}
	w.logger.Info("settlement executed",
		"reference_id", pc.ReferenceID(),
		"amount", pc.Payment.Action.Amount,
		"currency", pc.Payment.Action.Currency,
		"version", confirmation.Version,
	)
	return ActionResultTxnExecuted, nil
}
