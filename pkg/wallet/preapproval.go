package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/trustrail/trustrail/pkg/command"
	"github.com/trustrail/trustrail/pkg/protocol"
)

// RequestFundsPullPreApproval opens a consent conversation: the local
// biller asks the payer behind payerAccountID to pre-authorize pulls
// within scope. Returns the consent id, which keys the conversation.
func (w *Wallet) RequestFundsPullPreApproval(ctx context.Context, billerUserName, payerAccountID string, scope protocol.FundPullPreApprovalScopeObject, description string) (string, error) {
	billerID, err := w.GenUserAccountID(billerUserName)
	if err != nil {
		return "", err
	}
	cmd := &command.FundsPullPreApprovalCommand{
		MyAddress: billerID,
		Inbound:   false,
		FundPullPreApproval: &protocol.FundPullPreApprovalObject{
			Address:                payerAccountID,
			BillerAddress:          billerID,
			FundsPullPreApprovalID: uuid.NewString(),
			Scope:                  scope,
			Status:                 protocol.FundPullPreApprovalStatusPending,
			Description:            description,
		},
	}
	if err := w.SaveCommand(ctx, cmd); err != nil {
		return "", err
	}
	return cmd.ReferenceID(), nil
}

// RespondToFundsPullPreApproval records the local decision on a consent:
// approve (valid), decline (rejected) or revoke (closed).
func (w *Wallet) RespondToFundsPullPreApproval(ctx context.Context, referenceID string, status protocol.FundPullPreApprovalStatus) error {
	cmd, ok, err := w.cmdStore.Get(ctx, referenceID)
	if err != nil {
		return err
	}
	if !ok {
		return protocol.NewCommandError(protocol.ErrorCodeNotFound, referenceID,
			"no consent conversation with this id")
	}
	fc, ok := cmd.(*command.FundsPullPreApprovalCommand)
	if !ok {
		return protocol.NewCommandError(protocol.ErrorCodeInvalidObject, referenceID,
			"conversation is not a funds-pull pre-approval")
	}
	return w.SaveCommand(ctx, fc.NewVersion(status))
}
