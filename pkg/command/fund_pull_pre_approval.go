package command

import (
	"github.com/trustrail/trustrail/pkg/protocol"
)

// preApprovalTransitions maps a prior consent status to the statuses a
// new version may carry. pending→valid is the only non-terminal forward
// edge; rejected and closed are terminal.
var preApprovalTransitions = map[protocol.FundPullPreApprovalStatus][]protocol.FundPullPreApprovalStatus{
	protocol.FundPullPreApprovalStatusPending: {
		protocol.FundPullPreApprovalStatusPending,
		protocol.FundPullPreApprovalStatusValid,
		protocol.FundPullPreApprovalStatusRejected,
		protocol.FundPullPreApprovalStatusClosed,
	},
	protocol.FundPullPreApprovalStatusValid: {
		protocol.FundPullPreApprovalStatusClosed,
	},
	protocol.FundPullPreApprovalStatusRejected: {},
	protocol.FundPullPreApprovalStatusClosed:   {},
}

// FundsPullPreApprovalCommand is one version of a pre-authorized
// recurring-debit consent negotiation.
type FundsPullPreApprovalCommand struct {
	MyAddress           string                              `json:"my_actor_address"`
	Inbound             bool                                `json:"inbound"`
	FundPullPreApproval *protocol.FundPullPreApprovalObject `json:"fund_pull_pre_approval"`
}

func (c *FundsPullPreApprovalCommand) CommandType() protocol.CommandType {
	return protocol.CommandTypeFundPullPreApproval
}

// ReferenceID is the write-once consent id; it keys the conversation.
func (c *FundsPullPreApprovalCommand) ReferenceID() string {
	return c.FundPullPreApproval.FundsPullPreApprovalID
}

func (c *FundsPullPreApprovalCommand) MyActorAddress() string { return c.MyAddress }
func (c *FundsPullPreApprovalCommand) IsInbound() bool        { return c.Inbound }

// IsBiller reports whether the local party is the pulling side.
func (c *FundsPullPreApprovalCommand) IsBiller() bool {
	return c.MyAddress == c.FundPullPreApproval.BillerAddress
}

// IsPayer reports whether the local party is the side granting consent.
func (c *FundsPullPreApprovalCommand) IsPayer() bool {
	return c.MyAddress == c.FundPullPreApproval.Address
}

func (c *FundsPullPreApprovalCommand) Hash() (string, error) { return hashCommand(c) }

// NewVersion returns an outbound replacement carrying a status decision.
func (c *FundsPullPreApprovalCommand) NewVersion(status protocol.FundPullPreApprovalStatus) *FundsPullPreApprovalCommand {
	f := *c.FundPullPreApproval
	f.Status = status
	return &FundsPullPreApprovalCommand{MyAddress: c.MyAddress, Inbound: false, FundPullPreApproval: &f}
}

// Validate accepts or rejects this version as a successor of prior.
func (c *FundsPullPreApprovalCommand) Validate(prior Command) error {
	refID := c.ReferenceID()
	if prior == nil {
		return structuralCheck(protocol.CommandTypeFundPullPreApproval, c.FundPullPreApproval, refID)
	}
	fc, ok := prior.(*FundsPullPreApprovalCommand)
	if !ok {
		return protocol.NewCommandError(protocol.ErrorCodeInvalidTransition, refID,
			"command type changed from %s to %s", prior.CommandType(), c.CommandType())
	}

	switch {
	case c.FundPullPreApproval.Address != fc.FundPullPreApproval.Address:
		return invalidWriteOnce(refID, "fund_pull_pre_approval.address")
	case c.FundPullPreApproval.BillerAddress != fc.FundPullPreApproval.BillerAddress:
		return invalidWriteOnce(refID, "fund_pull_pre_approval.biller_address")
	case c.FundPullPreApproval.FundsPullPreApprovalID != fc.FundPullPreApproval.FundsPullPreApprovalID:
		return invalidWriteOnce(refID, "fund_pull_pre_approval.funds_pull_pre_approval_id")
	}

	if !statusReachable(preApprovalTransitions[fc.FundPullPreApproval.Status], c.FundPullPreApproval.Status) {
		return protocol.NewCommandError(protocol.ErrorCodeInvalidTransition, refID,
			"pre-approval status %q is not reachable from %q",
			c.FundPullPreApproval.Status, fc.FundPullPreApproval.Status).
			FieldError("fund_pull_pre_approval.status")
	}
	return nil
}

// FollowUpAction resolves to none for every consent state: approving,
// rejecting or closing a consent is a user decision taken through the
// wallet surface, not an automatic compliance step.
func (c *FundsPullPreApprovalCommand) FollowUpAction() (Action, bool) {
	return "", false
}
