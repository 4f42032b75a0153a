package wallet

import "github.com/trustrail/trustrail/pkg/command"

// ActionResult tags the outcome of a dispatched business action. The
// values double as observability hooks for tests asserting which path a
// negotiation took.
type ActionResult string

const (
	ActionResultPass                  ActionResult = "pass"
	ActionResultReject                ActionResult = "reject"
	ActionResultSoftMatch             ActionResult = "soft_match"
	ActionResultSentAdditionalKYCData ActionResult = "sent_additional_kyc_data"
	ActionResultTxnExecuted           ActionResult = "transaction_executed"
	ActionResultSendRequestSuccess    ActionResult = "send_request_success"
)

// Merge combines two results. A trailing send-request acknowledgement
// carries no information, so it is dropped; anything else concatenates.
func (r ActionResult) Merge(other ActionResult) ActionResult {
	if other == ActionResultSendRequestSuccess {
		return r
	}
	return r + ", " + other
}

// BgResult is what one drain step produced: the action that ran (empty
// for a plain send-request task) and its result.
type BgResult struct {
	Action command.Action
	Result ActionResult
}
