package protocol

// FundPullPreApprovalStatus is the state of a recurring-debit consent.
type FundPullPreApprovalStatus string

const (
	// FundPullPreApprovalStatusPending awaits user/VASP approval.
	FundPullPreApprovalStatusPending FundPullPreApprovalStatus = "pending"
	// FundPullPreApprovalStatusValid is approved and ready for use.
	FundPullPreApprovalStatusValid FundPullPreApprovalStatus = "valid"
	// FundPullPreApprovalStatusRejected was declined by the user/VASP.
	FundPullPreApprovalStatusRejected FundPullPreApprovalStatus = "rejected"
	// FundPullPreApprovalStatusClosed was revoked and can no longer be used.
	FundPullPreApprovalStatusClosed FundPullPreApprovalStatus = "closed"
)

// Terminal reports whether no further status transition is allowed.
func (s FundPullPreApprovalStatus) Terminal() bool {
	return s == FundPullPreApprovalStatusRejected || s == FundPullPreApprovalStatusClosed
}

// TimeUnit scopes a cumulative amount limit.
type TimeUnit string

const (
	TimeUnitDay   TimeUnit = "day"
	TimeUnitWeek  TimeUnit = "week"
	TimeUnitMonth TimeUnit = "month"
	TimeUnitYear  TimeUnit = "year"
)

// CurrencyObject is an amount in a named currency.
type CurrencyObject struct {
	Amount   uint64 `json:"amount"`
	Currency string `json:"currency"`
}

// ScopedCumulativeAmountObject caps the total pulled per time window.
type ScopedCumulativeAmountObject struct {
	Unit      TimeUnit       `json:"unit"`
	Value     uint64         `json:"value"`
	MaxAmount CurrencyObject `json:"max_amount"`
}

// FundPullPreApprovalScopeObject bounds what a consent permits.
type FundPullPreApprovalScopeObject struct {
	Type                 string                        `json:"type"`
	ExpirationTimestamp  int64                         `json:"expiration_timestamp"`
	MaxCumulativeAmount  *ScopedCumulativeAmountObject `json:"max_cumulative_amount,omitempty"`
	MaxTransactionAmount *CurrencyObject               `json:"max_transaction_amount,omitempty"`
}

// FundPullPreApprovalScopeConsent is the only scope type in use.
const FundPullPreApprovalScopeConsent = "consent"

// FundPullPreApprovalObject is the pre-approval variant payload.
// Address, BillerAddress and FundsPullPreApprovalID are write-once.
type FundPullPreApprovalObject struct {
	Address                string                         `json:"address"`
	BillerAddress          string                         `json:"biller_address"`
	FundsPullPreApprovalID string                         `json:"funds_pull_pre_approval_id"`
	Scope                  FundPullPreApprovalScopeObject `json:"scope"`
	Status                 FundPullPreApprovalStatus      `json:"status"`
	Description            string                         `json:"description,omitempty"`
}
