package protocol

// PaymentStatus is the negotiation state of a payment conversation.
type PaymentStatus string

const (
	// PaymentStatusNone means no compliance decision has been made yet.
	PaymentStatusNone PaymentStatus = "none"
	// PaymentStatusSoftMatch means KYC name matching was ambiguous and
	// additional data is required before accept/reject can be decided.
	PaymentStatusSoftMatch PaymentStatus = "soft_match"
	// PaymentStatusReadyForSettlement means both sides exchanged KYC data
	// and the recipient signature is attached; the sender may settle.
	PaymentStatusReadyForSettlement PaymentStatus = "ready_for_settlement"
	// PaymentStatusAbort terminates the conversation without settlement.
	PaymentStatusAbort PaymentStatus = "abort"
)

// Terminal reports whether no further status transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusReadyForSettlement || s == PaymentStatusAbort
}

// AbortCode identifies why a payment negotiation was aborted.
type AbortCode string

const (
	AbortCodeRejectKYCData AbortCode = "reject_kyc_data"
	AbortCodeNoKYCData     AbortCode = "no_kyc_data"
)

// AddressObject is a physical address attached to KYC data.
type AddressObject struct {
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	State      string `json:"state,omitempty"`
}

// KYCDataObject carries the identity attributes one party declares about
// the end user behind its side of a payment.
type KYCDataObject struct {
	Type            string         `json:"type"`
	PayloadVersion  int            `json:"payload_version"`
	GivenName       string         `json:"given_name,omitempty"`
	Surname         string         `json:"surname,omitempty"`
	DOB             string         `json:"dob,omitempty"`
	Address         *AddressObject `json:"address,omitempty"`
	LegalEntityName string         `json:"legal_entity_name,omitempty"`
}

// KYC data object types.
const (
	KYCDataTypeIndividual = "individual"
	KYCDataTypeEntity     = "entity"
)

// NewIndividualKYCData builds a minimal individual KYC data object.
func NewIndividualKYCData(givenName, surname string, address *AddressObject) *KYCDataObject {
	return &KYCDataObject{
		Type:           KYCDataTypeIndividual,
		PayloadVersion: 1,
		GivenName:      givenName,
		Surname:        surname,
		Address:        address,
	}
}

// PaymentActorObject is one side of a payment: the encoded account
// identifier plus whatever KYC material that side has declared so far.
type PaymentActorObject struct {
	Address           string         `json:"address"`
	KYCData           *KYCDataObject `json:"kyc_data,omitempty"`
	AdditionalKYCData string         `json:"additional_kyc_data,omitempty"`
}

// PaymentActionObject is the economic action being negotiated.
type PaymentActionObject struct {
	Amount    uint64 `json:"amount"`
	Currency  string `json:"currency"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

// PaymentActionCharge is the only action type in use.
const PaymentActionCharge = "charge"

// PaymentObject is the payment variant payload. ReferenceID, both actor
// addresses and the action are write-once: fixed at the first version of
// the conversation and invariant thereafter.
type PaymentObject struct {
	ReferenceID                string              `json:"reference_id"`
	Sender                     PaymentActorObject  `json:"sender"`
	Receiver                   PaymentActorObject  `json:"receiver"`
	Action                     PaymentActionObject `json:"action"`
	Status                     PaymentStatus       `json:"status"`
	AbortCode                  AbortCode           `json:"abort_code,omitempty"`
	AbortMessage               string              `json:"abort_message,omitempty"`
	RecipientSignature         string              `json:"recipient_signature,omitempty"`
	OriginalPaymentReferenceID string              `json:"original_payment_reference_id,omitempty"`
	Description                string              `json:"description,omitempty"`
}
