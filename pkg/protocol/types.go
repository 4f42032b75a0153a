// Package protocol defines the wire objects exchanged between two
// counterparties during an off-chain compliance negotiation, together
// with the structured error taxonomy shared by every layer above it.
package protocol

import "encoding/json"

// CommandType identifies the command variant carried by a request.
type CommandType string

const (
	CommandTypePayment             CommandType = "PaymentCommand"
	CommandTypeFundPullPreApproval CommandType = "FundPullPreApprovalCommand"
)

// Wire object type discriminators.
const (
	ObjectTypeCommandRequest  = "CommandRequestObject"
	ObjectTypeCommandResponse = "CommandResponseObject"
)

// CommandRequestObject is the top-level payload of a signed request envelope.
// Command holds the variant payload and is decoded according to CommandType.
type CommandRequestObject struct {
	ObjectType  string          `json:"_ObjectType"`
	CID         string          `json:"cid"`
	CommandType CommandType     `json:"command_type"`
	Command     json.RawMessage `json:"command"`
}

// ResponseStatus is the acknowledgement outcome.
type ResponseStatus string

const (
	ResponseStatusSuccess ResponseStatus = "success"
	ResponseStatusFailure ResponseStatus = "failure"
)

// CommandResponseObject is the payload of a signed acknowledgement envelope.
type CommandResponseObject struct {
	ObjectType string               `json:"_ObjectType"`
	Status     ResponseStatus       `json:"status"`
	Error      *OffChainErrorObject `json:"error,omitempty"`
	CID        string               `json:"cid,omitempty"`
}

// NewSuccessResponse builds the acknowledgement for an accepted request.
func NewSuccessResponse(cid string) *CommandResponseObject {
	return &CommandResponseObject{
		ObjectType: ObjectTypeCommandResponse,
		Status:     ResponseStatusSuccess,
		CID:        cid,
	}
}

// NewFailureResponse builds the acknowledgement for a rejected request.
// cid may be empty when the envelope could not be decoded far enough to
// learn the conversation it belongs to.
func NewFailureResponse(cid string, obj *OffChainErrorObject) *CommandResponseObject {
	return &CommandResponseObject{
		ObjectType: ObjectTypeCommandResponse,
		Status:     ResponseStatusFailure,
		Error:      obj,
		CID:        cid,
	}
}
