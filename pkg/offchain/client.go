// Package offchain is the transport collaborator: it carries signed
// command envelopes between counterparties over HTTP and turns inbound
// envelopes back into typed commands.
package offchain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/trustrail/trustrail/pkg/command"
	"github.com/trustrail/trustrail/pkg/identifier"
	"github.com/trustrail/trustrail/pkg/jws"
	"github.com/trustrail/trustrail/pkg/ledger"
	"github.com/trustrail/trustrail/pkg/protocol"
)

// Wire constants for the command exchange endpoint.
const (
	CommandPath         = "/v2/command"
	HeaderRequestID     = "X-Request-ID"
	HeaderSenderAddress = "X-Request-Sender-Address"
	ContentType         = "application/jws"
)

// Client exchanges command envelopes with counterparties. Counterpart
// compliance keys and service locations are resolved from the ledger.
type Client struct {
	myAddress     []byte
	hrp           string
	complianceKey ed25519.PrivateKey
	ledger        ledger.Client
	httpClient    *http.Client
}

// NewClient builds a transport client for the local party.
func NewClient(myAddress []byte, hrp string, complianceKey ed25519.PrivateKey, lc ledger.Client) *Client {
	return &Client{
		myAddress:     myAddress,
		hrp:           hrp,
		complianceKey: complianceKey,
		ledger:        lc,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SendCommand signs the command into a request envelope and delivers it
// to the counterpart's off-chain service.
func (c *Client) SendCommand(ctx context.Context, cmd command.Command) error {
	counterpartAddress, err := c.counterpartAddress(cmd)
	if err != nil {
		return err
	}
	info, err := c.ledger.GetAccountInfo(ctx, counterpartAddress)
	if err != nil {
		return fmt.Errorf("resolve counterpart account: %w", err)
	}

	raw, err := c.signedRequest(cmd)
	if err != nil {
		return err
	}

	myID, err := identifier.EncodeAccount(c.hrp, c.myAddress, nil)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, info.BaseURL+CommandPath, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build command request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set(HeaderRequestID, uuid.NewString())
	req.Header.Set(HeaderSenderAddress, myID)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver command request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read command response: %w", err)
	}
	resp, err := jws.VerifyResponse(body, info.CompliancePublicKey)
	if err != nil {
		return err
	}
	if resp.Status != protocol.ResponseStatusSuccess {
		if resp.Error != nil {
			return protocol.NewCommandError(resp.Error.Code, cmd.ReferenceID(),
				"counterpart rejected command: %s", resp.Error.Message)
		}
		return protocol.NewCommandError(protocol.ErrorCodeInvalidObject, cmd.ReferenceID(),
			"counterpart rejected command without detail")
	}
	return nil
}

// signedRequest wraps a command into a signed request envelope.
func (c *Client) signedRequest(cmd command.Command) ([]byte, error) {
	payload, err := command.Payload(cmd)
	if err != nil {
		return nil, err
	}
	return jws.SignRequest(&protocol.CommandRequestObject{
		ObjectType:  protocol.ObjectTypeCommandRequest,
		CID:         uuid.NewString(),
		CommandType: cmd.CommandType(),
		Command:     payload,
	}, c.complianceKey)
}

// DecodeInbound verifies an inbound envelope from senderAddress (an
// encoded account identifier) and builds the local, inbound view of the
// command. The returned cid identifies the request for acknowledgement
// even when decoding fails partway.
func (c *Client) DecodeInbound(ctx context.Context, senderAddress string, raw []byte) (command.Command, string, error) {
	counterpartOnChain, _, err := identifier.DecodeAccount(c.hrp, senderAddress)
	if err != nil {
		return nil, "", protocol.NewProtocolError(protocol.ErrorCodeInvalidObject,
			"decode request sender address: %v", err)
	}
	info, err := c.ledger.GetAccountInfo(ctx, counterpartOnChain)
	if err != nil {
		return nil, "", protocol.NewProtocolError(protocol.ErrorCodeNotFound,
			"unknown request sender: %v", err)
	}

	req, err := jws.VerifyRequest(raw, info.CompliancePublicKey)
	if err != nil {
		return nil, "", err
	}
	if err := protocol.ValidateStructure(req.CommandType, req.Command); err != nil {
		return nil, req.CID, err
	}

	cmd, err := c.inboundCommand(req)
	if err != nil {
		return nil, req.CID, err
	}
	return cmd, req.CID, nil
}

// inboundCommand types the payload and fixes the local actor: the actor
// whose identifier decodes to the local on-chain address is ours.
func (c *Client) inboundCommand(req *protocol.CommandRequestObject) (command.Command, error) {
	cmd, err := command.FromRequestPayload(req.CommandType, req.Command, "", true)
	if err != nil {
		return nil, err
	}
	var candidates []string
	switch v := cmd.(type) {
	case *command.PaymentCommand:
		candidates = []string{v.Payment.Sender.Address, v.Payment.Receiver.Address}
	case *command.FundsPullPreApprovalCommand:
		candidates = []string{v.FundPullPreApproval.Address, v.FundPullPreApproval.BillerAddress}
	}
	myActor, err := c.resolveMyActor(candidates)
	if err != nil {
		return nil, protocol.NewCommandError(protocol.ErrorCodeNotFound, cmd.ReferenceID(),
			"%v", err)
	}
	switch v := cmd.(type) {
	case *command.PaymentCommand:
		v.MyAddress = myActor
	case *command.FundsPullPreApprovalCommand:
		v.MyAddress = myActor
	}
	return cmd, nil
}

func (c *Client) resolveMyActor(candidates []string) (string, error) {
	for _, id := range candidates {
		address, _, err := identifier.DecodeAccount(c.hrp, id)
		if err != nil {
			continue
		}
		if bytes.Equal(address, c.myAddress) {
			return id, nil
		}
	}
	return "", fmt.Errorf("no actor address resolves to a local account")
}

// counterpartAddress decodes the on-chain address of the opponent actor.
func (c *Client) counterpartAddress(cmd command.Command) ([]byte, error) {
	var opponentID string
	switch v := cmd.(type) {
	case *command.PaymentCommand:
		opponentID = v.OpponentActor().Address
	case *command.FundsPullPreApprovalCommand:
		if v.IsBiller() {
			opponentID = v.FundPullPreApproval.Address
		} else {
			opponentID = v.FundPullPreApproval.BillerAddress
		}
	default:
		return nil, fmt.Errorf("unknown command type %T", cmd)
	}
	address, _, err := identifier.DecodeAccount(c.hrp, opponentID)
	if err != nil {
		return nil, fmt.Errorf("decode counterpart address: %w", err)
	}
	return address, nil
}
