// Package jws signs and verifies the envelopes carrying command
// requests and acknowledgements between counterparties. Envelopes are
// compact JWS strings signed with the party's Ed25519 compliance key.
package jws

import (
	"crypto/ed25519"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trustrail/trustrail/pkg/protocol"
)

// requestClaims embeds the request object directly in the JWS payload.
type requestClaims struct {
	jwt.RegisteredClaims
	protocol.CommandRequestObject
}

// responseClaims embeds the acknowledgement in the JWS payload.
type responseClaims struct {
	jwt.RegisteredClaims
	protocol.CommandResponseObject
}

var validMethods = jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()})

// SignRequest serializes a command request into a signed envelope.
func SignRequest(req *protocol.CommandRequestObject, key ed25519.PrivateKey) ([]byte, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, &requestClaims{CommandRequestObject: *req})
	signed, err := token.SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("sign command request: %w", err)
	}
	return []byte(signed), nil
}

// VerifyRequest checks a signed envelope against the counterpart's
// compliance public key and returns the embedded request object.
func VerifyRequest(raw []byte, pub ed25519.PublicKey) (*protocol.CommandRequestObject, error) {
	claims := &requestClaims{}
	if err := parse(raw, claims, pub); err != nil {
		return nil, err
	}
	if claims.ObjectType != protocol.ObjectTypeCommandRequest {
		return nil, protocol.NewProtocolError(protocol.ErrorCodeInvalidObject,
			"envelope payload is %q, want %q", claims.ObjectType, protocol.ObjectTypeCommandRequest)
	}
	req := claims.CommandRequestObject
	return &req, nil
}

// SignResponse serializes an acknowledgement into a signed envelope.
func SignResponse(resp *protocol.CommandResponseObject, key ed25519.PrivateKey) ([]byte, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, &responseClaims{CommandResponseObject: *resp})
	signed, err := token.SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("sign command response: %w", err)
	}
	return []byte(signed), nil
}

// VerifyResponse checks a signed acknowledgement envelope.
func VerifyResponse(raw []byte, pub ed25519.PublicKey) (*protocol.CommandResponseObject, error) {
	claims := &responseClaims{}
	if err := parse(raw, claims, pub); err != nil {
		return nil, err
	}
	if claims.ObjectType != protocol.ObjectTypeCommandResponse {
		return nil, protocol.NewProtocolError(protocol.ErrorCodeInvalidObject,
			"envelope payload is %q, want %q", claims.ObjectType, protocol.ObjectTypeCommandResponse)
	}
	resp := claims.CommandResponseObject
	return &resp, nil
}

func parse(raw []byte, claims jwt.Claims, pub ed25519.PublicKey) error {
	_, err := jwt.ParseWithClaims(string(raw), claims, func(*jwt.Token) (any, error) {
		return pub, nil
	}, validMethods)
	if err != nil {
		return protocol.NewProtocolError(protocol.ErrorCodeInvalidJWS,
			"envelope verification failed: %v", err)
	}
	return nil
}
