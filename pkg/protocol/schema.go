package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Structural schemas for first-version commands. Transition validation
// against a prior version is the command layer's job; these only reject
// payloads that are malformed regardless of history.
var schemaSources = map[CommandType]string{
	CommandTypePayment: `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"required": ["reference_id", "sender", "receiver", "action", "status"],
		"properties": {
			"reference_id": {"type": "string", "minLength": 1},
			"sender": {"$ref": "#/$defs/actor"},
			"receiver": {"$ref": "#/$defs/actor"},
			"action": {
				"type": "object",
				"required": ["amount", "currency", "action"],
				"properties": {
					"amount": {"type": "integer", "minimum": 1},
					"currency": {"type": "string", "minLength": 1},
					"action": {"const": "charge"}
				}
			},
			"status": {"enum": ["none", "soft_match", "ready_for_settlement", "abort"]}
		},
		"$defs": {
			"actor": {
				"type": "object",
				"required": ["address"],
				"properties": {
					"address": {"type": "string", "minLength": 1}
				}
			}
		}
	}`,
	CommandTypeFundPullPreApproval: `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"required": ["address", "biller_address", "funds_pull_pre_approval_id", "scope", "status"],
		"properties": {
			"address": {"type": "string", "minLength": 1},
			"biller_address": {"type": "string", "minLength": 1},
			"funds_pull_pre_approval_id": {"type": "string", "minLength": 1},
			"scope": {
				"type": "object",
				"required": ["type", "expiration_timestamp"],
				"properties": {
					"type": {"const": "consent"},
					"expiration_timestamp": {"type": "integer", "minimum": 0},
					"max_cumulative_amount": {
						"type": "object",
						"required": ["unit", "value", "max_amount"],
						"properties": {
							"unit": {"enum": ["day", "week", "month", "year"]},
							"value": {"type": "integer", "minimum": 1}
						}
					}
				}
			},
			"status": {"enum": ["pending", "valid", "rejected", "closed"]}
		}
	}`,
}

var (
	schemaOnce     sync.Once
	compiledSchema map[CommandType]*jsonschema.Schema
	schemaErr      error
)

func compileSchemas() {
	compiledSchema = make(map[CommandType]*jsonschema.Schema, len(schemaSources))
	for ct, src := range schemaSources {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("mem://schemas/%s.json", ct)
		if err := c.AddResource(url, bytes.NewReader([]byte(src))); err != nil {
			schemaErr = fmt.Errorf("add schema %s: %w", ct, err)
			return
		}
		s, err := c.Compile(url)
		if err != nil {
			schemaErr = fmt.Errorf("compile schema %s: %w", ct, err)
			return
		}
		compiledSchema[ct] = s
	}
}

// ValidateStructure checks a raw command payload against the structural
// schema for its type. Failures map to invalid_object command errors.
func ValidateStructure(ct CommandType, raw json.RawMessage) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	s, ok := compiledSchema[ct]
	if !ok {
		return NewProtocolError(ErrorCodeInvalidObject, "unknown command type: %s", ct)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return NewProtocolError(ErrorCodeInvalidObject, "command payload is not valid JSON: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		return NewCommandError(ErrorCodeInvalidObject, "", "command payload failed structural validation: %v", err)
	}
	return nil
}
