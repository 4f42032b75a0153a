// Package policy is the pluggable compliance rule: what counts as a KYC
// match is configuration, not engine logic. Rules are CEL expressions
// evaluated over the counterpart's declared KYC data and must yield one
// of the verdict strings.
package policy

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/trustrail/trustrail/pkg/protocol"
)

// Verdict is the outcome of a KYC evaluation rule.
type Verdict string

const (
	VerdictPass      Verdict = "pass"
	VerdictReject    Verdict = "reject"
	VerdictSoftMatch Verdict = "soft_match"
)

// DefaultExpression accepts everything; it is the verdict when no rule
// is configured.
const DefaultExpression = `"pass"`

// KYCPolicy evaluates a CEL expression over a KYC data object. Programs
// are compiled once and cached per expression.
type KYCPolicy struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
	expr  string
}

// NewKYCPolicy compiles the given rule. The expression sees a single
// variable `kyc`, the counterpart's KYC data as a dynamic map.
func NewKYCPolicy(expr string) (*KYCPolicy, error) {
	if expr == "" {
		expr = DefaultExpression
	}
	env, err := cel.NewEnv(
		cel.Variable("kyc", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	p := &KYCPolicy{env: env, cache: make(map[string]cel.Program), expr: expr}
	if _, err := p.program(expr); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *KYCPolicy) program(expr string) (cel.Program, error) {
	p.mu.RLock()
	prg, hit := p.cache[expr]
	p.mu.RUnlock()
	if hit {
		return prg, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prg, hit = p.cache[expr]; hit {
		return prg, nil
	}
	ast, issues := p.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile KYC rule: %w", issues.Err())
	}
	prg, err := p.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build KYC rule program: %w", err)
	}
	p.cache[expr] = prg
	return prg, nil
}

// Evaluate runs the rule against the counterpart's KYC data.
func (p *KYCPolicy) Evaluate(kyc *protocol.KYCDataObject) (Verdict, error) {
	prg, err := p.program(p.expr)
	if err != nil {
		return "", err
	}

	// CEL sees the wire representation, so rules address fields by their
	// JSON names (kyc.given_name, kyc.address.city, ...).
	data, err := json.Marshal(kyc)
	if err != nil {
		return "", fmt.Errorf("marshal KYC data: %w", err)
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return "", fmt.Errorf("unmarshal KYC data: %w", err)
	}

	out, _, err := prg.Eval(map[string]any{"kyc": input})
	if err != nil {
		return "", fmt.Errorf("evaluate KYC rule: %w", err)
	}
	s, ok := out.Value().(string)
	if !ok {
		return "", fmt.Errorf("KYC rule yielded %T, want a verdict string", out.Value())
	}
	switch v := Verdict(s); v {
	case VerdictPass, VerdictReject, VerdictSoftMatch:
		return v, nil
	default:
		return "", fmt.Errorf("KYC rule yielded unknown verdict %q", s)
	}
}
