// Package policy evaluates chat uploads against a rego policy.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values produced by the policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is what the policy sees for a single /chat request.
type Input struct {
	HasFile      bool   `json:"has_file"`
	ContentType  string `json:"content_type"`
	FileSize     int64  `json:"file_size"`
	Filename     string `json:"filename"`
	QueryLength  int    `json:"query_length"`
	MaxFileBytes int64  `json:"max_file_bytes"`
}

// Result is the policy outcome.
type Result struct {
	Decision string
	Reason   string
}

// Blocked reports whether the request must be refused.
func (r Result) Blocked() bool {
	return r.Decision == DecisionBlock
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
// The module must define data.upload_policy.result as {decision, reason}.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.upload_policy.result"),
		rego.Module("upload_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks an upload against the policy. An undefined result allows.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Result, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(toMap(input)))
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Result{Decision: DecisionAllow, Reason: "default"}, nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return Result{Decision: val}, nil
	case map[string]interface{}:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		if decision == "" {
			decision = DecisionAllow
		}
		return Result{Decision: decision, Reason: reason}, nil
	default:
		return Result{}, fmt.Errorf("unexpected policy result type %T", val)
	}
}

// LoadModule reads a rego module from path. An empty path yields DefaultPolicy.
func LoadModule(path string) (string, error) {
	if path == "" {
		return DefaultPolicy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read policy file: %w", err)
	}
	return string(data), nil
}

func toMap(in Input) map[string]interface{} {
	return map[string]interface{}{
		"has_file":       in.HasFile,
		"content_type":   in.ContentType,
		"file_size":      in.FileSize,
		"filename":       in.Filename,
		"query_length":   in.QueryLength,
		"max_file_bytes": in.MaxFileBytes,
	}
}

// DefaultPolicy only admits image attachments within max_file_bytes.
// Content types compare case-insensitively.
const DefaultPolicy = `
package upload_policy

import rego.v1

default result := {"decision": "allow", "reason": ""}

result := {"decision": "block", "reason": "only image attachments are supported"} if {
	input.has_file
	not startswith(lower(input.content_type), "image/")
} else := {"decision": "block", "reason": sprintf("attachment exceeds %d bytes", [input.max_file_bytes])} if {
	input.has_file
	input.max_file_bytes > 0
	input.file_size > input.max_file_bytes
}
`
