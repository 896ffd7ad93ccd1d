// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package tool provides the tool registry, argument schemas, and the
// dispatcher that runs tools on behalf of an authenticated caller.
package tool

import (
	"context"
	"encoding/json"

	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/access"
)

// Handler runs a tool. Returned errors are rendered by ErrorResult.
type Handler func(ctx context.Context, call *Call) (*Result, error)

// Grant is the engine permission a caller needs to run a tool.
type Grant struct {
	Action   string
	Resource string
}

// String returns the grant as resource:action.
func (g Grant) String() string {
	return g.Resource + ":" + g.Action
}

// Tool describes a registered tool.
type Tool struct {
	Name        string
	Description string
	// Input is a zero value of the argument struct. Its JSON Schema is
	// reflected at registration. Nil means the tool takes no arguments.
	Input   any
	Grant   *Grant // optional; checked against the caller before Handler runs
	Handler Handler
}

// Call is one invocation of a tool.
type Call struct {
	Tool   string
	Caller access.Caller
	Args   json.RawMessage
}

// Bind decodes the call arguments into v. Arguments have already passed
// schema validation when a handler sees them.
func (c *Call) Bind(v any) error {
	if len(c.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Args, v); err != nil {
		return oops.Code(CodeInvalidArgs).With("tool", c.Tool).Wrapf(err, "invalid arguments")
	}
	return nil
}

// Content is a single content block of a result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is what a tool returns to the agent.
type Result struct {
	Content   []Content `json:"content"`
	IsError   bool      `json:"isError,omitempty"`
	Category  Category  `json:"category,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
}

// Text builds a successful result with one text block per line.
func Text(lines ...string) *Result {
	r := &Result{Content: make([]Content, 0, len(lines))}
	for _, l := range lines {
		r.Content = append(r.Content, Content{Type: "text", Text: l})
	}
	return r
}

// Texts returns the text of every content block.
func (r *Result) Texts() []string {
	out := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		out = append(out, c.Text)
	}
	return out
}
