// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package tool

import (
	"bytes"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// noArgs is the input of tools that take no arguments.
type noArgs struct{}

// Schema reflects the JSON Schema of an argument struct.
func Schema(input any) (json.RawMessage, error) {
	if input == nil {
		input = noArgs{}
	}
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(input)
	s.Version = ""
	s.ID = ""

	data, err := json.Marshal(s)
	if err != nil {
		return nil, oops.Code(CodeInvalidTool).Wrapf(err, "marshal schema")
	}
	return data, nil
}

func compileSchema(name string, input any) (json.RawMessage, *jschema.Schema, error) {
	data, err := Schema(input)
	if err != nil {
		return nil, nil, oops.With("tool", name).Wrap(err)
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, nil, oops.Code(CodeInvalidTool).With("tool", name).Wrapf(err, "parse schema")
	}

	url := "tool://" + name + ".json"
	c := jschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, nil, oops.Code(CodeInvalidTool).With("tool", name).Wrapf(err, "add schema resource")
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, nil, oops.Code(CodeInvalidTool).With("tool", name).Wrapf(err, "compile schema")
	}
	return data, sch, nil
}

// validateArgs checks raw arguments against the tool schema. Empty arguments
// are treated as an empty object.
func validateArgs(name string, sch *jschema.Schema, args json.RawMessage) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	v, err := jschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return oops.Code(CodeInvalidArgs).With("tool", name).Wrapf(err, "arguments are not valid JSON")
	}
	if err := sch.Validate(v); err != nil {
		return oops.Code(CodeInvalidArgs).With("tool", name).Wrapf(err, "invalid arguments")
	}
	return nil
}
