// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package story

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/store"
)

// CodeMalformedState marks a story payload that cannot be applied.
const CodeMalformedState = "STORY_STATE_MALFORMED"

// Payload keys. The rest of the object is ignored.
const (
	keyMemory        = "memory"
	keyInventory     = "inventory"
	keyCurrentQuest  = "currentQuest"
	keySchemaVersion = "schemaVersion"
)

func errMalformed(reason string, args ...any) error {
	return oops.Code(CodeMalformedState).Errorf("invalid game state: "+reason, args...)
}

// ParsePayload turns a serialized state object into a patch.
//
// Each present key replaces its field, an explicit null clears it, and an
// omitted key leaves it unchanged. The optional schemaVersion must be a
// semver string and, when constraint is non-nil, must satisfy it.
func ParsePayload(raw string, constraint *semver.Constraints) (store.StoryPatch, error) {
	var patch store.StoryPatch

	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return patch, errMalformed("payload must be a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return patch, oops.Code(CodeMalformedState).Wrapf(err, "invalid game state")
	}

	for _, key := range []string{keyMemory, keyInventory, keyCurrentQuest} {
		if v, ok := fields[key]; ok && containsNUL(v) {
			return patch, oops.Code(CodeMalformedState).
				With("field", key).
				Errorf("invalid game state: %s contains a NUL character", key)
		}
	}

	if v, ok := fields[keyMemory]; ok {
		patch.Memory = store.Present(v)
	}
	if v, ok := fields[keyInventory]; ok {
		patch.Inventory = store.Present(v)
	}
	if v, ok := fields[keyCurrentQuest]; ok {
		patch.CurrentQuest = store.Present(v)
	}

	if v, ok := fields[keySchemaVersion]; ok && !isNull(v) {
		version, err := parseSchemaVersion(v, constraint)
		if err != nil {
			return patch, err
		}
		patch.SchemaVersion = &version
	}

	return patch, nil
}

func parseSchemaVersion(v json.RawMessage, constraint *semver.Constraints) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", errMalformed("schemaVersion must be a string")
	}
	version, err := semver.StrictNewVersion(s)
	if err != nil {
		return "", oops.Code(CodeMalformedState).
			With("schema_version", s).
			Wrapf(err, "invalid game state: schemaVersion %q", s)
	}
	if constraint != nil && !constraint.Check(version) {
		return "", oops.Code(CodeMalformedState).
			With("schema_version", s).
			With("constraint", constraint.String()).
			Errorf("invalid game state: schemaVersion %s does not satisfy %s", s, constraint)
	}
	return version.String(), nil
}

// containsNUL reports whether any string or object key in v decodes to a
// value holding U+0000, which jsonb columns reject.
func containsNUL(v json.RawMessage) bool {
	if !bytes.Contains(v, []byte(`\u`)) {
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(v))
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		if s, ok := tok.(string); ok && strings.ContainsRune(s, 0) {
			return true
		}
	}
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
