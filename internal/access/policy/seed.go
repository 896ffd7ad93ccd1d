// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package policy

import (
	"context"
	"io"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/zombify/zombify/internal/engine"
)

// SeedFile is the YAML document accepted by `zombify seed`.
//
//	roles:
//	  - role: scavenger
//	    permissions:
//	      - resource: ruins
//	        actions: [search, loot]
type SeedFile struct {
	Roles []Definition `yaml:"roles"`
}

// SeedResult reports what Seed did per role.
type SeedResult struct {
	Created []string
	Skipped []string
}

// ParseSeed decodes a seed document and validates every definition.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, oops.Code("SEED_PARSE_FAILED").Wrap(err)
	}
	for _, def := range f.Roles {
		if err := def.Validate(); err != nil {
			return nil, oops.With("role", def.Role).Wrap(err)
		}
	}
	return &f, nil
}

// Seed creates each role with CreatePolicy. Roles that already exist are
// skipped and left unchanged; any other failure stops the run.
func (a *Administrator) Seed(ctx context.Context, f *SeedFile) (*SeedResult, error) {
	result := &SeedResult{}
	for _, def := range f.Roles {
		err := a.CreatePolicy(ctx, def)
		switch {
		case err == nil:
			a.logger.InfoContext(ctx, "seed role created", "role", def.Role)
			result.Created = append(result.Created, def.Role)
		case engine.IsConflict(err) && isRoleStep(err):
			a.logger.InfoContext(ctx, "seed role already exists, skipping", "role", def.Role)
			result.Skipped = append(result.Skipped, def.Role)
		default:
			return result, oops.With("role", def.Role).Wrap(err)
		}
	}
	return result, nil
}

// isRoleStep reports whether err came from the role creation step.
func isRoleStep(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Context()["operation"] == "create role"
}
