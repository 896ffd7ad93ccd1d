// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package policy administers the policy engine's role graph: creating roles
// with their resources and grants, deleting roles, and assigning roles to
// users within a tenant.
package policy

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/engine"
	"github.com/zombify/zombify/pkg/errutil"
)

// Error codes for administration.
const (
	CodeMalformedPolicy    = "POLICY_MALFORMED"
	CodeCompensationFailed = "POLICY_COMPENSATION_FAILED"
)

// compensationTimeout bounds the rollback of a failed CreatePolicy. It runs
// detached from the caller's cancellation.
const compensationTimeout = 10 * time.Second

// Permission is one resource with the actions a role receives on it.
type Permission struct {
	Resource string   `json:"resource" yaml:"resource"`
	Actions  []string `json:"actions" yaml:"actions"`
}

// Definition describes a role to create.
type Definition struct {
	Role        string       `json:"roleKey" yaml:"role"`
	Permissions []Permission `json:"permissions" yaml:"permissions"`
}

// Validate rejects empty role, resource, or action names.
func (d Definition) Validate() error {
	if d.Role == "" {
		return ErrMalformed("role key is required")
	}
	for i, p := range d.Permissions {
		if p.Resource == "" {
			return ErrMalformed("resource name is required", "index", i)
		}
		if slices.Contains(p.Actions, "") {
			return ErrMalformed("action name is required", "index", i, "resource", p.Resource)
		}
	}
	return nil
}

// ErrMalformed creates an error for an invalid administrative request.
func ErrMalformed(reason string, kv ...any) error {
	return oops.Code(CodeMalformedPolicy).
		With(kv...).
		Errorf("invalid policy: %s", reason)
}

// Administrator runs administrative operations against the engine.
type Administrator struct {
	engine engine.Engine
	logger *slog.Logger
}

// NewAdministrator creates an Administrator. A nil logger uses slog.Default.
func NewAdministrator(e engine.Engine, logger *slog.Logger) *Administrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Administrator{engine: e, logger: logger}
}

// CreatePolicy creates role def.Role and, per permission in order, the
// resource followed by a grant update. Each update sends every grant
// accumulated so far, so the role ends up holding all pairs whether the
// engine merges or replaces.
//
// It is not atomic. When a step fails after the role exists, the resources
// created by this call are deleted in reverse order and then the role. The
// returned error is the failing step's, joined with any rollback failures.
func (a *Administrator) CreatePolicy(ctx context.Context, def Definition) (err error) {
	if err := def.Validate(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { recordAdmin(opCreatePolicy, err, time.Since(start)) }()

	if _, err := a.engine.CreateRole(ctx, engine.RoleSpec{Key: def.Role, Name: def.Role}); err != nil {
		return oops.With("operation", "create role").With("role", def.Role).Wrap(err)
	}

	var (
		created []string
		grants  []string
	)
	for _, p := range def.Permissions {
		spec := engine.ResourceSpec{Key: p.Resource, Name: p.Resource, Actions: engine.ActionsMap(p.Actions)}
		if _, err := a.engine.CreateResource(ctx, spec); err != nil {
			cause := oops.With("operation", "create resource").
				With("role", def.Role).
				With("resource", p.Resource).
				Wrap(err)
			return a.compensate(ctx, def.Role, created, cause)
		}
		created = append(created, p.Resource)

		grants = appendUnique(grants, engine.GrantsFor(p.Resource, p.Actions)...)
		if _, err := a.engine.UpdateRolePermissions(ctx, def.Role, grants); err != nil {
			cause := oops.With("operation", "update role permissions").
				With("role", def.Role).
				With("resource", p.Resource).
				Wrap(err)
			return a.compensate(ctx, def.Role, created, cause)
		}
	}
	return nil
}

// compensate undoes a partial CreatePolicy. Rollback failures are logged and
// joined after cause.
func (a *Administrator) compensate(ctx context.Context, role string, resources []string, cause error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	errs := []error{cause}
	for _, res := range slices.Backward(resources) {
		if err := a.engine.DeleteResource(cctx, res); err != nil {
			errs = append(errs, a.compensationFailed(cctx, "delete resource", role, res, err))
		}
	}
	if err := a.engine.DeleteRole(cctx, role); err != nil {
		errs = append(errs, a.compensationFailed(cctx, "delete role", role, "", err))
	}

	recordCompensation(len(errs) == 1)
	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}

func (a *Administrator) compensationFailed(ctx context.Context, operation, role, resource string, err error) error {
	wrapped := oops.Code(CodeCompensationFailed).
		With("operation", operation).
		With("role", role).
		With("resource", resource).
		Wrapf(err, "rollback %s", operation)
	errutil.LogErrorContext(ctx, a.logger, "create policy rollback step failed", wrapped)
	return wrapped
}

// DeletePolicy deletes a role. Resources it referenced are kept. A missing
// role is an ENGINE_NOT_FOUND error.
func (a *Administrator) DeletePolicy(ctx context.Context, role string) (err error) {
	if role == "" {
		return ErrMalformed("role key is required")
	}
	start := time.Now()
	defer func() { recordAdmin(opDeletePolicy, err, time.Since(start)) }()

	if err := a.engine.DeleteRole(ctx, role); err != nil {
		return oops.With("operation", "delete role").With("role", role).Wrap(err)
	}
	return nil
}

// AssignRole gives userID the role within tenant. Unknown users, roles, and
// tenants are engine errors.
func (a *Administrator) AssignRole(ctx context.Context, userID, role, tenant string) (err error) {
	if userID == "" || role == "" || tenant == "" {
		return ErrMalformed("user, role, and tenant are required")
	}
	start := time.Now()
	defer func() { recordAdmin(opAssignRole, err, time.Since(start)) }()

	assignment := engine.RoleAssignment{User: userID, Role: role, Tenant: tenant}
	if err := a.engine.AssignRole(ctx, assignment); err != nil {
		return oops.With("operation", "assign role").
			With("user_id", userID).
			With("role", role).
			With("tenant", tenant).
			Wrap(err)
	}
	return nil
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
