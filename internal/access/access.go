// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package access answers access-control questions about the calling player:
// which roles and permissions they hold, and whether they may perform an
// action on a resource. Decisions are delegated to the policy engine.
package access

import (
	"context"

	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/engine"
)

// Error codes for access queries.
const (
	CodeInvalidQuery = "ACCESS_INVALID_QUERY"
)

// RolesAndPermissions is a user's derived permission view plus the raw
// role-assignment list held by the engine.
type RolesAndPermissions struct {
	Permissions engine.Permissions
	Roles       []engine.AssignedRole
}

// Service answers access queries.
type Service struct {
	engine engine.Engine
}

// NewService creates a Service.
func NewService(e engine.Engine) *Service {
	return &Service{engine: e}
}

// RolesAndPermissions returns the permissions and role assignments of userID.
// An unknown user is an ENGINE_NOT_FOUND error.
func (s *Service) RolesAndPermissions(ctx context.Context, userID string) (*RolesAndPermissions, error) {
	user, err := s.engine.GetUser(ctx, userID)
	if err != nil {
		return nil, oops.With("operation", "get user").With("user_id", userID).Wrap(err)
	}
	perms, err := s.engine.UserPermissions(ctx, user)
	if err != nil {
		return nil, oops.With("operation", "user permissions").With("user_id", userID).Wrap(err)
	}
	roles := user.Roles
	if roles == nil {
		roles = []engine.AssignedRole{}
	}
	return &RolesAndPermissions{Permissions: perms, Roles: roles}, nil
}

// HasAccess reports whether userID may perform action on resource. A denial
// is (false, nil); an unknown user or an unreachable engine is an error.
func (s *Service) HasAccess(ctx context.Context, userID, action, resource string) (bool, error) {
	if action == "" || resource == "" {
		return false, oops.Code(CodeInvalidQuery).
			With("action", action).
			With("resource", resource).
			Errorf("action and resource are required")
	}
	user, err := s.engine.GetUser(ctx, userID)
	if err != nil {
		return false, oops.With("operation", "get user").With("user_id", userID).Wrap(err)
	}
	allowed, err := s.engine.Check(ctx, user, action, resource)
	if err != nil {
		return false, oops.With("operation", "check").
			With("user_id", userID).
			With("action", action).
			With("resource", resource).
			Wrap(err)
	}
	return allowed, nil
}
