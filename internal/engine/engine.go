// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package engine defines the contract Zombify needs from the external policy
// engine: the service that holds the role/resource/grant graph and answers
// access decisions.
//
// Adapters live in subpackages:
//   - permit: HTTP adapter for a Permit.io compatible management API and PDP
//   - memory: in-process engine for tests and local development
//   - cache:  Redis decision cache wrapping any Engine
package engine

import (
	"context"
	"strings"
)

// DefaultTenant is the tenant used when a caller does not name one.
const DefaultTenant = "default"

// Engine is the policy engine contract.
type Engine interface {
	// CreateRole creates a role. Returns an ENGINE_CONFLICT error if the key exists.
	CreateRole(ctx context.Context, spec RoleSpec) (*Role, error)

	// DeleteRole deletes a role by key. Resources it referenced are kept.
	DeleteRole(ctx context.Context, key string) error

	// UpdateRolePermissions replaces the grant set of a role.
	UpdateRolePermissions(ctx context.Context, key string, grants []string) (*Role, error)

	// CreateResource creates a resource with its legal actions.
	CreateResource(ctx context.Context, spec ResourceSpec) (*Resource, error)

	// DeleteResource removes a resource. Used only to compensate a failed createPolicy.
	DeleteResource(ctx context.Context, key string) error

	// AssignRole assigns a role to a user within a tenant.
	AssignRole(ctx context.Context, assignment RoleAssignment) error

	// GetUser fetches a user. Returns an ENGINE_NOT_FOUND error when absent.
	GetUser(ctx context.Context, key string) (*User, error)

	// SyncUser creates the user or replaces its profile.
	SyncUser(ctx context.Context, spec UserSpec) (*User, error)

	// UserPermissions computes the effective grants of a user, per tenant.
	UserPermissions(ctx context.Context, user *User) (Permissions, error)

	// Check answers whether user may perform action on resource.
	// A denial is (false, nil), never an error.
	Check(ctx context.Context, user *User, action, resource string) (bool, error)
}

// RoleSpec describes a role to create.
type RoleSpec struct {
	Key         string
	Name        string
	Permissions []string
}

// Role is a named bundle of grants.
type Role struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// ResourceSpec describes a resource to create.
// Actions maps action name to metadata; metadata is currently always empty.
type ResourceSpec struct {
	Key     string
	Name    string
	Actions map[string]ActionMeta
}

// ActionMeta is the per-action metadata attached to a resource.
type ActionMeta struct{}

// Resource is a game-domain object type with a fixed set of legal actions.
type Resource struct {
	Key     string                `json:"key"`
	Name    string                `json:"name"`
	Actions map[string]ActionMeta `json:"actions"`
}

// RoleAssignment ties a role to a user within a tenant.
type RoleAssignment struct {
	User   string `json:"user"`
	Role   string `json:"role"`
	Tenant string `json:"tenant"`
}

// UserSpec describes a user to create or sync.
type UserSpec struct {
	Key        string
	Email      *string
	FirstName  string
	LastName   string
	Attributes map[string]any
}

// User is a policy engine user with its role assignments.
type User struct {
	Key        string         `json:"key"`
	Email      *string        `json:"email,omitempty"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Attributes map[string]any `json:"attributes"`
	Roles      []AssignedRole `json:"roles"`
}

// AssignedRole is one entry of a user's raw role-assignment list.
type AssignedRole struct {
	Role   string `json:"role"`
	Tenant string `json:"tenant"`
}

// TenantPermissions is the derived permission view for one tenant.
type TenantPermissions struct {
	Tenant      string   `json:"tenant"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Permissions maps tenant key to the user's derived permissions there.
type Permissions map[string]TenantPermissions

// Grant formats a resource/action pair as a grant string.
func Grant(resource, action string) string {
	return resource + ":" + action
}

// ParseGrant splits a grant string into resource and action.
// The resource is everything before the first colon.
func ParseGrant(grant string) (resource, action string, ok bool) {
	resource, action, ok = strings.Cut(grant, ":")
	if !ok || resource == "" || action == "" {
		return "", "", false
	}
	return resource, action, true
}

// ActionsMap builds the actions map for a resource from a list of names.
func ActionsMap(actions []string) map[string]ActionMeta {
	m := make(map[string]ActionMeta, len(actions))
	for _, a := range actions {
		m[a] = ActionMeta{}
	}
	return m
}

// GrantsFor returns the grant strings for every action on resource, in order.
func GrantsFor(resource string, actions []string) []string {
	grants := make([]string, 0, len(actions))
	for _, a := range actions {
		grants = append(grants, Grant(resource, a))
	}
	return grants
}
