// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package memory provides an in-process policy engine.
//
// It honours the engine.Engine contract closely enough for tests and local
// development. It is not a production decision point.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/gobwas/glob"

	"github.com/zombify/zombify/internal/engine"
)

// Engine is an in-memory engine.Engine.
//
// Grants are compiled with ':' as the glob separator, so a role holding
// "ruins:*" may perform every action declared on ruins, but "*" never
// crosses into another resource.
type Engine struct {
	mu            sync.RWMutex
	roles         map[string]*role
	resources     map[string]engine.Resource
	users         map[string]*engine.User
	tenants       map[string]struct{}
	defaultTenant string
}

type role struct {
	key      string
	name     string
	grants   []string
	compiled []glob.Glob
}

// Option configures an Engine.
type Option func(*Engine)

// WithTenants pre-creates tenants in addition to the default tenant.
func WithTenants(tenants ...string) Option {
	return func(e *Engine) {
		for _, t := range tenants {
			e.tenants[t] = struct{}{}
		}
	}
}

// WithDefaultTenant sets the tenant used by Check.
func WithDefaultTenant(tenant string) Option {
	return func(e *Engine) {
		e.defaultTenant = tenant
	}
}

// New creates an empty engine holding only the default tenant.
func New(opts ...Option) *Engine {
	e := &Engine{
		roles:         make(map[string]*role),
		resources:     make(map[string]engine.Resource),
		users:         make(map[string]*engine.User),
		tenants:       make(map[string]struct{}),
		defaultTenant: engine.DefaultTenant,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tenants[e.defaultTenant] = struct{}{}
	return e
}

// CreateTenant adds a tenant. Creating an existing tenant is a no-op.
func (e *Engine) CreateTenant(key string) {
	e.mu.Lock()
	e.tenants[key] = struct{}{}
	e.mu.Unlock()
}

// CreateRole implements engine.Engine.
func (e *Engine) CreateRole(_ context.Context, spec engine.RoleSpec) (*engine.Role, error) {
	if spec.Key == "" {
		return nil, engine.ErrRejected("create role", "key is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.roles[spec.Key]; ok {
		return nil, engine.ErrConflict("role", spec.Key)
	}
	r := &role{key: spec.Key, name: spec.Name}
	if err := e.setGrants(r, spec.Permissions); err != nil {
		return nil, err
	}
	e.roles[spec.Key] = r
	return r.view(), nil
}

// DeleteRole implements engine.Engine. Assignments of the role are removed
// with it; resources are untouched.
func (e *Engine) DeleteRole(_ context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.roles[key]; !ok {
		return engine.ErrNotFound("role", key)
	}
	delete(e.roles, key)
	for _, u := range e.users {
		u.Roles = slices.DeleteFunc(u.Roles, func(a engine.AssignedRole) bool {
			return a.Role == key
		})
	}
	return nil
}

// UpdateRolePermissions implements engine.Engine. The grant set is replaced.
func (e *Engine) UpdateRolePermissions(_ context.Context, key string, grants []string) (*engine.Role, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.roles[key]
	if !ok {
		return nil, engine.ErrNotFound("role", key)
	}
	if err := e.setGrants(r, grants); err != nil {
		return nil, err
	}
	return r.view(), nil
}

// setGrants validates and compiles grants onto r. Caller holds mu.
func (e *Engine) setGrants(r *role, grants []string) error {
	compiled := make([]glob.Glob, 0, len(grants))
	for _, g := range grants {
		resource, _, ok := engine.ParseGrant(g)
		if !ok {
			return engine.ErrRejected("update role permissions", "malformed grant "+g)
		}
		if _, exists := e.resources[resource]; !exists {
			return engine.ErrNotFound("resource", resource)
		}
		pattern, err := glob.Compile(g, ':')
		if err != nil {
			return engine.ErrRejected("update role permissions", err.Error())
		}
		compiled = append(compiled, pattern)
	}
	r.grants = slices.Clone(grants)
	r.compiled = compiled
	return nil
}

// CreateResource implements engine.Engine.
func (e *Engine) CreateResource(_ context.Context, spec engine.ResourceSpec) (*engine.Resource, error) {
	if spec.Key == "" {
		return nil, engine.ErrRejected("create resource", "key is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.resources[spec.Key]; ok {
		return nil, engine.ErrConflict("resource", spec.Key)
	}
	res := engine.Resource{Key: spec.Key, Name: spec.Name, Actions: maps.Clone(spec.Actions)}
	if res.Actions == nil {
		res.Actions = map[string]engine.ActionMeta{}
	}
	e.resources[spec.Key] = res
	return &res, nil
}

// DeleteResource implements engine.Engine.
func (e *Engine) DeleteResource(_ context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.resources[key]; !ok {
		return engine.ErrNotFound("resource", key)
	}
	delete(e.resources, key)
	return nil
}

// AssignRole implements engine.Engine.
func (e *Engine) AssignRole(_ context.Context, a engine.RoleAssignment) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users[a.User]
	if !ok {
		return engine.ErrNotFound("user", a.User)
	}
	if _, ok := e.roles[a.Role]; !ok {
		return engine.ErrNotFound("role", a.Role)
	}
	if _, ok := e.tenants[a.Tenant]; !ok {
		return engine.ErrNotFound("tenant", a.Tenant)
	}
	assigned := engine.AssignedRole{Role: a.Role, Tenant: a.Tenant}
	if slices.Contains(u.Roles, assigned) {
		return engine.ErrConflict("role assignment", a.User+"/"+a.Role+"/"+a.Tenant)
	}
	u.Roles = append(u.Roles, assigned)
	return nil
}

// GetUser implements engine.Engine.
func (e *Engine) GetUser(_ context.Context, key string) (*engine.User, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	u, ok := e.users[key]
	if !ok {
		return nil, engine.ErrNotFound("user", key)
	}
	return cloneUser(u), nil
}

// SyncUser implements engine.Engine. Existing role assignments are kept.
func (e *Engine) SyncUser(_ context.Context, spec engine.UserSpec) (*engine.User, error) {
	if spec.Key == "" {
		return nil, engine.ErrRejected("sync user", "key is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users[spec.Key]
	if !ok {
		u = &engine.User{Key: spec.Key, Roles: []engine.AssignedRole{}}
		e.users[spec.Key] = u
	}
	u.Email = spec.Email
	u.FirstName = spec.FirstName
	u.LastName = spec.LastName
	u.Attributes = maps.Clone(spec.Attributes)
	if u.Attributes == nil {
		u.Attributes = map[string]any{}
	}
	return cloneUser(u), nil
}

// UserPermissions implements engine.Engine. Grants are expanded against the
// resources that currently exist, so wildcard grants list concrete actions.
func (e *Engine) UserPermissions(_ context.Context, user *engine.User) (engine.Permissions, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	u, ok := e.users[user.Key]
	if !ok {
		return nil, engine.ErrNotFound("user", user.Key)
	}

	perms := make(engine.Permissions)
	for _, a := range u.Roles {
		tp := perms[a.Tenant]
		tp.Tenant = a.Tenant
		tp.Roles = append(tp.Roles, a.Role)
		perms[a.Tenant] = tp
	}
	for tenant, tp := range perms {
		tp.Permissions = e.expand(tp.Roles)
		sort.Strings(tp.Roles)
		perms[tenant] = tp
	}
	return perms, nil
}

// expand lists every existing resource:action matched by the given roles.
func (e *Engine) expand(roleKeys []string) []string {
	granted := []string{}
	for resKey, res := range e.resources {
		for action := range res.Actions {
			if e.allowed(roleKeys, engine.Grant(resKey, action)) {
				granted = append(granted, engine.Grant(resKey, action))
			}
		}
	}
	sort.Strings(granted)
	return granted
}

func (e *Engine) allowed(roleKeys []string, requested string) bool {
	for _, key := range roleKeys {
		r, ok := e.roles[key]
		if !ok {
			continue
		}
		for _, g := range r.compiled {
			if g.Match(requested) {
				return true
			}
		}
	}
	return false
}

// Check implements engine.Engine. The decision is made in the default
// tenant and requires the resource and action to exist.
func (e *Engine) Check(_ context.Context, user *engine.User, action, resource string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	u, ok := e.users[user.Key]
	if !ok {
		return false, engine.ErrNotFound("user", user.Key)
	}
	res, ok := e.resources[resource]
	if !ok {
		return false, nil
	}
	if _, ok := res.Actions[action]; !ok {
		return false, nil
	}

	var roleKeys []string
	for _, a := range u.Roles {
		if a.Tenant == e.defaultTenant {
			roleKeys = append(roleKeys, a.Role)
		}
	}
	return e.allowed(roleKeys, engine.Grant(resource, action)), nil
}

func (r *role) view() *engine.Role {
	return &engine.Role{Key: r.key, Name: r.name, Permissions: slices.Clone(r.grants)}
}

func cloneUser(u *engine.User) *engine.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	c.Attributes = maps.Clone(u.Attributes)
	if u.Email != nil {
		email := *u.Email
		c.Email = &email
	}
	return &c
}

var _ engine.Engine = (*Engine)(nil)
