// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package permit implements engine.Engine on the Permit.io Go SDK.
package permit

import (
	"context"
	"sort"
	"time"

	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/engine"
)

// Default endpoints of the hosted service.
const (
	DefaultAPIURL = "https://api.permit.io"
	DefaultPDPURL = "https://cloudpdp.api.permit.io"
)

// healthCheckKey is looked up by Ping. A not-found answer still proves the
// API accepted the key.
const healthCheckKey = "zombify-health-check"

// Config configures a Client.
type Config struct {
	APIURL        string
	PDPURL        string
	APIKey        string
	DefaultTenant string
	Timeout       time.Duration
}

// backend is the subset of the SDK the adapter drives.
type backend interface {
	createRole(ctx context.Context, spec engine.RoleSpec) (*engine.Role, error)
	getRole(ctx context.Context, key string) (*engine.Role, error)
	updateRolePermissions(ctx context.Context, key string, grants []string) (*engine.Role, error)
	deleteRole(ctx context.Context, key string) error
	createResource(ctx context.Context, spec engine.ResourceSpec) (*engine.Resource, error)
	deleteResource(ctx context.Context, key string) error
	assignRole(ctx context.Context, a engine.RoleAssignment) error
	getUser(ctx context.Context, key string) (*engine.User, error)
	syncUser(ctx context.Context, spec engine.UserSpec) (*engine.User, error)
	check(ctx context.Context, user *engine.User, action, resource, tenant string) (bool, error)
}

// Client is an engine.Engine backed by the Permit SDK.
type Client struct {
	backend       backend
	defaultTenant string
	timeout       time.Duration
}

// New creates a Client. No network calls are made until first use.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, oops.Code("ENGINE_CONFIG_INVALID").Errorf("permit api key is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.PDPURL == "" {
		cfg.PDPURL = DefaultPDPURL
	}
	return newClient(newSDKBackend(cfg), cfg), nil
}

func newClient(b backend, cfg Config) *Client {
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = engine.DefaultTenant
	}
	return &Client{backend: b, defaultTenant: cfg.DefaultTenant, timeout: cfg.Timeout}
}

// call runs fn under the request timeout, records metrics, and maps the
// SDK error onto the engine taxonomy.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		status := statusSuccess
		if err != nil {
			status = statusFor(err)
		}
		recordRequest(operation, status, time.Since(start))
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return engine.ErrUnavailable(operation, err)
	}
	return mapError(operation, fn(ctx))
}

// Ping checks that the management API accepts the API key.
func (c *Client) Ping(ctx context.Context) error {
	err := c.call(ctx, "ping", func(ctx context.Context) error {
		_, err := c.backend.getUser(ctx, healthCheckKey)
		return err
	})
	if engine.IsNotFound(err) {
		return nil
	}
	return err
}

// CreateRole implements engine.Engine.
func (c *Client) CreateRole(ctx context.Context, spec engine.RoleSpec) (role *engine.Role, err error) {
	if spec.Permissions == nil {
		spec.Permissions = []string{}
	}
	err = c.call(ctx, "create role", func(ctx context.Context) error {
		role, err = c.backend.createRole(ctx, spec)
		return err
	})
	return role, err
}

// DeleteRole implements engine.Engine.
func (c *Client) DeleteRole(ctx context.Context, key string) error {
	return c.call(ctx, "delete role", func(ctx context.Context) error {
		return c.backend.deleteRole(ctx, key)
	})
}

// UpdateRolePermissions implements engine.Engine.
func (c *Client) UpdateRolePermissions(ctx context.Context, key string, grants []string) (role *engine.Role, err error) {
	if grants == nil {
		grants = []string{}
	}
	err = c.call(ctx, "update role", func(ctx context.Context) error {
		role, err = c.backend.updateRolePermissions(ctx, key, grants)
		return err
	})
	return role, err
}

// CreateResource implements engine.Engine.
func (c *Client) CreateResource(ctx context.Context, spec engine.ResourceSpec) (res *engine.Resource, err error) {
	if spec.Actions == nil {
		spec.Actions = map[string]engine.ActionMeta{}
	}
	err = c.call(ctx, "create resource", func(ctx context.Context) error {
		res, err = c.backend.createResource(ctx, spec)
		return err
	})
	return res, err
}

// DeleteResource implements engine.Engine.
func (c *Client) DeleteResource(ctx context.Context, key string) error {
	return c.call(ctx, "delete resource", func(ctx context.Context) error {
		return c.backend.deleteResource(ctx, key)
	})
}

// AssignRole implements engine.Engine.
func (c *Client) AssignRole(ctx context.Context, a engine.RoleAssignment) error {
	return c.call(ctx, "assign role", func(ctx context.Context) error {
		return c.backend.assignRole(ctx, a)
	})
}

// GetUser implements engine.Engine.
func (c *Client) GetUser(ctx context.Context, key string) (user *engine.User, err error) {
	err = c.call(ctx, "get user", func(ctx context.Context) error {
		user, err = c.backend.getUser(ctx, key)
		return err
	})
	return user, err
}

// SyncUser implements engine.Engine. The user is created or its profile
// replaced; role assignments are untouched.
func (c *Client) SyncUser(ctx context.Context, spec engine.UserSpec) (user *engine.User, err error) {
	if spec.Attributes == nil {
		spec.Attributes = map[string]any{}
	}
	err = c.call(ctx, "sync user", func(ctx context.Context) error {
		user, err = c.backend.syncUser(ctx, spec)
		return err
	})
	return user, err
}

// Check implements engine.Engine. The decision is made in the default tenant.
func (c *Client) Check(ctx context.Context, user *engine.User, action, resource string) (allowed bool, err error) {
	err = c.call(ctx, "check", func(ctx context.Context) error {
		allowed, err = c.backend.check(ctx, user, action, resource, c.defaultTenant)
		return err
	})
	return allowed, err
}

// UserPermissions implements engine.Engine. Permissions are the union of
// the grants of every role the user holds, grouped by tenant.
func (c *Client) UserPermissions(ctx context.Context, user *engine.User) (engine.Permissions, error) {
	grants := make(map[string][]string)
	perms := make(engine.Permissions)

	for _, a := range user.Roles {
		tp := perms[a.Tenant]
		tp.Tenant = a.Tenant
		tp.Roles = appendUnique(tp.Roles, a.Role)
		perms[a.Tenant] = tp

		if _, ok := grants[a.Role]; ok {
			continue
		}
		var role *engine.Role
		err := c.call(ctx, "get role", func(ctx context.Context) error {
			var err error
			role, err = c.backend.getRole(ctx, a.Role)
			return err
		})
		if err != nil {
			return nil, err
		}
		grants[a.Role] = role.Permissions
	}

	for tenant, tp := range perms {
		tp.Permissions = []string{}
		for _, r := range tp.Roles {
			for _, g := range grants[r] {
				tp.Permissions = appendUnique(tp.Permissions, g)
			}
		}
		sort.Strings(tp.Roles)
		sort.Strings(tp.Permissions)
		perms[tenant] = tp
	}
	return perms, nil
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

var _ engine.Engine = (*Client)(nil)
