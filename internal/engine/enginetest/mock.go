// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package enginetest provides test helpers for the policy engine contract.
package enginetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zombify/zombify/internal/engine"
)

// MockEngine is a testify mock of engine.Engine.
type MockEngine struct {
	mock.Mock
}

// CreateRole implements engine.Engine.
func (m *MockEngine) CreateRole(ctx context.Context, spec engine.RoleSpec) (*engine.Role, error) {
	args := m.Called(ctx, spec)
	role, _ := args.Get(0).(*engine.Role)
	return role, args.Error(1)
}

// DeleteRole implements engine.Engine.
func (m *MockEngine) DeleteRole(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// UpdateRolePermissions implements engine.Engine.
func (m *MockEngine) UpdateRolePermissions(ctx context.Context, key string, grants []string) (*engine.Role, error) {
	args := m.Called(ctx, key, grants)
	role, _ := args.Get(0).(*engine.Role)
	return role, args.Error(1)
}

// CreateResource implements engine.Engine.
func (m *MockEngine) CreateResource(ctx context.Context, spec engine.ResourceSpec) (*engine.Resource, error) {
	args := m.Called(ctx, spec)
	res, _ := args.Get(0).(*engine.Resource)
	return res, args.Error(1)
}

// DeleteResource implements engine.Engine.
func (m *MockEngine) DeleteResource(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// AssignRole implements engine.Engine.
func (m *MockEngine) AssignRole(ctx context.Context, a engine.RoleAssignment) error {
	return m.Called(ctx, a).Error(0)
}

// GetUser implements engine.Engine.
func (m *MockEngine) GetUser(ctx context.Context, key string) (*engine.User, error) {
	args := m.Called(ctx, key)
	user, _ := args.Get(0).(*engine.User)
	return user, args.Error(1)
}

// SyncUser implements engine.Engine.
func (m *MockEngine) SyncUser(ctx context.Context, spec engine.UserSpec) (*engine.User, error) {
	args := m.Called(ctx, spec)
	user, _ := args.Get(0).(*engine.User)
	return user, args.Error(1)
}

// UserPermissions implements engine.Engine.
func (m *MockEngine) UserPermissions(ctx context.Context, user *engine.User) (engine.Permissions, error) {
	args := m.Called(ctx, user)
	perms, _ := args.Get(0).(engine.Permissions)
	return perms, args.Error(1)
}

// Check implements engine.Engine.
func (m *MockEngine) Check(ctx context.Context, user *engine.User, action, resource string) (bool, error) {
	args := m.Called(ctx, user, action, resource)
	return args.Bool(0), args.Error(1)
}

var _ engine.Engine = (*MockEngine)(nil)
