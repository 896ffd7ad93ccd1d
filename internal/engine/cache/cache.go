// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package cache decorates an engine.Engine with a Redis decision cache.
//
// Check and UserPermissions results are stored under keys that embed a
// global policy version. Every administrative write bumps the version, so
// entries written before a change are never read again and expire by TTL.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/xxh3"

	"github.com/zombify/zombify/internal/engine"
)

const (
	versionKey = "zombify:policy:version"
	keyPrefix  = "zombify:decision"
)

// DefaultTTL bounds how long a decision may be served from cache.
const DefaultTTL = 30 * time.Second

// Engine is a caching engine.Engine.
type Engine struct {
	next   engine.Engine
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps next. A non-positive ttl uses DefaultTTL.
func New(next engine.Engine, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{next: next, client: client, ttl: ttl, logger: logger}
}

// Version returns the current policy version, initialising it when missing.
func (e *Engine) Version(ctx context.Context) (int64, error) {
	ver, err := e.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so concurrent initialisers agree on the first value.
		if err := e.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return e.client.Get(ctx, versionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates every cached decision.
func (e *Engine) Bump(ctx context.Context) error {
	return e.client.Incr(ctx, versionKey).Err()
}

// buildKey names the entry for kind and parts under the current version.
// Parts are length-prefixed before hashing, so separators inside a user
// key or resource cannot make two tuples share a key.
func (e *Engine) buildKey(ctx context.Context, kind string, parts ...string) (string, error) {
	ver, err := e.Version(ctx)
	if err != nil {
		return "", err
	}
	return keyPrefix + ":" + strconv.FormatInt(ver, 10) + ":" + kind + ":" + digest(parts), nil
}

func digest(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	sum := xxh3.HashString128(b.String()).Bytes()
	return hex.EncodeToString(sum[:])
}

// fetch serves dest from key or fills it with load. Cache faults degrade to
// calling load; they never fail the operation.
func fetch[T any](ctx context.Context, e *Engine, kind string, parts []string, load func(context.Context) (T, error)) (T, error) {
	key, err := e.buildKey(ctx, kind, parts...)
	if err != nil {
		e.logger.WarnContext(ctx, "decision cache unavailable", "error", err)
		return load(ctx)
	}

	raw, err := e.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			recordLookup(resultHit)
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		e.logger.WarnContext(ctx, "decision cache read failed", "key", key, "error", err)
	}
	recordLookup(resultMiss)

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if payload, err := json.Marshal(value); err == nil {
		if err := e.client.Set(ctx, key, payload, e.ttl).Err(); err != nil {
			e.logger.WarnContext(ctx, "decision cache write failed", "key", key, "error", err)
		}
	}
	return value, nil
}

// invalidate bumps the version after a successful write. A failed bump is
// logged; stale decisions then live at most one TTL.
func (e *Engine) invalidate(ctx context.Context, operation string) {
	if err := e.Bump(ctx); err != nil {
		e.logger.ErrorContext(ctx, "decision cache invalidation failed",
			"operation", operation, "error", err)
	}
}

// Check implements engine.Engine.
func (e *Engine) Check(ctx context.Context, user *engine.User, action, resource string) (bool, error) {
	return fetch(ctx, e, "check", []string{user.Key, resource, action}, func(ctx context.Context) (bool, error) {
		return e.next.Check(ctx, user, action, resource)
	})
}

// UserPermissions implements engine.Engine.
func (e *Engine) UserPermissions(ctx context.Context, user *engine.User) (engine.Permissions, error) {
	return fetch(ctx, e, "perms", []string{user.Key}, func(ctx context.Context) (engine.Permissions, error) {
		return e.next.UserPermissions(ctx, user)
	})
}

// CreateRole implements engine.Engine.
func (e *Engine) CreateRole(ctx context.Context, spec engine.RoleSpec) (*engine.Role, error) {
	role, err := e.next.CreateRole(ctx, spec)
	if err == nil {
		e.invalidate(ctx, "create role")
	}
	return role, err
}

// DeleteRole implements engine.Engine.
func (e *Engine) DeleteRole(ctx context.Context, key string) error {
	err := e.next.DeleteRole(ctx, key)
	if err == nil {
		e.invalidate(ctx, "delete role")
	}
	return err
}

// UpdateRolePermissions implements engine.Engine.
func (e *Engine) UpdateRolePermissions(ctx context.Context, key string, grants []string) (*engine.Role, error) {
	role, err := e.next.UpdateRolePermissions(ctx, key, grants)
	if err == nil {
		e.invalidate(ctx, "update role permissions")
	}
	return role, err
}

// CreateResource implements engine.Engine.
func (e *Engine) CreateResource(ctx context.Context, spec engine.ResourceSpec) (*engine.Resource, error) {
	res, err := e.next.CreateResource(ctx, spec)
	if err == nil {
		e.invalidate(ctx, "create resource")
	}
	return res, err
}

// DeleteResource implements engine.Engine.
func (e *Engine) DeleteResource(ctx context.Context, key string) error {
	err := e.next.DeleteResource(ctx, key)
	if err == nil {
		e.invalidate(ctx, "delete resource")
	}
	return err
}

// AssignRole implements engine.Engine.
func (e *Engine) AssignRole(ctx context.Context, a engine.RoleAssignment) error {
	err := e.next.AssignRole(ctx, a)
	if err == nil {
		e.invalidate(ctx, "assign role")
	}
	return err
}

// GetUser implements engine.Engine. User lookups are never cached so
// NotFound answers stay authoritative for identity reconciliation.
func (e *Engine) GetUser(ctx context.Context, key string) (*engine.User, error) {
	return e.next.GetUser(ctx, key)
}

// SyncUser implements engine.Engine.
func (e *Engine) SyncUser(ctx context.Context, spec engine.UserSpec) (*engine.User, error) {
	return e.next.SyncUser(ctx, spec)
}

var _ engine.Engine = (*Engine)(nil)
