// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package player keeps a player's identity consistent between the policy
// engine and the persistent store.
package player

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/engine"
	"github.com/zombify/zombify/internal/store"
)

// Result reports which writes EnsureUser performed.
type Result struct {
	EngineUserCreated bool
	StoreRowCreated   bool
}

// Reconciler makes sure a player exists in the engine and the store.
type Reconciler struct {
	engine engine.Engine
	users  store.UserRepository
	logger *slog.Logger
}

// NewReconciler creates a Reconciler. A nil logger uses slog.Default.
func NewReconciler(e engine.Engine, users store.UserRepository, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{engine: e, users: users, logger: logger}
}

// EnsureUser registers userID with the engine when absent, then inserts the
// store row when absent. It is idempotent: a repeated call for an existing
// player writes nothing.
//
// Only an engine NotFound on lookup leads to creation. Any other lookup
// failure is returned before the store is touched.
func (r *Reconciler) EnsureUser(ctx context.Context, userID string, email *string) (Result, error) {
	var res Result
	if userID == "" {
		return res, oops.Code("PLAYER_INVALID_ID").Errorf("user id is required")
	}

	_, err := r.engine.GetUser(ctx, userID)
	switch {
	case err == nil:
	case engine.IsNotFound(err):
		spec := engine.UserSpec{Key: userID, Email: email, Attributes: map[string]any{}}
		if _, err := r.engine.SyncUser(ctx, spec); err != nil {
			return res, oops.With("operation", "sync user").With("user_id", userID).Wrap(err)
		}
		res.EngineUserCreated = true
		r.logger.InfoContext(ctx, "player registered with policy engine", "user_id", userID)
	default:
		return res, err
	}

	written, err := r.users.Upsert(ctx, userID, email)
	if err != nil {
		return res, oops.With("operation", "upsert user").With("user_id", userID).Wrap(err)
	}
	res.StoreRowCreated = written
	return res, nil
}
