// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package store

import (
	"context"

	"github.com/samber/oops"
)

// UserRepository mirrors engine users into the database.
type UserRepository interface {
	// Upsert inserts the user when absent and reports whether a row was written.
	// An existing row is left untouched.
	Upsert(ctx context.Context, subject string, email *string) (bool, error)
}

// PostgresUserRepository implements UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	pool poolIface
}

// NewPostgresUserRepository creates a new PostgreSQL user repository.
func NewPostgresUserRepository(pool poolIface) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Upsert implements UserRepository.
func (r *PostgresUserRepository) Upsert(ctx context.Context, subject string, email *string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, subject, email) VALUES ($1, $2, $3)
		 ON CONFLICT (subject) DO NOTHING`,
		newID().String(), subject, email)
	if err != nil {
		return false, oops.Code("USER_UPSERT_FAILED").
			With("operation", "upsert user").
			With("subject", subject).
			Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}
