// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// StoryState is a player's persisted story record. The JSON blobs are
// opaque; a nil blob is a SQL NULL.
type StoryState struct {
	ID            ulid.ULID
	Subject       string
	Memory        json.RawMessage
	Inventory     json.RawMessage
	CurrentQuest  json.RawMessage
	SchemaVersion *string
	Revision      int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Field is one optional column of a StoryPatch. Set=false leaves the column
// unchanged. Set=true with a nil (or JSON null) Value clears it.
type Field struct {
	Set   bool
	Value json.RawMessage
}

// Present returns a Field that replaces the column with v.
func Present(v json.RawMessage) Field {
	return Field{Set: true, Value: v}
}

// StoryPatch lists the fields an update writes.
type StoryPatch struct {
	Memory        Field
	Inventory     Field
	CurrentQuest  Field
	SchemaVersion *string // nil keeps the stored version
}

// StoryStateRepository persists story records, one per subject.
type StoryStateRepository interface {
	// Get returns the record or a STORY_STATE_NOT_FOUND error.
	Get(ctx context.Context, subject string) (*StoryState, error)

	// Create inserts a record when none exists. An existing record is
	// returned untouched with created=false.
	Create(ctx context.Context, subject string, initial StoryPatch) (state *StoryState, created bool, err error)

	// Update writes the present fields of patch and returns the updated row.
	Update(ctx context.Context, subject string, patch StoryPatch) (*StoryState, error)
}

const storyColumns = `id, subject, memory, inventory, current_quest, schema_version, revision, created_at, updated_at`

// PostgresStoryStateRepository implements StoryStateRepository using PostgreSQL.
type PostgresStoryStateRepository struct {
	pool poolIface
}

// NewPostgresStoryStateRepository creates a new PostgreSQL story state repository.
func NewPostgresStoryStateRepository(pool poolIface) *PostgresStoryStateRepository {
	return &PostgresStoryStateRepository{pool: pool}
}

// Get implements StoryStateRepository.
func (r *PostgresStoryStateRepository) Get(ctx context.Context, subject string) (*StoryState, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+storyColumns+` FROM story_states WHERE subject = $1`, subject)
	state, err := scanStoryState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStoryStateNotFound(subject)
	}
	if err != nil {
		return nil, oops.With("operation", "get story state").With("subject", subject).Wrap(err)
	}
	return state, nil
}

// Create implements StoryStateRepository.
func (r *PostgresStoryStateRepository) Create(ctx context.Context, subject string, initial StoryPatch) (*StoryState, bool, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO story_states (id, subject, memory, inventory, current_quest, schema_version)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (subject) DO NOTHING
		 RETURNING `+storyColumns,
		newID().String(), subject,
		initial.Memory.param(), initial.Inventory.param(), initial.CurrentQuest.param(),
		initial.SchemaVersion)
	state, err := scanStoryState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := r.Get(ctx, subject)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, false, ErrUserNotRegistered(subject, err)
		}
		return nil, false, oops.With("operation", "create story state").With("subject", subject).Wrap(err)
	}
	return state, true, nil
}

// Update implements StoryStateRepository. updated_at and revision always
// advance, even when the patch sets no field.
func (r *PostgresStoryStateRepository) Update(ctx context.Context, subject string, patch StoryPatch) (*StoryState, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE story_states SET
		   memory         = CASE WHEN $2 THEN $3::jsonb ELSE memory END,
		   inventory      = CASE WHEN $4 THEN $5::jsonb ELSE inventory END,
		   current_quest  = CASE WHEN $6 THEN $7::jsonb ELSE current_quest END,
		   schema_version = COALESCE($8, schema_version),
		   revision       = revision + 1,
		   updated_at     = now()
		 WHERE subject = $1
		 RETURNING `+storyColumns,
		subject,
		patch.Memory.Set, patch.Memory.param(),
		patch.Inventory.Set, patch.Inventory.param(),
		patch.CurrentQuest.Set, patch.CurrentQuest.param(),
		patch.SchemaVersion)
	state, err := scanStoryState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStoryStateNotFound(subject)
	}
	if err != nil {
		return nil, oops.With("operation", "update story state").With("subject", subject).Wrap(err)
	}
	return state, nil
}

// param maps the field onto a jsonb bind value; JSON null becomes SQL NULL.
func (f Field) param() json.RawMessage {
	if !f.Set || isJSONNull(f.Value) {
		return nil
	}
	return f.Value
}

func isJSONNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func scanStoryState(row pgx.Row) (*StoryState, error) {
	var (
		s     StoryState
		idStr string
	)
	if err := row.Scan(&idStr, &s.Subject, &s.Memory, &s.Inventory, &s.CurrentQuest,
		&s.SchemaVersion, &s.Revision, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("STORY_STATE_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	s.ID = id
	return &s, nil
}
