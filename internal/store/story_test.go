// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombify/zombify/pkg/errutil"
)

var storyCols = []string{
	"id", "subject", "memory", "inventory", "current_quest",
	"schema_version", "revision", "created_at", "updated_at",
}

const testStoryID = "01JABCDEFGHJKMNPQRSTVWXYZ0"

func storyRow(memory, inventory, quest json.RawMessage, version *string, revision int64) *pgxmock.Rows {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(storyCols).
		AddRow(testStoryID, "alice", memory, inventory, quest, version, revision, now, now)
}

func TestPostgresStoryStateRepository_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM story_states WHERE subject = \$1`).
			WithArgs("alice").
			WillReturnRows(storyRow(json.RawMessage(`{"day":3}`), nil, json.RawMessage(`"find water"`), nil, 4))

		state, err := NewPostgresStoryStateRepository(mock).Get(context.Background(), "alice")
		require.NoError(t, err)

		assert.Equal(t, testStoryID, state.ID.String())
		assert.JSONEq(t, `{"day":3}`, string(state.Memory))
		assert.Nil(t, state.Inventory)
		assert.JSONEq(t, `"find water"`, string(state.CurrentQuest))
		assert.Equal(t, int64(4), state.Revision)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM story_states`).
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		_, err = NewPostgresStoryStateRepository(mock).Get(context.Background(), "ghost")
		errutil.AssertErrorCode(t, err, CodeStoryStateNotFound)
		assert.True(t, IsStoryStateNotFound(err))
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		now := time.Now()
		mock.ExpectQuery(`SELECT .* FROM story_states`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(storyCols).
				AddRow("not-a-ulid", "alice", nil, nil, nil, nil, int64(1), now, now))

		_, err = NewPostgresStoryStateRepository(mock).Get(context.Background(), "alice")
		errutil.AssertErrorCode(t, err, "STORY_STATE_CORRUPT_ID")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStoryStateRepository_Create(t *testing.T) {
	version := "1.2.0"

	t.Run("inserts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO story_states .* ON CONFLICT \(subject\) DO NOTHING`).
			WithArgs(pgxmock.AnyArg(), "alice", json.RawMessage(`{}`), json.RawMessage(nil), json.RawMessage(nil), &version).
			WillReturnRows(storyRow(json.RawMessage(`{}`), nil, nil, &version, 1))

		state, created, err := NewPostgresStoryStateRepository(mock).Create(context.Background(), "alice", StoryPatch{
			Memory:        Present(json.RawMessage(`{}`)),
			Inventory:     Present(json.RawMessage(`null`)),
			SchemaVersion: &version,
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, &version, state.SchemaVersion)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing record returned untouched", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO story_states`).
			WithArgs(pgxmock.AnyArg(), "alice", json.RawMessage(nil), json.RawMessage(nil), json.RawMessage(nil), (*string)(nil)).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`SELECT .* FROM story_states`).
			WithArgs("alice").
			WillReturnRows(storyRow(json.RawMessage(`{"day":9}`), nil, nil, nil, 7))

		state, created, err := NewPostgresStoryStateRepository(mock).Create(context.Background(), "alice", StoryPatch{})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(7), state.Revision)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unregistered user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO story_states`).
			WithArgs(pgxmock.AnyArg(), "bob", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, Message: "violates foreign key"})

		_, _, err = NewPostgresStoryStateRepository(mock).Create(context.Background(), "bob", StoryPatch{})
		errutil.AssertErrorCode(t, err, CodeUserNotRegistered)
		assert.Contains(t, err.Error(), "call ensureUser first")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO story_states`).
			WithArgs(pgxmock.AnyArg(), "alice", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		_, _, err = NewPostgresStoryStateRepository(mock).Create(context.Background(), "alice", StoryPatch{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStoryStateRepository_Update(t *testing.T) {
	t.Run("writes present fields only", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`UPDATE story_states SET .* WHERE subject = \$1\s+RETURNING`).
			WithArgs("alice",
				true, json.RawMessage(`{"day":4}`),
				false, json.RawMessage(nil),
				true, json.RawMessage(nil),
				(*string)(nil)).
			WillReturnRows(storyRow(json.RawMessage(`{"day":4}`), json.RawMessage(`["rope"]`), nil, nil, 2))

		state, err := NewPostgresStoryStateRepository(mock).Update(context.Background(), "alice", StoryPatch{
			Memory:       Present(json.RawMessage(`{"day":4}`)),
			CurrentQuest: Present(json.RawMessage(`null`)),
		})
		require.NoError(t, err)

		assert.JSONEq(t, `{"day":4}`, string(state.Memory))
		assert.JSONEq(t, `["rope"]`, string(state.Inventory))
		assert.Nil(t, state.CurrentQuest)
		assert.Equal(t, int64(2), state.Revision)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`UPDATE story_states`).
			WithArgs("ghost",
				false, json.RawMessage(nil),
				false, json.RawMessage(nil),
				false, json.RawMessage(nil),
				(*string)(nil)).
			WillReturnError(pgx.ErrNoRows)

		_, err = NewPostgresStoryStateRepository(mock).Update(context.Background(), "ghost", StoryPatch{})
		errutil.AssertErrorCode(t, err, CodeStoryStateNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestField_Param(t *testing.T) {
	assert.Nil(t, Field{}.param())
	assert.Nil(t, Present(nil).param())
	assert.Nil(t, Present(json.RawMessage(` null `)).param())
	assert.Equal(t, json.RawMessage(`0`), Present(json.RawMessage(`0`)).param())
}
