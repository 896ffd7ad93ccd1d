// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package storetest provides in-memory repositories with the same
// semantics as the PostgreSQL implementations.
package storetest

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zombify/zombify/internal/store"
)

// Users is an in-memory store.UserRepository.
type Users struct {
	mu     sync.Mutex
	rows   map[string]*string
	Writes int
	// Err, when set, is returned by every call.
	Err error
}

// NewUsers creates an empty Users.
func NewUsers() *Users {
	return &Users{rows: map[string]*string{}}
}

// Upsert implements store.UserRepository.
func (u *Users) Upsert(_ context.Context, subject string, email *string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return false, u.Err
	}
	if _, ok := u.rows[subject]; ok {
		return false, nil
	}
	u.rows[subject] = email
	u.Writes++
	return true, nil
}

// Has reports whether subject has a row.
func (u *Users) Has(subject string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.rows[subject]
	return ok
}

// Len returns the number of rows.
func (u *Users) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rows)
}

// StoryStates is an in-memory store.StoryStateRepository. When Users is set,
// Create requires the subject to have a user row.
type StoryStates struct {
	mu      sync.Mutex
	records map[string]*store.StoryState
	Users   *Users
	Updates int
}

// NewStoryStates creates an empty StoryStates.
func NewStoryStates() *StoryStates {
	return &StoryStates{records: map[string]*store.StoryState{}}
}

// Get implements store.StoryStateRepository.
func (s *StoryStates) Get(_ context.Context, subject string) (*store.StoryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[subject]
	if !ok {
		return nil, store.ErrStoryStateNotFound(subject)
	}
	return clone(rec), nil
}

// Create implements store.StoryStateRepository.
func (s *StoryStates) Create(_ context.Context, subject string, initial store.StoryPatch) (*store.StoryState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[subject]; ok {
		return clone(rec), false, nil
	}
	if s.Users != nil && !s.Users.Has(subject) {
		return nil, false, store.ErrUserNotRegistered(subject, nil)
	}
	now := time.Now().UTC()
	rec := &store.StoryState{
		ID:        ulid.Make(),
		Subject:   subject,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(rec, initial)
	s.records[subject] = rec
	return clone(rec), true, nil
}

// Update implements store.StoryStateRepository.
func (s *StoryStates) Update(_ context.Context, subject string, patch store.StoryPatch) (*store.StoryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[subject]
	if !ok {
		return nil, store.ErrStoryStateNotFound(subject)
	}
	apply(rec, patch)
	rec.Revision++
	rec.UpdatedAt = time.Now().UTC()
	s.Updates++
	return clone(rec), nil
}

func apply(rec *store.StoryState, p store.StoryPatch) {
	set := func(dst *json.RawMessage, f store.Field) {
		if !f.Set {
			return
		}
		if len(f.Value) == 0 || bytes.Equal(bytes.TrimSpace(f.Value), []byte("null")) {
			*dst = nil
			return
		}
		*dst = bytes.Clone(f.Value)
	}
	set(&rec.Memory, p.Memory)
	set(&rec.Inventory, p.Inventory)
	set(&rec.CurrentQuest, p.CurrentQuest)
	if p.SchemaVersion != nil {
		v := *p.SchemaVersion
		rec.SchemaVersion = &v
	}
}

func clone(rec *store.StoryState) *store.StoryState {
	cp := *rec
	return &cp
}
