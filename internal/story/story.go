// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package story reads and writes a player's persisted story state.
package story

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/store"
)

var (
	emptyObject = json.RawMessage(`{}`)
	jsonNull    = json.RawMessage(`null`)
)

// State is the player-facing view of a story record.
type State struct {
	Memory       json.RawMessage `json:"memory"`
	Inventory    json.RawMessage `json:"inventory"`
	CurrentQuest json.RawMessage `json:"currentQuest"`
}

// Service implements the story state operations on top of a repository.
type Service struct {
	repo       store.StoryStateRepository
	constraint *semver.Constraints
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSchemaConstraint restricts the schemaVersion a payload may declare.
func WithSchemaConstraint(c *semver.Constraints) Option {
	return func(s *Service) {
		s.constraint = c
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a story Service.
func NewService(repo store.StoryStateRepository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseConstraint parses a semver constraint. An empty string means none.
func ParseConstraint(c string) (*semver.Constraints, error) {
	if c == "" {
		return nil, nil
	}
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		return nil, oops.Code("STORY_CONSTRAINT_INVALID").With("constraint", c).Wrap(err)
	}
	return constraint, nil
}

// Get returns the subject's state with memory and inventory defaulting to {}
// and currentQuest to null. found is false when no record exists.
func (s *Service) Get(ctx context.Context, subject string) (state State, found bool, err error) {
	rec, err := s.repo.Get(ctx, subject)
	if store.IsStoryStateNotFound(err) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, oops.With("operation", "get story state").With("subject", subject).Wrap(err)
	}
	return State{
		Memory:       coalesce(rec.Memory, emptyObject),
		Inventory:    coalesce(rec.Inventory, emptyObject),
		CurrentQuest: coalesce(rec.CurrentQuest, jsonNull),
	}, true, nil
}

// Update applies the serialized payload to the subject's existing record and
// returns the stored field values. Nothing is written when the payload is
// malformed.
func (s *Service) Update(ctx context.Context, subject, payload string) (State, error) {
	patch, err := ParsePayload(payload, s.constraint)
	if err != nil {
		return State{}, err
	}
	rec, err := s.repo.Update(ctx, subject, patch)
	if err != nil {
		return State{}, oops.With("operation", "update story state").With("subject", subject).Wrap(err)
	}
	s.logger.DebugContext(ctx, "story state updated",
		"subject", subject,
		"revision", rec.Revision,
	)
	return raw(rec), nil
}

// Create makes the subject's record if absent. An empty payload creates an
// empty record. An existing record is returned untouched with created=false.
func (s *Service) Create(ctx context.Context, subject, payload string) (state State, created bool, err error) {
	var patch store.StoryPatch
	if payload != "" {
		if patch, err = ParsePayload(payload, s.constraint); err != nil {
			return State{}, false, err
		}
	}
	rec, created, err := s.repo.Create(ctx, subject, patch)
	if err != nil {
		return State{}, false, oops.With("operation", "create story state").With("subject", subject).Wrap(err)
	}
	if created {
		s.logger.InfoContext(ctx, "story state created", "subject", subject)
	}
	return raw(rec), created, nil
}

func raw(rec *store.StoryState) State {
	return State{
		Memory:       coalesce(rec.Memory, jsonNull),
		Inventory:    coalesce(rec.Inventory, jsonNull),
		CurrentQuest: coalesce(rec.CurrentQuest, jsonNull),
	}
}

func coalesce(v, fallback json.RawMessage) json.RawMessage {
	if len(v) == 0 || isNull(v) {
		return fallback
	}
	return v
}
