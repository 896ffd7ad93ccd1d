// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombify/zombify/internal/access"
	"github.com/zombify/zombify/internal/engine"
	"github.com/zombify/zombify/pkg/errutil"
)

var tracer = otel.Tracer("zombify/tool")

// Authorizer decides whether a user holds a grant.
type Authorizer interface {
	HasAccess(ctx context.Context, userID, action, resource string) (bool, error)
}

// Dispatcher runs registered tools for the caller carried by the context.
type Dispatcher struct {
	registry   *Registry
	authorizer Authorizer
	logger     *slog.Logger
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a dispatcher over registry. authorizer checks tool
// grants and may be nil only when no registered tool declares one.
func NewDispatcher(registry *Registry, authorizer Authorizer, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, oops.Code(CodeInvalidTool).Errorf("registry is required")
	}
	d := &Dispatcher{
		registry:   registry,
		authorizer: authorizer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch runs the named tool and always returns a result; failures are
// rendered with ErrorResult.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) *Result {
	res, err := d.Invoke(ctx, name, args)
	if err != nil {
		return ErrorResult(err)
	}
	return res
}

// Invoke runs the named tool and returns its error unrendered.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) (res *Result, err error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "tool.call",
		trace.WithAttributes(attribute.String("tool.name", name)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			errutil.LogErrorContext(ctx, d.logger, "tool call failed", err)
		}
		span.End()
		recordCall(name, statusFor(err), time.Since(start))
	}()

	caller, ok := access.CallerFrom(ctx)
	if !ok {
		return nil, ErrNoCaller(name)
	}
	span.SetAttributes(attribute.String("caller.id", caller.UserID))

	e, ok := d.registry.get(name)
	if !ok {
		return nil, ErrUnknownTool(name)
	}

	if err := d.authorize(ctx, e.tool, caller); err != nil {
		return nil, err
	}

	if err := validateArgs(name, e.validator, args); err != nil {
		return nil, err
	}

	res, err = e.tool.Handler(ctx, &Call{Tool: name, Caller: caller, Args: args})
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = Text()
	}
	return res, nil
}

func (d *Dispatcher) authorize(ctx context.Context, t Tool, caller access.Caller) error {
	if t.Grant == nil {
		return nil
	}
	if access.IsSystemContext(ctx) {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("tool.system_caller", true))
		return nil
	}
	if d.authorizer == nil {
		return ErrPermissionDenied(t.Name, *t.Grant)
	}
	allowed, err := d.authorizer.HasAccess(ctx, caller.UserID, t.Grant.Action, t.Grant.Resource)
	if engine.IsNotFound(err) {
		// A caller the engine does not know holds no grants.
		return ErrPermissionDenied(t.Name, *t.Grant)
	}
	if err != nil {
		return oops.With("tool", t.Name).With("operation", "authorize").Wrap(err)
	}
	if !allowed {
		return ErrPermissionDenied(t.Name, *t.Grant)
	}
	return nil
}
