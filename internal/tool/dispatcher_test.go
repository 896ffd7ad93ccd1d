// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zombify/zombify/internal/access"
	"github.com/zombify/zombify/internal/access/accesstest"
	"github.com/zombify/zombify/internal/engine"
	"github.com/zombify/zombify/pkg/errutil"
)

var manageStory = &Grant{Action: "manage", Resource: "story_state"}

type stubAuthorizer struct {
	allowed bool
	err     error
}

func (s stubAuthorizer) HasAccess(context.Context, string, string, string) (bool, error) {
	return s.allowed, s.err
}

func newDispatcher(t *testing.T, authz Authorizer, tools ...Tool) *Dispatcher {
	t.Helper()
	reg := NewRegistry()
	for _, tl := range tools {
		require.NoError(t, reg.Register(tl))
	}
	d, err := NewDispatcher(reg, authz)
	require.NoError(t, err)
	return d
}

func adminTool() Tool {
	return Tool{
		Name:  "admin",
		Grant: manageStory,
		Handler: func(_ context.Context, call *Call) (*Result, error) {
			return Text("hello " + call.Caller.UserID), nil
		},
	}
}

func TestNewDispatcher_NilRegistry(t *testing.T) {
	_, err := NewDispatcher(nil, nil)
	errutil.AssertErrorCode(t, err, CodeInvalidTool)
}

func TestDispatcher_Invoke(t *testing.T) {
	d := newDispatcher(t, nil, echoTool("echo"))

	res, err := d.Invoke(accesstest.Context("alice"), "echo", json.RawMessage(`{"message":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"echo: hi"}, res.Texts())
	assert.False(t, res.IsError)
}

func TestDispatcher_PassesCaller(t *testing.T) {
	email := "alice@example.com"
	var got access.Caller
	d := newDispatcher(t, nil, Tool{
		Name: "whoami",
		Handler: func(_ context.Context, call *Call) (*Result, error) {
			got = call.Caller
			return Text(call.Caller.UserID), nil
		},
	})

	ctx := access.WithCaller(context.Background(), access.Caller{UserID: "alice", Email: &email})
	_, err := d.Invoke(ctx, "whoami", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, &email, got.Email)
}

func TestDispatcher_NoCaller(t *testing.T) {
	called := false
	d := newDispatcher(t, nil, Tool{
		Name: "noop",
		Handler: func(context.Context, *Call) (*Result, error) {
			called = true
			return Text(), nil
		},
	})

	_, err := d.Invoke(context.Background(), "noop", nil)
	errutil.AssertErrorCode(t, err, CodeNoCaller)
	assert.False(t, called)
}

func TestDispatcher_UnknownTool(t *testing.T) {
	d := newDispatcher(t, nil)

	res := d.Dispatch(accesstest.Context("alice"), "missing", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, CategoryNotFound, res.Category)
	assert.Equal(t, []string{"unknown tool: missing"}, res.Texts())
}

func TestDispatcher_InvalidArgsSkipHandler(t *testing.T) {
	called := false
	tl := echoTool("echo")
	tl.Handler = func(context.Context, *Call) (*Result, error) {
		called = true
		return Text(), nil
	}
	d := newDispatcher(t, nil, tl)

	res := d.Dispatch(accesstest.Context("alice"), "echo", json.RawMessage(`{"message":42}`))
	assert.True(t, res.IsError)
	assert.Equal(t, CategoryValidation, res.Category)
	assert.False(t, called)
}

func TestDispatcher_GrantCheck(t *testing.T) {
	e := accesstest.Engine(t, map[string][]string{
		"admin":  {"story_state:manage"},
		"player": {},
	})
	d := newDispatcher(t, access.NewService(e), adminTool())

	t.Run("holder allowed", func(t *testing.T) {
		res, err := d.Invoke(accesstest.Context("admin"), "admin", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"hello admin"}, res.Texts())
	})

	t.Run("non-holder denied", func(t *testing.T) {
		_, err := d.Invoke(accesstest.Context("player"), "admin", nil)
		errutil.AssertErrorCode(t, err, CodePermissionDenied)
		errutil.AssertErrorContext(t, err, "grant", "story_state:manage")
	})

	t.Run("unknown user denied", func(t *testing.T) {
		_, err := d.Invoke(accesstest.Context("stranger"), "admin", nil)
		errutil.AssertErrorCode(t, err, CodePermissionDenied)
	})

	t.Run("system context bypasses grant", func(t *testing.T) {
		ctx := access.WithSystemSubject(accesstest.Context("operator"))
		res, err := d.Invoke(ctx, "admin", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"hello operator"}, res.Texts())
	})
}

func TestDispatcher_GrantCheckEngineFailure(t *testing.T) {
	cause := engine.ErrUnavailable("check", errors.New("connection refused"))
	d := newDispatcher(t, stubAuthorizer{err: cause}, adminTool())

	res := d.Dispatch(accesstest.Context("admin"), "admin", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, CategoryTransient, res.Category)
	assert.True(t, res.Retryable)
}

func TestDispatcher_GrantWithoutAuthorizer(t *testing.T) {
	d := newDispatcher(t, nil, adminTool())

	_, err := d.Invoke(accesstest.Context("admin"), "admin", nil)
	errutil.AssertErrorCode(t, err, CodePermissionDenied)
}

func TestDispatcher_HandlerErrorMessageUnchanged(t *testing.T) {
	cause := engine.ErrConflict("role", "medic")
	d := newDispatcher(t, nil, Tool{
		Name: "fail",
		Handler: func(context.Context, *Call) (*Result, error) {
			return nil, cause
		},
	})

	res := d.Dispatch(accesstest.Context("alice"), "fail", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, []string{cause.Error()}, res.Texts())
	assert.Equal(t, CategoryConflict, res.Category)
}

func TestDispatcher_NilResult(t *testing.T) {
	d := newDispatcher(t, nil, Tool{
		Name:    "quiet",
		Handler: func(context.Context, *Call) (*Result, error) { return nil, nil },
	})

	res, err := d.Invoke(accesstest.Context("alice"), "quiet", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Content)
}

func TestDispatcher_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)

	d := newDispatcher(t, nil, echoTool("metered"))
	ctx := accesstest.Context("alice")

	okBefore := testutil.ToFloat64(ToolCalls.WithLabelValues("metered", StatusSuccess))
	badBefore := testutil.ToFloat64(ToolCalls.WithLabelValues("metered", StatusInvalidArgs))

	_ = d.Dispatch(ctx, "metered", json.RawMessage(`{"message":"a"}`))
	_ = d.Dispatch(ctx, "metered", json.RawMessage(`{}`))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ToolCalls.WithLabelValues("metered", StatusSuccess)))
	assert.Equal(t, badBefore+1, testutil.ToFloat64(ToolCalls.WithLabelValues("metered", StatusInvalidArgs)))
	assert.Positive(t, testutil.CollectAndCount(ToolDuration, "zombify_tool_duration_seconds"))
}

func TestDispatcher_ConcurrentDispatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := accesstest.Engine(t, map[string][]string{"admin": {"story_state:manage"}})
	d := newDispatcher(t, access.NewService(e), echoTool("echo"), adminTool())

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res := d.Dispatch(accesstest.Context("alice"), "echo", json.RawMessage(`{"message":"x"}`))
			assert.False(t, res.IsError)
		}()
		go func() {
			defer wg.Done()
			res := d.Dispatch(accesstest.Context("admin"), "admin", nil)
			assert.False(t, res.IsError)
		}()
	}
	wg.Wait()
}

func TestDispatcher_ContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	d := newDispatcher(t, nil, Tool{
		Name: "slow",
		Handler: func(ctx context.Context, _ *Call) (*Result, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	ctx, cancel := context.WithCancel(accesstest.Context("alice"))
	done := make(chan error)
	go func() {
		_, err := d.Invoke(ctx, "slow", nil)
		done <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
