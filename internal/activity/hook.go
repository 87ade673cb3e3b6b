package activity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/metrics"
)

// DefaultHookTimeout bounds one deferred audit closure and its writes.
const DefaultHookTimeout = 10 * time.Second

// Deferred builds the audit entries for a committed mutation. It runs after
// the handler has returned, on a context detached from the request.
type Deferred func(ctx context.Context) ([]Entry, error)

// Hook runs deferred audit work after a mutation has committed. Failures are
// logged and counted, never returned to the caller.
type Hook struct {
	recorder *Recorder
	metrics  *metrics.Metrics
	timeout  time.Duration
	wg       sync.WaitGroup
}

// HookOption configures a Hook.
type HookOption func(*Hook)

// WithHookTimeout overrides DefaultHookTimeout.
func WithHookTimeout(d time.Duration) HookOption {
	return func(h *Hook) { h.timeout = d }
}

// WithHookMetrics counts swallowed audit failures.
func WithHookMetrics(m *metrics.Metrics) HookOption {
	return func(h *Hook) { h.metrics = m }
}

func NewHook(recorder *Recorder, opts ...HookOption) *Hook {
	h := &Hook{
		recorder: recorder,
		timeout:  DefaultHookTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type requestStateKey struct{}

type requestState struct {
	fired atomic.Bool
}

// Attach marks ctx as one external request. Only the first Deferred
// scheduled under an attached context runs.
func (h *Hook) Attach(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestStateKey{}, &requestState{})
}

// After schedules d and returns immediately. It reports false when an audit
// closure already fired for the request attached to ctx.
func (h *Hook) After(ctx context.Context, d Deferred) bool {
	if st, ok := ctx.Value(requestStateKey{}).(*requestState); ok {
		if !st.fired.CompareAndSwap(false, true) {
			log.Debug().Msg("activity: audit already fired for request")
			return false
		}
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()

		h.run(runCtx, d)
	}()

	return true
}

// Wait blocks until all scheduled closures have finished.
func (h *Hook) Wait() {
	h.wg.Wait()
}

func (h *Hook) run(ctx context.Context, d Deferred) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.AuditFailed("panic")
			log.Error().Interface("panic", r).Msg("activity: audit closure panicked")
		}
	}()

	entries, err := d(ctx)
	if err != nil {
		h.fail(err, "activity: audit closure failed")
		return
	}

	for _, e := range entries {
		if _, err := h.recorder.RecordIfNew(ctx, e); err != nil {
			h.fail(err, "activity: record failed")
		}
	}
}

func (h *Hook) fail(err error, msg string) {
	reason := "internal"
	switch {
	case errors.Is(err, domain.ErrActorNotFound):
		reason = "actor_not_found"
	case errors.Is(err, domain.ErrMissingSnapshot):
		reason = "missing_snapshot"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	}
	h.metrics.AuditFailed(reason)
	log.Error().Err(err).Str("reason", reason).Msg(msg)
}
