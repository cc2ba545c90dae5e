package progress

import (
	"context"
	"time"
)

type runKey struct{}

type run struct {
	id      string
	kind    Kind
	emitter Emitter
}

// WithEmitter returns a context whose runs report to em.
func WithEmitter(ctx context.Context, em Emitter) context.Context {
	r := current(ctx)
	r.emitter = em
	return context.WithValue(ctx, runKey{}, r)
}

// WithRun returns a context scoped to run id of the given kind. The emitter
// already in ctx is kept.
func WithRun(ctx context.Context, id string, kind Kind) context.Context {
	r := current(ctx)
	r.id = id
	r.kind = kind
	return context.WithValue(ctx, runKey{}, r)
}

// RunID returns the run ID carried by ctx, or "".
func RunID(ctx context.Context) string {
	return current(ctx).id
}

// Report stamps evt with the run in ctx and emits it. It is a no-op when ctx
// carries no run or no emitter.
func Report(ctx context.Context, evt Event) {
	r := current(ctx)
	if r.emitter == nil || r.id == "" {
		return
	}
	evt.RunID = r.id
	if evt.Kind == "" {
		evt.Kind = r.kind
	}
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	r.emitter.Emit(evt)
}

func current(ctx context.Context) run {
	r, _ := ctx.Value(runKey{}).(run)
	return r
}
