package eventbus

import "context"

type dispatchCtxKey struct{}

// dispatchState tracks the topics whose handlers are currently running on
// one publication call stack.
type dispatchState struct {
	inFlight map[string]struct{}
}

func withDispatch(ctx context.Context, state *dispatchState) context.Context {
	return context.WithValue(ctx, dispatchCtxKey{}, state)
}

func dispatchFrom(ctx context.Context) (*dispatchState, bool) {
	state, ok := ctx.Value(dispatchCtxKey{}).(*dispatchState)
	return state, ok && state != nil
}

// IsDispatching returns true if ctx belongs to a running publication, i.e.
// it was handed to an event handler or to an Exclusive callback.
func IsDispatching(ctx context.Context) bool {
	_, ok := dispatchFrom(ctx)
	return ok
}

// Detach returns a context that keeps ctx's values but neither its
// cancellation nor its membership in a running publication. Work that a
// handler hands to another goroutine runs on a detached context, so its own
// publications and Exclusive calls take the dispatch lock like any other
// caller.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), dispatchCtxKey{}, (*dispatchState)(nil))
}
