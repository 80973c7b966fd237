package services

import "context"

// Work identifies the claimed queue item a context is acting for. It rides
// the context so converters and loggers deep in the call chain can tag their
// output without extra parameters.
type Work struct {
	ItemID        int64
	CorrelationID string
	Attempt       int
}

type workKey struct{}

// WithWork attaches w to ctx. A zero ItemID leaves ctx unchanged.
func WithWork(ctx context.Context, w Work) context.Context {
	if w.ItemID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, workKey{}, w)
}

// WorkFromContext returns the work annotation carried by ctx.
func WorkFromContext(ctx context.Context) (Work, bool) {
	if ctx == nil {
		return Work{}, false
	}
	w, ok := ctx.Value(workKey{}).(Work)
	return w, ok
}

// CorrelationID returns the lease correlation id carried by ctx, or "".
func CorrelationID(ctx context.Context) string {
	w, _ := WorkFromContext(ctx)
	return w.CorrelationID
}
