package obs

import (
	"context"

	"github.com/go-chi/chi/v5"
)

type routeKey struct{}

// WithRoutePattern pins the route label reported for ctx, taking precedence over the
// pattern chi matches.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the pinned route label, or the pattern chi has matched
// so far. It is empty before routing and for unmatched paths.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if pinned, ok := ctx.Value(routeKey{}).(string); ok && pinned != "" {
		return pinned
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
