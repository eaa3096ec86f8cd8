package obs

import "context"

type routePatternKey struct{}

// WithRoutePattern records the matched chi pattern so HTTP metrics label by
// route template instead of raw path, keeping cardinality bounded across
// cart ids.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the recorded pattern, or "" when the
// request never matched a route.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(routePatternKey{}).(string)
	return pattern
}
