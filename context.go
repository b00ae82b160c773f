package tabsession

import "context"

type tabIDContextKey struct{}

// WithTabID attaches the originating tab identifier to ctx. The default
// HTTP identity client forwards it as the X-Tab-ID header so the identity
// service can correlate requests from the same browsing context.
func WithTabID(ctx context.Context, tabID string) context.Context {
	return context.WithValue(ctx, tabIDContextKey{}, tabID)
}

// TabIDFromContext returns the tab identifier attached by [WithTabID], or
// the empty string.
func TabIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tabID, _ := ctx.Value(tabIDContextKey{}).(string)
	return tabID
}
