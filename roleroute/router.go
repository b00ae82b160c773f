// Package roleroute maps an authenticated user's role to the canonical
// landing path for that role. Resolution is pure and total: every input
// string, recognized or not, resolves to some path.
package roleroute

import "strings"

// Default paths used when [Config] leaves them unset.
const (
	DefaultLoginPath = "/auth/login"

	// DefaultFallbackPath is the path returned for an unrecognized or
	// empty role. Falling back to the admin landing page mirrors the
	// historical behavior; deployments that consider that too permissive
	// should set Config.FallbackPath to a neutral page.
	DefaultFallbackPath = "/admin"
)

func defaultRoutes() map[string]string {
	return map[string]string{
		"admin":            "/admin",
		"property_manager": "/property-manager",
		"tenant":           "/tenant",
		"landlord":         "/landlord",
	}
}

// Config configures a [Router]. Zero values select the defaults above.
type Config struct {
	// Routes maps lower-case role names to landing paths. When nil, the
	// built-in four-role table is used. When non-nil, it replaces the
	// table entirely.
	Routes map[string]string
	// FallbackPath is returned for roles absent from the table.
	FallbackPath string
	// LoginPath is the destination for navigation without a user.
	LoginPath string
}

// Router resolves roles to paths against a fixed table captured at
// construction time.
type Router struct {
	routes   map[string]string
	fallback string
	login    string
}

// NewRouter builds a Router from cfg, copying the route table so later
// mutation of cfg.Routes cannot change resolution.
func NewRouter(cfg Config) *Router {
	routes := cfg.Routes
	if routes == nil {
		routes = defaultRoutes()
	}
	table := make(map[string]string, len(routes))
	for role, path := range routes {
		table[strings.ToLower(strings.TrimSpace(role))] = path
	}
	fallback := cfg.FallbackPath
	if fallback == "" {
		fallback = DefaultFallbackPath
	}
	login := cfg.LoginPath
	if login == "" {
		login = DefaultLoginPath
	}
	return &Router{routes: table, fallback: fallback, login: login}
}

// Resolve returns the landing path for role. Matching is case-insensitive
// and ignores surrounding whitespace; unrecognized roles resolve to the
// fallback path.
func (r *Router) Resolve(role string) string {
	if path, ok := r.routes[strings.ToLower(strings.TrimSpace(role))]; ok {
		return path
	}
	return r.fallback
}

// LoginPath returns the path for unauthenticated navigation.
func (r *Router) LoginPath() string { return r.login }
