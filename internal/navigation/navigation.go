// Package navigation tracks the client's current route. The terminal
// client and the group view use it to redirect to login when the session
// is missing or expired.
package navigation

import (
	"log/slog"
	"strings"
	"sync"
)

const (
	RouteLogin     = "/login"
	RouteSignup    = "/signup"
	RouteDashboard = "/dashboard"
	routeGroups    = "/groups/"
)

// GroupRoute returns the detail route of a group.
func GroupRoute(groupID string) string {
	return routeGroups + groupID
}

// GroupID extracts the group ID from a detail route.
func GroupID(route string) (string, bool) {
	id, ok := strings.CutPrefix(route, routeGroups)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Navigator moves the client to another route.
type Navigator interface {
	Navigate(route string)
}

// Router is a Navigator that records history and notifies listeners.
type Router struct {
	mu        sync.Mutex
	history   []string
	listeners []func(route string)
}

// NewRouter creates a router positioned at start.
func NewRouter(start string) *Router {
	return &Router{history: []string{start}}
}

// Navigate records route and calls every listener.
func (r *Router) Navigate(route string) {
	r.mu.Lock()
	r.history = append(r.history, route)
	listeners := append([]func(string){}, r.listeners...)
	r.mu.Unlock()

	slog.Debug("Navigate", "route", route)
	for _, l := range listeners {
		l(route)
	}
}

// OnNavigate registers a listener called after every navigation.
func (r *Router) OnNavigate(fn func(route string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Current returns the latest route.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return ""
	}
	return r.history[len(r.history)-1]
}

// History returns every route visited, oldest first.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}
