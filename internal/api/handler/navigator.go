package handler

import (
	"sync"

	"github.com/marketbridge/identity-session/internal/core/ports"
)

// Navigator tracks the route the UI reports and the redirect the session
// engine asked for. The UI reads the pending redirect from GET /session.
type Navigator struct {
	mu      sync.Mutex
	route   string
	pending string
}

var _ ports.Navigator = (*Navigator)(nil)

func NewNavigator() *Navigator { return &Navigator{} }

func (n *Navigator) CurrentRoute() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route
}

func (n *Navigator) RequestNavigation(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = route
}

// SetRoute records the UI's current route. Arriving at the pending target
// settles the redirect.
func (n *Navigator) SetRoute(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.route = route
	if route == n.pending {
		n.pending = ""
	}
}

func (n *Navigator) Pending() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending
}
