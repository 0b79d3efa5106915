package http

import "sync"

// credentials is a username and password pair.
type credentials struct {
	username string
	password string
}

// identityGate keeps requests from running under another caller's
// credentials.
//
// The connector holds a single credential pair for all calls. Requests
// presenting the bound pair share the gate; a request presenting another pair
// waits until every in-flight request has finished, then rebinds. Arrivals
// for the bound pair queue behind such a waiter so a busy caller cannot
// starve the others.
type identityGate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	bound   bool
	current credentials
	active  int
	waiting int
}

func newIdentityGate() *identityGate {
	g := &identityGate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// acquire blocks until id may be bound, calling bind if it is not the current
// pair. Every acquire must be paired with release.
func (g *identityGate) acquire(id credentials, bind func(username, password string)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.admits(id) {
		g.waiting++
		for g.active > 0 {
			g.cond.Wait()
		}
		g.waiting--
	}

	if !g.bound || g.current != id {
		bind(id.username, id.password)
		g.current = id
		g.bound = true
	}
	g.active++
}

// admits reports whether id can join the requests in flight. Called with mu
// held.
func (g *identityGate) admits(id credentials) bool {
	if g.active == 0 {
		return true
	}
	return g.bound && g.current == id && g.waiting == 0
}

func (g *identityGate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active--
	if g.active == 0 {
		g.cond.Broadcast()
	}
}
