package publish

import "sync"

// Guard is the in-flight flag of every form instance: while a publish for an
// instance runs, further submissions of that instance are refused.
// Different instances never block each other.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGuard returns a guard with nothing in flight.
func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]struct{})}
}

// TryAcquire marks id as in flight. It returns false if it already was.
func (g *Guard) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[id]; busy {
		return false
	}
	g.inflight[id] = struct{}{}
	return true
}

// Release clears the flag for id.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	delete(g.inflight, id)
	g.mu.Unlock()
}

// InFlight reports whether a publish for id is running.
func (g *Guard) InFlight(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inflight[id]
	return busy
}
