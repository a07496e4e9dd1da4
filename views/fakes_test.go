package views

import (
	"context"
	"sync"

	"github.com/OSCARNAR2018/asado-tracker/event"
	"github.com/OSCARNAR2018/asado-tracker/gateway"
)

// fakeGateway records every call and lets tests push leaderboard updates.
type fakeGateway struct {
	mu        sync.Mutex
	simulated bool
	entries   []gateway.Entry

	watchCalls  int
	statusCalls int
	stops       int
	watchers    map[int]func([]gateway.Entry, error)
	next        int
	// leaky keeps calling stopped subscribers, like a store that delivers
	// one more update after cancellation
	leaky bool

	voted     map[string]bool
	castErr   error
	castGate  chan struct{}
	castCalls int
}

func newFakeGateway(simulated bool) *fakeGateway {
	return &fakeGateway{
		simulated: simulated,
		watchers:  make(map[int]func([]gateway.Entry, error)),
		voted:     make(map[string]bool),
	}
}

func (g *fakeGateway) Mode() gateway.Mode {
	return gateway.Mode{Simulated: g.simulated}
}

func (g *fakeGateway) WatchLeaderboard(_ context.Context, fn func([]gateway.Entry, error)) func() {
	g.mu.Lock()
	g.watchCalls++
	id := g.next
	g.next++
	g.watchers[id] = fn
	entries := g.entries
	g.mu.Unlock()

	fn(entries, nil)

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if _, ok := g.watchers[id]; ok {
			g.stops++
			if !g.leaky {
				delete(g.watchers, id)
			}
		}
	}
}

// push delivers entries to every open subscription, the way a store change
// would.
func (g *fakeGateway) push(entries []gateway.Entry) {
	g.mu.Lock()
	g.entries = entries
	fns := make([]func([]gateway.Entry, error), 0, len(g.watchers))
	for _, fn := range g.watchers {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(entries, nil)
	}
}

func (g *fakeGateway) open() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.watchers)
}

func (g *fakeGateway) key(username string, b event.Ballot) string {
	return b.ID + ":" + username
}

func (g *fakeGateway) HasVoted(_ context.Context, username string, b event.Ballot) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	return g.voted[g.key(username, b)], nil
}

func (g *fakeGateway) CastVote(_ context.Context, username string, b event.Ballot, _ string) error {
	g.mu.Lock()
	g.castCalls++
	gate := g.castGate
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.castErr != nil {
		return g.castErr
	}
	g.voted[g.key(username, b)] = true
	return nil
}

func (g *fakeGateway) ClearVote(_ context.Context, username string, b event.Ballot) error {
	if !g.simulated {
		return gateway.ErrImmutable
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.voted, g.key(username, b))
	return nil
}

func (g *fakeGateway) SyncProfile(context.Context, string, string) error {
	return nil
}

func (g *fakeGateway) counts() (watch, status, casts int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.watchCalls, g.statusCalls, g.castCalls
}

// fakeSource switches between two fake gateways like a synchronizer does.
type fakeSource struct {
	mu        sync.Mutex
	simulated bool
	sim, live *fakeGateway
	next      int
	handlers  map[int]func(gateway.Mode)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		simulated: true,
		sim:       newFakeGateway(true),
		live:      newFakeGateway(false),
		handlers:  make(map[int]func(gateway.Mode)),
	}
}

func (s *fakeSource) Gateway(context.Context) gateway.Gateway {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.simulated {
		return s.sim
	}
	return s.live
}

func (s *fakeSource) OnModeChange(fn func(gateway.Mode)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.handlers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

func (s *fakeSource) setMode(simulated bool) {
	s.mu.Lock()
	s.simulated = simulated
	fns := make([]func(gateway.Mode), 0, len(s.handlers))
	for _, fn := range s.handlers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(gateway.Mode{Simulated: simulated})
	}
}

func (s *fakeSource) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// recorder collects rendered documents.
type recorder struct {
	mu     sync.Mutex
	states []any
}

func (r *recorder) render(state any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *recorder) last() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return nil
	}
	return r.states[len(r.states)-1]
}

func (r *recorder) lastBallot() BallotState {
	s, _ := r.last().(BallotState)
	return s
}

func (r *recorder) lastLeaderboard() LeaderboardState {
	s, _ := r.last().(LeaderboardState)
	return s
}
