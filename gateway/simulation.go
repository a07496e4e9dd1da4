package gateway

import (
	"context"
	"fmt"
	"slices"

	"github.com/OSCARNAR2018/asado-tracker/event"
	"github.com/OSCARNAR2018/asado-tracker/store"
)

var simulatedLeaderboard = []Entry{
	{Username: "Dani el Capo (Sim)", Points: 1250, Wish: "Chocotorta helada"},
	{Username: "Zunilda (Sim)", Points: 980, Wish: "Flan con mucho dulce"},
	{Username: "Mago del Carbón (Sim)", Points: 850, Wish: "Queso y dulce"},
}

// SimulatedLeaderboard returns a copy of the fixed demo ranking.
func SimulatedLeaderboard() []Entry {
	return slices.Clone(simulatedLeaderboard)
}

// Simulation keeps everything in the device's local mirror.
type Simulation struct {
	kv store.KV
}

func NewSimulation(kv store.KV) *Simulation {
	return &Simulation{kv: kv}
}

func (s *Simulation) Mode() Mode {
	return Mode{Simulated: true}
}

func (s *Simulation) WatchLeaderboard(_ context.Context, fn func([]Entry, error)) func() {
	fn(SimulatedLeaderboard(), nil)

	return func() {}
}

func (s *Simulation) HasVoted(ctx context.Context, username string, b event.Ballot) (bool, error) {
	v, ok, err := s.kv.Get(ctx, store.VotedKey(b.ID, username))
	if err != nil {
		return false, err
	}

	return ok && v == "true", nil
}

func (s *Simulation) CastVote(ctx context.Context, username string, b event.Ballot, choiceID string) error {
	if err := s.kv.Set(ctx, store.VotedKey(b.ID, username), "true"); err != nil {
		return fmt.Errorf("record simulated %s vote: %w", b.ID, err)
	}

	return nil
}

func (s *Simulation) ClearVote(ctx context.Context, username string, b event.Ballot) error {
	return s.kv.Delete(ctx, store.VotedKey(b.ID, username))
}

// SyncProfile has nothing to do; the session keys are already local.
func (s *Simulation) SyncProfile(context.Context, string, string) error {
	return nil
}
