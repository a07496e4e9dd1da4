package gateway

import (
	"context"

	"github.com/OSCARNAR2018/asado-tracker/event"
	"github.com/OSCARNAR2018/asado-tracker/store"
)

// Live reads and writes the shared remote store. A Live without a remote
// fails every call with ErrLiveUnavailable.
type Live struct {
	remote Remote
}

func NewLive(remote Remote) *Live {
	return &Live{remote: remote}
}

func (l *Live) Available() bool {
	return l.remote != nil
}

func (l *Live) Mode() Mode {
	return Mode{Simulated: false}
}

func (l *Live) WatchLeaderboard(ctx context.Context, fn func([]Entry, error)) func() {
	if l.remote == nil {
		fn(nil, ErrLiveUnavailable)
		return func() {}
	}

	return l.remote.WatchTop(ctx, LeaderboardSize, func(profiles []store.Profile, err error) {
		if err != nil {
			fn(nil, err)
			return
		}

		entries := make([]Entry, 0, len(profiles))
		for _, p := range profiles {
			entries = append(entries, Entry{Username: p.Username, Points: p.Points, Wish: p.Wish})
		}
		fn(entries, nil)
	})
}

func (l *Live) HasVoted(ctx context.Context, username string, b event.Ballot) (bool, error) {
	if l.remote == nil {
		return false, ErrLiveUnavailable
	}

	p, err := l.remote.GetProfile(ctx, username)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}

	return p.Voted(b.FlagField), nil
}

func (l *Live) CastVote(ctx context.Context, username string, b event.Ballot, choiceID string) error {
	if l.remote == nil {
		return ErrLiveUnavailable
	}

	return l.remote.RecordVote(ctx, b, username, choiceID)
}

func (l *Live) ClearVote(context.Context, string, event.Ballot) error {
	return ErrImmutable
}

func (l *Live) SyncProfile(ctx context.Context, username, wish string) error {
	if l.remote == nil {
		return ErrLiveUnavailable
	}

	return l.remote.UpsertProfile(ctx, username, wish)
}
