// Package gateway gives every view one contract for reading and writing
// cookout state, whether that state lives on the device (simulated) or in
// the shared store (live).
package gateway

import (
	"context"
	"errors"

	"github.com/OSCARNAR2018/asado-tracker/event"
	"github.com/OSCARNAR2018/asado-tracker/store"
)

const (
	// LeaderboardSize is how many profiles the live ranking shows.
	LeaderboardSize = 15

	// MaxUsernameLength matches the username columns of the shared store.
	MaxUsernameLength = 100
)

var (
	ErrInvalidSession  = errors.New("username and wish are required, username at most 100 characters")
	ErrLiveUnavailable = errors.New("live store is not configured")
	ErrImmutable       = errors.New("live votes cannot be changed")
)

// Entry is one row of the leaderboard.
type Entry struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
	Wish     string `json:"wish"`
}

type Gateway interface {
	Mode() Mode

	// WatchLeaderboard calls fn with the ranking, and again whenever it
	// changes. After stop returns fn is not called again.
	WatchLeaderboard(ctx context.Context, fn func([]Entry, error)) (stop func())

	HasVoted(ctx context.Context, username string, b event.Ballot) (bool, error)
	CastVote(ctx context.Context, username string, b event.Ballot, choiceID string) error
	ClearVote(ctx context.Context, username string, b event.Ballot) error

	SyncProfile(ctx context.Context, username, wish string) error
}

// Remote is the part of the shared store the live gateway needs.
//
//go:generate mockgen -destination=mock_remote_test.go -package=gateway . Remote
type Remote interface {
	UpsertProfile(ctx context.Context, username, wish string) error
	GetProfile(ctx context.Context, username string) (*store.Profile, error)
	RecordVote(ctx context.Context, b event.Ballot, username, choiceID string) error
	WatchTop(ctx context.Context, limit int, fn func([]store.Profile, error)) (stop func())
}
