// Package views turns gateway data into the documents the browser renders.
// Views only talk to a Source, so they behave the same in both modes.
package views

import (
	"context"
	"errors"

	"github.com/OSCARNAR2018/asado-tracker/gateway"
)

var (
	ErrNotMounted   = errors.New("view is not mounted")
	ErrNotReady     = errors.New("vote status is still loading")
	ErrNoSelection  = errors.New("no choice selected")
	ErrSubmitting   = errors.New("a vote is already being submitted")
	ErrAlreadyVoted = errors.New("already voted")
	ErrNotVoted     = errors.New("no vote to change")
)

// Source is what a view needs from a device synchronizer.
type Source interface {
	Gateway(ctx context.Context) gateway.Gateway
	OnModeChange(fn func(gateway.Mode)) (unsubscribe func())
}

// Renderer receives every new state document of a view. It is called with
// the view's lock held and must not call back into the view.
type Renderer func(state any)
