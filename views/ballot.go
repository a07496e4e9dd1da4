package views

import (
	"context"
	"errors"
	"sync"

	"github.com/OSCARNAR2018/asado-tracker/event"
	"github.com/OSCARNAR2018/asado-tracker/gateway"
	"github.com/OSCARNAR2018/asado-tracker/store"
	"github.com/rs/zerolog"
)

type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseUnvoted    Phase = "unvoted"
	PhaseSubmitting Phase = "submitting"
	PhaseVoted      Phase = "voted"
)

const (
	noticeFailed       = "No se pudo registrar tu voto. Intentá de nuevo."
	noticeAlreadyVoted = "Tu voto ya estaba registrado."
)

type BallotState struct {
	View      string         `json:"view"`
	Ballot    string         `json:"ballot"`
	Title     string         `json:"title"`
	Reward    int            `json:"reward"`
	Phase     Phase          `json:"phase"`
	Simulated bool           `json:"simulated"`
	Choices   []event.Choice `json:"choices"`
	Selected  string         `json:"selected,omitempty"`
	Notice    string         `json:"notice,omitempty"`
	CanChange bool           `json:"canChange"`
}

// Ballot drives one ballot for one user:
//
//	loading -> unvoted -> submitting -> voted
//	submitting -> unvoted    (write failed)
//	voted -> unvoted         (ChangeVote, simulated only)
type Ballot struct {
	src      Source
	ballot   event.Ballot
	username string
	render   Renderer
	logger   zerolog.Logger

	mu        sync.Mutex
	ctx       context.Context
	mounted   bool
	gen       int
	phase     Phase
	simulated bool
	selected  string
	notice    string
	unsubMode func()
}

func NewBallot(src Source, b event.Ballot, username string, render Renderer, logger zerolog.Logger) *Ballot {
	return &Ballot{
		src:      src,
		ballot:   b,
		username: username,
		render:   render,
		logger:   logger.With().Str("ballot", b.ID).Str("username", username).Logger(),
		phase:    PhaseLoading,
	}
}

func (v *Ballot) Mount(ctx context.Context) {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = true
	v.ctx = ctx
	v.mu.Unlock()

	unsub := v.src.OnModeChange(func(gateway.Mode) {
		v.check()
	})

	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		unsub()
		return
	}
	v.unsubMode = unsub
	v.mu.Unlock()

	v.check()
}

func (v *Ballot) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	v.gen++
	unsub := v.unsubMode
	v.unsubMode = nil
	v.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// State returns the current document without rendering it.
func (v *Ballot) State() BallotState {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.stateLocked()
}

// check loads the vote status for the current mode.
func (v *Ballot) check() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.gen++
	gen := v.gen
	ctx := v.ctx
	gw := v.src.Gateway(ctx)
	v.simulated = gw.Mode().Simulated
	v.phase = PhaseLoading
	v.notice = ""
	v.renderLocked()
	v.mu.Unlock()

	voted, err := gw.HasVoted(ctx, v.username, v.ballot)

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted || v.gen != gen {
		return
	}

	switch {
	case err != nil:
		v.logger.Warn().Err(err).Msg("vote status unavailable")
		v.phase = PhaseUnvoted
	case voted:
		v.phase = PhaseVoted
	default:
		v.phase = PhaseUnvoted
	}
	v.renderLocked()
}

func (v *Ballot) Select(choiceID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted {
		return ErrNotMounted
	}
	if _, err := v.ballot.Choice(choiceID); err != nil {
		return err
	}

	switch v.phase {
	case PhaseSubmitting:
		return ErrSubmitting
	case PhaseVoted:
		return ErrAlreadyVoted
	}

	v.selected = choiceID
	v.notice = ""
	v.renderLocked()

	return nil
}

// Submit records the selected choice. While the write is in flight the
// view is submitting and further submits are rejected.
func (v *Ballot) Submit() error {
	v.mu.Lock()

	if !v.mounted {
		v.mu.Unlock()
		return ErrNotMounted
	}

	switch v.phase {
	case PhaseLoading:
		v.mu.Unlock()
		return ErrNotReady
	case PhaseSubmitting:
		v.mu.Unlock()
		return ErrSubmitting
	case PhaseVoted:
		v.mu.Unlock()
		return ErrAlreadyVoted
	}

	if v.selected == "" {
		v.mu.Unlock()
		return ErrNoSelection
	}

	gen := v.gen
	ctx := v.ctx
	choice := v.selected
	gw := v.src.Gateway(ctx)
	v.phase = PhaseSubmitting
	v.notice = ""
	v.renderLocked()
	v.mu.Unlock()

	err := gw.CastVote(ctx, v.username, v.ballot, choice)

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted || v.gen != gen {
		// a remount or mode flip reloads the status on its own
		return err
	}

	switch {
	case errors.Is(err, store.ErrAlreadyVoted):
		v.phase = PhaseVoted
		v.notice = noticeAlreadyVoted
	case err != nil:
		v.logger.Error().Err(err).Str("choice", choice).Msg("vote failed")
		v.phase = PhaseUnvoted
		v.notice = noticeFailed
	default:
		v.logger.Info().Str("choice", choice).Bool("simulated", gw.Mode().Simulated).Msg("vote cast")
		v.phase = PhaseVoted
	}
	v.renderLocked()

	return err
}

// ChangeVote reopens a simulated ballot. Live votes are final.
func (v *Ballot) ChangeVote() error {
	v.mu.Lock()

	if !v.mounted {
		v.mu.Unlock()
		return ErrNotMounted
	}
	if v.phase != PhaseVoted {
		v.mu.Unlock()
		return ErrNotVoted
	}

	gen := v.gen
	ctx := v.ctx
	gw := v.src.Gateway(ctx)
	v.mu.Unlock()

	if !gw.Mode().Simulated {
		return gateway.ErrImmutable
	}

	err := gw.ClearVote(ctx, v.username, v.ballot)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		return err
	}
	if v.mounted && v.gen == gen {
		v.phase = PhaseUnvoted
		v.notice = ""
		v.renderLocked()
	}

	return nil
}

func (v *Ballot) stateLocked() BallotState {
	return BallotState{
		View:      "ballot",
		Ballot:    v.ballot.ID,
		Title:     v.ballot.Title,
		Reward:    v.ballot.Reward,
		Phase:     v.phase,
		Simulated: v.simulated,
		Choices:   v.ballot.Choices,
		Selected:  v.selected,
		Notice:    v.notice,
		CanChange: v.phase == PhaseVoted && v.simulated,
	}
}

func (v *Ballot) renderLocked() {
	v.render(v.stateLocked())
}
