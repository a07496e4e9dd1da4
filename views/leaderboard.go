package views

import (
	"context"
	"sync"

	"github.com/OSCARNAR2018/asado-tracker/gateway"
	"github.com/rs/zerolog"
)

type LeaderboardState struct {
	View      string          `json:"view"`
	Simulated bool            `json:"simulated"`
	Entries   []gateway.Entry `json:"entries"`
}

// Leaderboard keeps one ranking subscription open while mounted and swaps
// it whenever the mode changes.
type Leaderboard struct {
	src    Source
	render Renderer
	logger zerolog.Logger

	mu        sync.Mutex
	ctx       context.Context
	mounted   bool
	gen       int
	stop      func()
	unsubMode func()
}

func NewLeaderboard(src Source, render Renderer, logger zerolog.Logger) *Leaderboard {
	return &Leaderboard{src: src, render: render, logger: logger}
}

func (v *Leaderboard) Mount(ctx context.Context) {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = true
	v.ctx = ctx
	v.mu.Unlock()

	unsub := v.src.OnModeChange(func(gateway.Mode) {
		v.subscribe()
	})

	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		unsub()
		return
	}
	v.unsubMode = unsub
	v.mu.Unlock()

	v.subscribe()
}

// Unmount releases the subscription. No render happens after it returns.
func (v *Leaderboard) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	v.gen++
	stop, unsub := v.stop, v.unsubMode
	v.stop, v.unsubMode = nil, nil
	v.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if stop != nil {
		stop()
	}
}

func (v *Leaderboard) subscribe() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.gen++
	gen := v.gen
	old := v.stop
	v.stop = nil
	ctx := v.ctx
	v.mu.Unlock()

	// never stop a subscription while holding v.mu, its callback takes it
	if old != nil {
		old()
	}

	gw := v.src.Gateway(ctx)
	simulated := gw.Mode().Simulated

	stop := gw.WatchLeaderboard(ctx, func(entries []gateway.Entry, err error) {
		if err != nil {
			v.logger.Warn().Err(err).Bool("simulated", simulated).Msg("leaderboard refresh failed")
			return
		}

		v.mu.Lock()
		defer v.mu.Unlock()

		if !v.mounted || v.gen != gen {
			return
		}

		if entries == nil {
			entries = []gateway.Entry{}
		}
		v.render(LeaderboardState{View: "leaderboard", Simulated: simulated, Entries: entries})
	})

	v.mu.Lock()
	if !v.mounted || v.gen != gen {
		v.mu.Unlock()
		stop()
		return
	}
	v.stop = stop
	v.mu.Unlock()
}
