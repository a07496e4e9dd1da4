package gateway

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/OSCARNAR2018/asado-tracker/store"
	"github.com/rs/zerolog"
)

// Mode selects where a device reads and writes its state.
type Mode struct {
	Simulated bool `json:"simulated"`
}

func (m Mode) String() string {
	if m.Simulated {
		return "simulated"
	}

	return "live"
}

// Flag is the persisted, observable mode of one device. Only the stored
// string "false" selects live mode; anything else, including no value at
// all, is simulated.
type Flag struct {
	kv     store.KV
	logger zerolog.Logger

	setMu sync.Mutex

	mu   sync.Mutex
	next int
	subs map[int]func(Mode)
}

func NewFlag(kv store.KV, logger zerolog.Logger) *Flag {
	return &Flag{
		kv:     kv,
		logger: logger,
		subs:   make(map[int]func(Mode)),
	}
}

func (f *Flag) Get(ctx context.Context) Mode {
	v, ok, err := f.kv.Get(ctx, store.KeySimulated)
	if err != nil {
		f.logger.Warn().Err(err).Msg("could not read mode, assuming simulated")
		return Mode{Simulated: true}
	}
	if !ok {
		return Mode{Simulated: true}
	}

	return Mode{Simulated: v != "false"}
}

// Set persists m and then runs every handler before returning.
func (f *Flag) Set(ctx context.Context, m Mode) error {
	f.setMu.Lock()
	defer f.setMu.Unlock()

	if err := f.kv.Set(ctx, store.KeySimulated, strconv.FormatBool(m.Simulated)); err != nil {
		return fmt.Errorf("persist mode: %w", err)
	}

	f.logger.Debug().Stringer("mode", m).Msg("mode changed")

	for _, fn := range f.handlers() {
		fn(m)
	}

	return nil
}

// OnChange registers fn for every later Set. The returned function removes
// it and may be called more than once.
func (f *Flag) OnChange(fn func(Mode)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *Flag) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.subs)
}

func (f *Flag) handlers() []func(Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]func(Mode), 0, len(ids))
	for _, id := range ids {
		out = append(out, f.subs[id])
	}

	return out
}
