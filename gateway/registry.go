package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/OSCARNAR2018/asado-tracker/store"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Mirror hands out the local key/value view of a device.
type Mirror interface {
	Device(id string) store.KV
}

type RegistryConfig struct {
	Local       Mirror
	Remote      Remote
	Clock       clockwork.Clock
	Logger      zerolog.Logger
	SyncTimeout time.Duration
	IdleTimeout time.Duration
}

type device struct {
	sync       *Synchronizer
	lastActive time.Time
}

// Registry keeps one Synchronizer per device so that every tab of a device
// shares its mode flag.
type Registry struct {
	cfg RegistryConfig

	mu      sync.Mutex
	devices map[string]*device
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Registry{
		cfg:     cfg,
		devices: make(map[string]*device),
	}
}

func (r *Registry) LiveAvailable() bool {
	return r.cfg.Remote != nil
}

// For returns the synchronizer of device id, creating it on first use.
func (r *Registry) For(id string) *Synchronizer {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.cfg.Clock.Now()

	if d, ok := r.devices[id]; ok {
		d.lastActive = now
		return d.sync
	}

	s := NewSynchronizer(
		r.cfg.Local.Device(id),
		r.cfg.Remote,
		r.cfg.Logger.With().Str("device", id).Logger(),
		r.cfg.SyncTimeout,
	)
	r.devices[id] = &device{sync: s, lastActive: now}

	return s
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.devices)
}

// Run drops devices that have been idle longer than IdleTimeout and have no
// mounted views, until ctx ends.
func (r *Registry) Run(ctx context.Context) {
	if r.cfg.IdleTimeout <= 0 {
		return
	}

	ticker := r.cfg.Clock.NewTicker(r.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.reap()
		}
	}
}

func (r *Registry) reap() {
	cutoff := r.cfg.Clock.Now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, d := range r.devices {
		if d.lastActive.Before(cutoff) && d.sync.idle() {
			delete(r.devices, id)
			r.cfg.Logger.Debug().Str("device", id).Msg("device released")
		}
	}
}
