package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/OSCARNAR2018/asado-tracker/store"
	"github.com/rs/zerolog"
)

// DefaultSyncTimeout bounds the background profile write after login.
const DefaultSyncTimeout = 10 * time.Second

type Session struct {
	Username string `json:"username"`
	Wish     string `json:"wish"`
}

// Synchronizer is one device's entry point: it owns the mode flag, picks the
// gateway for the current mode and manages the login session.
type Synchronizer struct {
	kv          store.KV
	flag        *Flag
	sim         *Simulation
	live        *Live
	logger      zerolog.Logger
	syncTimeout time.Duration

	background sync.WaitGroup
}

// NewSynchronizer builds a synchronizer over kv. remote may be nil, in which
// case live mode cannot be selected.
func NewSynchronizer(kv store.KV, remote Remote, logger zerolog.Logger, syncTimeout time.Duration) *Synchronizer {
	if syncTimeout <= 0 {
		syncTimeout = DefaultSyncTimeout
	}

	return &Synchronizer{
		kv:          kv,
		flag:        NewFlag(kv, logger),
		sim:         NewSimulation(kv),
		live:        NewLive(remote),
		logger:      logger,
		syncTimeout: syncTimeout,
	}
}

func (s *Synchronizer) Mode(ctx context.Context) Mode {
	return s.flag.Get(ctx)
}

// SetMode persists the mode and re-runs every mounted view's query before it
// returns.
func (s *Synchronizer) SetMode(ctx context.Context, simulated bool) error {
	if !simulated && !s.live.Available() {
		return ErrLiveUnavailable
	}

	return s.flag.Set(ctx, Mode{Simulated: simulated})
}

func (s *Synchronizer) OnModeChange(fn func(Mode)) (unsubscribe func()) {
	return s.flag.OnChange(fn)
}

func (s *Synchronizer) LiveAvailable() bool {
	return s.live.Available()
}

// Gateway returns the implementation for the current mode.
func (s *Synchronizer) Gateway(ctx context.Context) Gateway {
	if s.flag.Get(ctx).Simulated {
		return s.sim
	}

	return s.live
}

// Login stores the session locally and returns at once. In live mode the
// profile is written in the background; a failure there is only logged.
func (s *Synchronizer) Login(ctx context.Context, username, wish string) (Session, error) {
	session := Session{
		Username: strings.TrimSpace(username),
		Wish:     strings.TrimSpace(wish),
	}
	if session.Username == "" || session.Wish == "" || utf8.RuneCountInString(session.Username) > MaxUsernameLength {
		return Session{}, ErrInvalidSession
	}

	if err := s.kv.Set(ctx, store.KeyUser, session.Username); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeyWish, session.Wish); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	gw := s.Gateway(ctx)
	if gw.Mode().Simulated {
		return session, nil
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)
		defer cancel()

		if err := gw.SyncProfile(ctx, session.Username, session.Wish); err != nil {
			s.logger.Warn().
				Err(err).
				Str("username", session.Username).
				Msg("profile sync failed")
			return
		}

		s.logger.Debug().Str("username", session.Username).Msg("profile synced")
	}()

	return session, nil
}

func (s *Synchronizer) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, store.KeyUser, store.KeyWish); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	return nil
}

// Session returns the logged-in user of this device, if any.
func (s *Synchronizer) Session(ctx context.Context) (Session, bool, error) {
	user, ok, err := s.kv.Get(ctx, store.KeyUser)
	if err != nil || !ok || user == "" {
		return Session{}, false, err
	}

	wish, _, err := s.kv.Get(ctx, store.KeyWish)
	if err != nil {
		return Session{}, false, err
	}

	return Session{Username: user, Wish: wish}, true, nil
}

// Wait blocks until background profile writes have finished.
func (s *Synchronizer) Wait() {
	s.background.Wait()
}

func (s *Synchronizer) idle() bool {
	return s.flag.Subscribers() == 0
}
