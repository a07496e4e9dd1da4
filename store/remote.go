package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/OSCARNAR2018/asado-tracker/event"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var ErrAlreadyVoted = errors.New("vote already recorded")

// Feed kinds accepted by RemoteConfig.
const (
	FeedPostgres = "postgres"
	FeedNATS     = "nats"
	FeedLocal    = "local"
)

type RemoteConfig struct {
	DSN         string
	Feed        string
	NATSURL     string
	NATSSubject string
	Verbose     bool
}

// Remote is the shared document store: profiles plus one append-only vote
// table per ballot.
type Remote struct {
	db     *gorm.DB
	feed   Feed
	clock  clockwork.Clock
	logger zerolog.Logger
}

func NewRemote(db *gorm.DB, feed Feed, clock clockwork.Clock, logger zerolog.Logger) *Remote {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Remote{db: db, feed: feed, clock: clock, logger: logger}
}

// OpenRemote connects to PostgreSQL, applies migrations and starts the
// configured change feed.
func OpenRemote(ctx context.Context, cfg RemoteConfig, clock clockwork.Clock, logger zerolog.Logger) (*Remote, error) {
	if err := Migrate(cfg.DSN); err != nil {
		return nil, err
	}

	level := gormlogger.Silent
	if cfg.Verbose {
		level = gormlogger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open remote store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("remote store handle: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping remote store: %w", err)
	}

	var feed Feed

	switch cfg.Feed {
	case FeedNATS:
		feed, err = NewNATSFeed(cfg.NATSURL, cfg.NATSSubject, logger)
	case FeedLocal:
		feed = NewLocalFeed()
	default:
		feed, err = NewPostgresFeed(cfg.DSN, sqlDB, DefaultNotifyChannel, logger)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return NewRemote(db, feed, clock, logger), nil
}

func (r *Remote) Close() error {
	feedErr := r.feed.Close()

	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return errors.Join(feedErr, sqlDB.Close())
}

func (r *Remote) notify(ctx context.Context) {
	if err := r.feed.Publish(ctx, TopicProfiles); err != nil {
		r.logger.Warn().Err(err).Msg("failed to publish profile change")
	}
}

// UpsertProfile creates the profile or refreshes its wish. Points and vote
// flags are never touched here.
func (r *Remote) UpsertProfile(ctx context.Context, username, wish string) error {
	p := Profile{
		Username:  username,
		Wish:      wish,
		UpdatedAt: r.clock.Now().UTC(),
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"wish", "updated_at"}),
		}).
		Create(&p).Error
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", username, err)
	}

	r.notify(ctx)

	return nil
}

// GetProfile returns nil, nil when username has no profile yet.
func (r *Remote) GetProfile(ctx context.Context, username string) (*Profile, error) {
	var p Profile

	err := r.db.WithContext(ctx).Where("username = ?", username).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile %s: %w", username, err)
	}

	return &p, nil
}

// Top returns up to limit profiles by points, highest first.
func (r *Remote) Top(ctx context.Context, limit int) ([]Profile, error) {
	var profiles []Profile

	err := r.db.WithContext(ctx).
		Order("points DESC").
		Order("username ASC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("top profiles: %w", err)
	}

	return profiles, nil
}

// RecordVote appends the vote and credits the ballot reward in one
// transaction. The locked profile row makes a second vote for the same
// ballot fail with ErrAlreadyVoted.
func (r *Remote) RecordVote(ctx context.Context, b event.Ballot, username, choiceID string) error {
	now := r.clock.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := Profile{Username: username, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var p Profile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ?", username).
			First(&p).Error; err != nil {
			return err
		}

		if p.Voted(b.FlagField) {
			return ErrAlreadyVoted
		}

		if err := tx.Table(b.Collection).Create(map[string]any{
			"id":          uuid.NewString(),
			"username":    username,
			b.ChoiceField: choiceID,
			"timestamp":   now,
		}).Error; err != nil {
			return err
		}

		return tx.Model(&Profile{}).
			Where("username = ?", username).
			Updates(map[string]any{
				"points":     gorm.Expr("points + ?", b.Reward),
				b.FlagField:  true,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return fmt.Errorf("record %s vote for %s: %w", b.ID, username, err)
	}

	r.logger.Debug().
		Str("ballot", b.ID).
		Str("username", username).
		Str("choice", choiceID).
		Int("reward", b.Reward).
		Msg("vote recorded")

	r.notify(ctx)

	return nil
}

// WatchTop calls fn with the current top profiles and again after every
// change notification. fn runs on a single goroutine, so results arrive in
// order. Once stop returns fn is never called again; fn must not call stop.
func (r *Remote) WatchTop(ctx context.Context, limit int, fn func([]Profile, error)) (stop func()) {
	return watch(ctx, r.feed, func(ctx context.Context) ([]Profile, error) {
		return r.Top(ctx, limit)
	}, fn)
}

func watch(ctx context.Context, feed Feed, fetch func(context.Context) ([]Profile, error), fn func([]Profile, error)) func() {
	ctx, cancel := context.WithCancel(ctx)

	var (
		mu      sync.Mutex
		stopped bool
	)

	deliver := func(profiles []Profile, err error) {
		mu.Lock()
		defer mu.Unlock()

		if stopped {
			return
		}
		fn(profiles, err)
	}

	// A refresh that is already queued will read this change too.
	changes := make(chan struct{}, 16)
	unsubscribe, subErr := feed.Subscribe(TopicProfiles, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	go func() {
		deliver(fetch(ctx))

		if subErr != nil {
			deliver(nil, subErr)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				profiles, err := fetch(ctx)
				if ctx.Err() != nil {
					return
				}
				deliver(profiles, err)
			}
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()

			cancel()
			if unsubscribe != nil {
				unsubscribe()
			}
		})
	}
}
