package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// TopicProfiles is published after every committed profile change.
const TopicProfiles = "profiles"

const DefaultNotifyChannel = "asado_changes"

// Feed carries "something changed" notifications between every process that
// reads the remote store.
type Feed interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(topic string, fn func()) (unsubscribe func(), err error)
	Close() error
}

// LocalFeed fans notifications out inside the current process.
type LocalFeed struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]func()
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[string]map[int]func())}
}

func (f *LocalFeed) Publish(_ context.Context, topic string) error {
	f.dispatch(topic)

	return nil
}

func (f *LocalFeed) Subscribe(topic string, fn func()) (func(), error) {
	f.mu.Lock()
	id := f.next
	f.next++
	if f.subs[topic] == nil {
		f.subs[topic] = make(map[int]func())
	}
	f.subs[topic][id] = fn
	f.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[topic], id)
			f.mu.Unlock()
		})
	}, nil
}

func (f *LocalFeed) Close() error {
	f.mu.Lock()
	f.subs = make(map[string]map[int]func())
	f.mu.Unlock()

	return nil
}

func (f *LocalFeed) dispatch(topic string) {
	f.mu.RLock()
	handlers := make([]func(), 0, len(f.subs[topic]))
	for _, fn := range f.subs[topic] {
		handlers = append(handlers, fn)
	}
	f.mu.RUnlock()

	for _, fn := range handlers {
		fn()
	}
}

func (f *LocalFeed) dispatchAll() {
	f.mu.RLock()
	topics := make([]string, 0, len(f.subs))
	for topic := range f.subs {
		topics = append(topics, topic)
	}
	f.mu.RUnlock()

	for _, topic := range topics {
		f.dispatch(topic)
	}
}

// PostgresFeed publishes with pg_notify and receives through LISTEN on a
// dedicated connection.
type PostgresFeed struct {
	*LocalFeed

	db       *sql.DB
	channel  string
	listener *pq.Listener
	logger   zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewPostgresFeed(dsn string, db *sql.DB, channel string, logger zerolog.Logger) (*PostgresFeed, error) {
	l := pq.NewListener(
		dsn,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("change feed listener event")
			}
		},
	)
	if err := l.Listen(channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen on %s: %w", channel, err)
	}

	logger.Info().Str("channel", channel).Msg("listening for store changes")

	f := &PostgresFeed{
		LocalFeed: NewLocalFeed(),
		db:        db,
		channel:   channel,
		listener:  l,
		logger:    logger,
		done:      make(chan struct{}),
	}

	go f.run()

	return f, nil
}

func (f *PostgresFeed) run() {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-f.done:
			return
		case note, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			if note == nil {
				// reconnected; whatever was sent meanwhile is lost
				f.dispatchAll()
				continue
			}
			f.dispatch(note.Extra)
		case <-ping.C:
			if err := f.listener.Ping(); err != nil {
				f.logger.Error().Err(err).Msg("failed to ping change feed listener")
			}
		}
	}
}

func (f *PostgresFeed) Publish(ctx context.Context, topic string) error {
	if _, err := f.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, f.channel, topic); err != nil {
		return fmt.Errorf("notify %s: %w", topic, err)
	}

	return nil
}

func (f *PostgresFeed) Close() error {
	var err error

	f.closeOnce.Do(func() {
		close(f.done)
		err = f.listener.Close()
		_ = f.LocalFeed.Close()
	})

	return err
}

// NATSFeed spreads notifications over NATS subjects named <prefix>.<topic>.
type NATSFeed struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSFeed(url, prefix string, logger zerolog.Logger) (*NATSFeed, error) {
	opts := []nats.Option{
		nats.Name("asadotracker"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSFeed{nc: nc, prefix: prefix}, nil
}

func (f *NATSFeed) subject(topic string) string {
	return f.prefix + "." + topic
}

func (f *NATSFeed) Publish(_ context.Context, topic string) error {
	if err := f.nc.Publish(f.subject(topic), []byte(topic)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

func (f *NATSFeed) Subscribe(topic string, fn func()) (func(), error) {
	sub, err := f.nc.Subscribe(f.subject(topic), func(*nats.Msg) {
		fn()
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	return func() {
		_ = sub.Unsubscribe()
	}, nil
}

func (f *NATSFeed) Close() error {
	f.nc.Close()

	return nil
}
