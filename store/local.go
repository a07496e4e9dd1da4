package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// Keys kept in a device's local mirror.
const (
	KeyUser      = "asado_user"
	KeyWish      = "asado_wish"
	KeySimulated = "asado_simulated"

	votedPrefix = "asado_voted"
)

// VotedKey is the local flag recording that username voted in ballot while
// simulated.
func VotedKey(ballot, username string) string {
	return votedPrefix + ":" + ballot + ":" + username
}

// KV is the key/value view of one device's local mirror.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

const localSchema = `
CREATE TABLE IF NOT EXISTS local_kv (
	device     TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (device, key)
)`

// Local persists the mirror of every device in one SQLite database.
type Local struct {
	db    *sql.DB
	clock clockwork.Clock
}

// OpenLocal opens (creating if needed) the SQLite file at path. ":memory:"
// keeps everything in process.
func OpenLocal(ctx context.Context, path string, clock clockwork.Clock) (*Local, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	// sqlite serializes writers anyway, and a single connection keeps
	// ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, localSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create local schema: %w", err)
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Local{db: db, clock: clock}, nil
}

func (l *Local) Close() error {
	return l.db.Close()
}

// Device scopes the store to a single device id.
func (l *Local) Device(id string) KV {
	return &deviceKV{local: l, device: id}
}

type deviceKV struct {
	local  *Local
	device string
}

func (d *deviceKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := d.local.db.QueryRowContext(ctx,
		`SELECT value FROM local_kv WHERE device = ? AND key = ?`,
		d.device, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}

	return value, true, nil
}

func (d *deviceKV) Set(ctx context.Context, key, value string) error {
	_, err := d.local.db.ExecContext(ctx,
		`INSERT INTO local_kv (device, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (device, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		d.device, key, value, d.local.clock.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}

func (d *deviceKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	args := make([]any, 0, len(keys)+1)
	args = append(args, d.device)
	for _, k := range keys {
		args = append(args, k)
	}

	query := `DELETE FROM local_kv WHERE device = ? AND key IN (?` + strings.Repeat(", ?", len(keys)-1) + `)`
	if _, err := d.local.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s: %w", strings.Join(keys, ", "), err)
	}

	return nil
}
