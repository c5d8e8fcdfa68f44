// Package cache keeps the raw json documents fetched from the tracking api so
// later runs do not have to fetch them again.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"raceresults/internal/components/chrono"

	_ "modernc.org/sqlite"
)

const schema = `
create table if not exists documents (
	event text not null,
	kind text not null,
	key text not null,
	body blob not null,
	fetched_at integer not null,
	primary key (event, kind, key)
);`

type Kind string

const (
	KindProfiles Kind = "profiles"
	KindPoints   Kind = "points"
	KindSplits   Kind = "splits"
)

// Store is a document cache on sqlite, documents are addressed by event, kind
// and key. Whole-event documents (profiles, points) use an empty key.
type Store struct {
	db   *sql.DB
	time chrono.API
}

func wrapOpen(err error) error {
	return fmt.Errorf("open cache: %w", err)
}

// Open opens (and creates if needed) the cache database at path, ":memory:" is
// accepted.
func Open(path string, time chrono.API) (Store, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return Store{}, wrapOpen(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, wrapOpen(err)
	}

	// sqlite only allows a single writer
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return Store{}, wrapOpen(err)
		}
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return Store{}, wrapOpen(err)
	}

	return Store{db: db, time: time}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Get returns the document or false if it was never stored.
func (s Store) Get(ctx context.Context, event string, kind Kind, key string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(
		ctx,
		"select body from documents where event = ? and kind = ? and key = ?",
		event, string(kind), key,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s/%s: %w", event, kind, key, err)
	}
	return body, true, nil
}

func (s Store) Has(ctx context.Context, event string, kind Kind, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		"select count(*) from documents where event = ? and kind = ? and key = ?",
		event, string(kind), key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("has %s/%s/%s: %w", event, kind, key, err)
	}
	return count > 0, nil
}

// Put stores or replaces a document.
func (s Store) Put(ctx context.Context, event string, kind Kind, key string, body []byte) error {
	return s.PutMany(ctx, event, kind, map[string][]byte{key: body})
}

// PutMany stores or replaces several documents of the same kind in a single transaction.
func (s Store) PutMany(ctx context.Context, event string, kind Kind, bodies map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.time.Now().Unix()
	for key, body := range bodies {
		if body == nil {
			body = []byte{}
		}
		_, err = tx.ExecContext(
			ctx,
			`insert into documents (event, kind, key, body, fetched_at) values (?, ?, ?, ?, ?)
			on conflict (event, kind, key) do update set body = excluded.body, fetched_at = excluded.fetched_at`,
			event, string(kind), key, body, now,
		)
		if err != nil {
			return fmt.Errorf("put %s/%s/%s: %w", event, kind, key, err)
		}
	}

	return tx.Commit()
}

// Missing returns the keys (in their given order) that have no document stored yet.
func (s Store) Missing(ctx context.Context, event string, kind Kind, keys []string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"select key from documents where event = ? and kind = ?",
		event, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", event, kind, err)
	}
	defer rows.Close()

	stored := map[string]struct{}{}
	for rows.Next() {
		var key string
		err = rows.Scan(&key)
		if err != nil {
			return nil, err
		}
		stored[key] = struct{}{}
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, key := range keys {
		if _, ok := stored[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing, nil
}
