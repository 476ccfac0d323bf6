// Package pgstore implements remote.Store on PostgreSQL.
//
// Every node is one row of the nodes table keyed by its full path with the
// value kept as JSONB. Writes announce the changed path with pg_notify on
// the moodkeeper_nodes channel; subscribers LISTEN on a dedicated pgx
// connection and read the new value back.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/dbx"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/pgstore/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying changed paths.
const NotifyChannel = "moodkeeper_nodes"

type Store struct {
	db     *sql.DB
	dsn    string
	logger logging.Logger
	newID  func() string
}

var _ remote.Store = (*Store)(nil)

// Open connects to dsn and migrates the schema.
func Open(ctx context.Context, dsn string, l logging.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	s := New(db, dsn, l)
	if err := s.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. dsn is used for the listener connections of
// Subscribe.
func New(db *sql.DB, dsn string, l logging.Logger) *Store {
	return &Store{db: db, dsn: dsn, logger: l.With("module", "pg_store"), newID: newChildID}
}

func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, p string, value map[string]any) error {
	if _, err := remote.Clean(p); err != nil {
		return err
	}
	return s.write(ctx, p, value)
}

func (s *Store) Push(ctx context.Context, p string, value map[string]any) (string, error) {
	if _, err := remote.Clean(p); err != nil {
		return "", err
	}
	id := s.newID()
	if err := s.write(ctx, p+"/"+id, value); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) write(ctx context.Context, p string, value map[string]any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query :=
			`INSERT INTO nodes (path, parent, value, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
		if _, err := tx.ExecContext(ctx, query, p, path.Dir(p), string(raw)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, p)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: db error: %w", common.ErrUnavailable, err)
	}
	return nil
}

// Get reads the node at p. A missing node is common.ErrNotFound.
func (s *Store) Get(ctx context.Context, p string) (map[string]any, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = $1`, p).Scan(&raw)
	if err != nil {
		if dbx.NoRows(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: db error: %w", common.ErrUnavailable, err)
	}
	return decodeValue(raw)
}

// snapshot lists every node under prefix ordered by path.
func (s *Store) snapshot(ctx context.Context, prefix string) ([]remote.ChangeEvent, error) {
	query :=
		`SELECT path, value FROM nodes
		 WHERE path = $1 OR starts_with(path, $2)
		 ORDER BY path`

	rows, err := s.db.QueryContext(ctx, query, prefix, prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("%w: db error: %w", common.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []remote.ChangeEvent
	for rows.Next() {
		var p string
		var raw []byte
		if err := rows.Scan(&p, &raw); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, remote.ChangeEvent{Path: p, Value: v, Kind: remote.ChangePut})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: db error: %w", common.ErrUnavailable, err)
	}
	return out, nil
}

// Subscribe starts listening before taking the snapshot so that no write
// falls between the two.
func (s *Store) Subscribe(ctx context.Context, prefix string) (<-chan remote.ChangeEvent, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: listen connect: %w", common.ErrUnavailable, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("%w: listen: %w", common.ErrUnavailable, err)
	}

	initial, err := s.snapshot(ctx, prefix)
	if err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}

	out := make(chan remote.ChangeEvent)
	go func() {
		defer close(out)
		defer conn.Close(context.Background())

		send := func(ev remote.ChangeEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, ev := range initial {
			if !send(ev) {
				return
			}
		}

		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn(ctx, "listen ended", "prefix", prefix, "error", err)
				}
				return
			}
			if !remote.Under(n.Payload, prefix) {
				continue
			}
			v, err := s.Get(ctx, n.Payload)
			if errors.Is(err, common.ErrNotFound) {
				if !send(remote.ChangeEvent{Path: n.Payload, Kind: remote.ChangeDelete}) {
					return
				}
				continue
			}
			if err != nil {
				s.logger.Warn(ctx, "reading notified node failed", "path", n.Payload, "error", err)
				return
			}
			if !send(remote.ChangeEvent{Path: n.Payload, Value: v, Kind: remote.ChangePut}) {
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func decodeValue(raw []byte) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: stored value: %w", common.ErrValidation, err)
	}
	return v, nil
}

func newChildID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
