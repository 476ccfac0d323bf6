package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/moodkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/diary"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/moods"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/reflections"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/dbx"
	"github.com/dmitrijs2005/moodkeeper/internal/filex"

	_ "modernc.org/sqlite"
)

var errNestedClose = errors.New("close called on a transaction-bound store")

// Store is the local database. The zero value is not usable; see Open and New.
type Store struct {
	db *sql.DB // nil when bound to a transaction

	diary       diary.Repository
	moods       moods.Repository
	reflections reflections.Repository
	outbox      outbox.Repository
	metadata    metadata.Repository
}

// DSN builds the modernc.org/sqlite data source name for a database file.
func DSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if _, err := filex.EnsureParentDir(path); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", common.ErrStorage, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

func bind(q dbx.DBTX) *Store {
	return &Store{
		diary:       diary.NewSQLiteRepository(q),
		moods:       moods.NewSQLiteRepository(q),
		reflections: reflections.NewSQLiteRepository(q),
		outbox:      outbox.NewSQLiteRepository(q),
		metadata:    metadata.NewSQLiteRepository(q),
	}
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return errNestedClose
	}
	return s.db.Close()
}

// WithTx runs fn with a Store bound to a single transaction. Everything fn
// writes through tx is committed together or not at all. Calling WithTx on
// a transaction-bound Store runs fn in the existing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	var err error
	if s.db == nil {
		err = fn(ctx, s)
	} else {
		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, q dbx.DBTX) error {
			return fn(ctx, bind(q))
		})
	}
	if err != nil && !errors.Is(err, common.ErrStorage) && !errors.Is(err, common.ErrValidation) {
		return wrap(err)
	}
	return err
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return wrap(s.db.PingContext(ctx))
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", common.ErrStorage, err)
}
