package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodelink/util"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db  *sql.DB
	log *log.Logger
}

// Tx is a store transaction. Every read-modify-write of graph state goes through one.
type Tx struct {
	tx *sql.Tx
}

// queryer is satisfied by both *sql.DB and *sql.Tx so reads can be shared.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	maxTxAttempts = 5
	txTimeout     = 5 * time.Second
)

// Transactions are opened as BEGIN IMMEDIATE, so the write lock is taken up front
// and a read-then-write sequence cannot interleave with another writer.
const dsnOptions = "_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Open opens (or creates) the sqlite database at path and runs migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?%s&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path, dsnOptions))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure connection pool for concurrent access
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db := &DB{db: sqlDB, log: util.Logger().WithPrefix("DB")}
	db.log.Info("database opened", "path", path, "maxConns", 25)

	if err := db.RunMigrations(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens a private in-memory database. A single connection is used
// because every sqlite memory connection is a separate database.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", "file::memory:?"+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB, log: util.Logger().WithPrefix("DB")}
	if err := db.RunMigrations(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// InTx runs f in a single immediate transaction. The whole function is retried
// when sqlite reports the database as busy.
func (db *DB) InTx(ctx context.Context, f func(tx *Tx) error) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return f(&Tx{tx: tx})
	})
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = db.runTransaction(ctx, f)
		if err == nil || !isBusy(err) {
			break
		}
		db.log.Debug("database busy, retrying transaction", "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*20) * time.Millisecond):
		}
	}
	return err
}

func (db *DB) runTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code() & 0xff
		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}
	return false
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || serr.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// notFound translates sql.ErrNoRows into the given domain error.
func notFound(err error, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}

func now() time.Time {
	return time.Now().UTC()
}

// requireRow returns target when res touched no rows.
func requireRow(res sql.Result, target error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return target
	}
	return nil
}
