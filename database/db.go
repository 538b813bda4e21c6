package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checklist/apierr"
	"checklist/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the store translates into API errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgInvalidText         = "22P02"
	pgStringTooLong       = "22001"
	pgInvalidDatetime     = "22007"
)

type DB struct {
	Pool *pgxpool.Pool
	log  *logger.Logger
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so helpers can run
// inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func Connect(ctx context.Context, databaseURL string, log *logger.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "database")
	log.Info("Database connection established")
	return &DB{Pool: pool, log: log}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
	db.log.Info("Database connection closed")
}

// WithTx runs fn inside a single transaction. The transaction commits only
// if fn returns nil; an error or a panic inside fn rolls everything back.
func (db *DB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, db.Pool, fn)
}

// withSnapshot runs fn in a read-only repeatable-read transaction so that
// multi-query reads observe one consistent snapshot.
func (db *DB) withSnapshot(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, db.Pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, fn)
}

// classify converts driver errors into the apierr taxonomy. Errors that are
// already classified pass through untouched.
func classify(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}

	what := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return apierr.NotFoundf("%s not found", what)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apierr.Conflictf("%s already exists", what)
		case pgForeignKeyViolation:
			return apierr.Invalidf("%s references a missing record (%s)", what, pgErr.ConstraintName)
		case pgCheckViolation, pgNotNullViolation, pgInvalidText, pgStringTooLong, pgInvalidDatetime:
			return apierr.Invalidf("%s: %s", what, pgErr.Message)
		}
	}

	return fmt.Errorf("%s: %w", what, err)
}

func isClassified(err error) bool {
	return errors.Is(err, apierr.ErrNotFound) ||
		errors.Is(err, apierr.ErrConflict) ||
		errors.Is(err, apierr.ErrInvalid) ||
		errors.Is(err, apierr.ErrForbidden) ||
		errors.Is(err, apierr.ErrUnauthenticated)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanAll drains rows through scan, returning an empty (non-nil) slice when
// nothing matched.
func scanAll[T any](rows rowsScanner, scan func(rowScanner) (*T, error)) ([]T, error) {
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
