// Package storage is the Postgres implementation of booking.Store.
//
// Writes run in SERIALIZABLE transactions and the appointments table carries
// an exclusion constraint over (operator_id, [start_time, end_time)) for
// non-cancelled rows, so two bookings of the same operator can never overlap
// even if a conflict check races.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotkeeper/libs/db"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/outbox"
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type Store struct {
	pool   txBeginner
	outbox *outbox.Repository
	loc    *time.Location
}

var _ booking.Store = (*Store)(nil)

// New returns a store over pool. Dates and times read back are expressed in loc.
func New(pool *db.Pool, repo *outbox.Repository, loc *time.Location) *Store {
	return newStore(pool, repo, loc)
}

func newStore(pool txBeginner, repo *outbox.Repository, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	if repo == nil {
		repo = outbox.NewRepository()
	}
	return &Store{pool: pool, outbox: repo, loc: loc}
}

var (
	viewOptions   = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	updateOptions = pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}
)

func (s *Store) View(ctx context.Context, fn func(booking.Tx) error) error {
	return s.run(ctx, viewOptions, false, fn)
}

func (s *Store) Update(ctx context.Context, fn func(booking.Tx) error) error {
	return s.run(ctx, updateOptions, true, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, writable bool, fn func(booking.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx, writable: writable, outbox: s.outbox, loc: s.loc}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// classify maps Postgres failures onto the booking error taxonomy.
func classify(err error) error {
	switch {
	case db.IsRetryable(err):
		return fmt.Errorf("%w: %w", booking.ErrTransient, err)
	case db.IsExclusionViolation(err):
		return fmt.Errorf("%w: %w", booking.ErrSlotUnavailable, err)
	}
	return err
}
