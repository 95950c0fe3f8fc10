package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgStores struct {
	tickets     TicketRepository
	comments    CommentRepository
	attachments AttachmentRepository
	ratings     RatingRepository
	users       UserRepository
}

func newPGStores(db DBTX, inTx bool) *pgStores {
	return &pgStores{
		tickets:     &ticketRepository{db: db, inTx: inTx},
		comments:    &commentRepository{db: db},
		attachments: &attachmentRepository{db: db},
		ratings:     &ratingRepository{db: db},
		users:       &userRepository{db: db},
	}
}

func (s *pgStores) Tickets() TicketRepository         { return s.tickets }
func (s *pgStores) Comments() CommentRepository       { return s.comments }
func (s *pgStores) Attachments() AttachmentRepository { return s.attachments }
func (s *pgStores) Ratings() RatingRepository         { return s.ratings }
func (s *pgStores) Users() UserRepository             { return s.users }

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	*pgStores
	pool *pgxpool.Pool
}

// NewPostgresStore builds a Store over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgStores: newPGStores(pool, false), pool: pool}
}

// WithTx executes fn within a read-committed transaction. Row locks taken by
// GetForUpdate serialize competing writers on the same ticket.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(newPGStores(tx, true)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", mapErr(err))
	}
	return nil
}
