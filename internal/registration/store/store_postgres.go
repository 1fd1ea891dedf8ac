package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"phonelease/internal/platform/postgres"
	"phonelease/internal/registration/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

// PostgresStore persists leases in PostgreSQL. Transactions run SERIALIZABLE
// and lock the touched row, so two registrations of one identifier resolve
// to a single winner.
type PostgresStore struct {
	db        *sql.DB
	txTimeout time.Duration
	callback  Callback
}

type PostgresOption func(*PostgresStore)

func WithTxTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		s.txTimeout = d
	}
}

func WithPostgresCallback(cb Callback) PostgresOption {
	return func(s *PostgresStore) {
		s.callback = cb
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, txTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCallback is used when the receiver is constructed after the store.
func (s *PostgresStore) SetCallback(cb Callback) {
	s.callback = cb
}

// ApplySchema creates the lease tables when they do not exist.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply lease schema: %w", err)
	}
	return nil
}

// RunInTx runs fn in a serializable transaction. Losing a race for the same
// row (serialization failure or duplicate insert) is reported as
// sentinel.ErrConflict.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(OwnershipAdapter) error) (err error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin lease transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&postgresTx{tx: tx, callback: s.callback}); err != nil {
		if postgres.IsRetryable(err) || postgres.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		if postgres.IsRetryable(err) {
			return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
		}
		return fmt.Errorf("commit lease transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id domain.Identifier) (*models.Record, error) {
	return scanRecord(s.db.QueryRowContext(ctx, selectRecord, id.String()))
}

func (s *PostgresStore) CanModify(ctx context.Context, id domain.Identifier, actor domain.Identity) (bool, error) {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return canModify(rec, actor), nil
}

func (s *PostgresStore) AddStuckFees(ctx context.Context, amount *big.Int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE stuck_fees SET amount = amount + $1::numeric WHERE id = 1`, amount.String())
	if err != nil {
		return fmt.Errorf("add stuck fees: %w", err)
	}
	return nil
}

func (s *PostgresStore) StuckFees(ctx context.Context) (*big.Int, error) {
	var raw string
	if err := s.db.QueryRowContext(ctx, `SELECT amount::text FROM stuck_fees WHERE id = 1`).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("get stuck fees: %w", err)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("get stuck fees: malformed numeric %q", raw)
	}
	return v, nil
}

func (s *PostgresStore) SubStuckFees(ctx context.Context, amount *big.Int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stuck_fees SET amount = amount - $1::numeric WHERE id = 1 AND amount >= $1::numeric`, amount.String())
	if err != nil {
		return fmt.Errorf("sub stuck fees: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sub stuck fees: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

const selectRecord = `
	SELECT identifier, owner, flags, expiry
	FROM leases
	WHERE identifier = $1
`

type postgresTx struct {
	tx       *sql.Tx
	callback Callback
}

func (t *postgresTx) SetRecord(ctx context.Context, record models.Record) error {
	if t.callback != nil {
		if err := t.callback.AcknowledgeRecord(ctx, record); err != nil {
			return err
		}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO leases (identifier, owner, flags, expiry, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (identifier) DO UPDATE SET
			owner = EXCLUDED.owner,
			flags = EXCLUDED.flags,
			expiry = EXCLUDED.expiry,
			updated_at = EXCLUDED.updated_at
	`, record.Identifier.String(), record.Owner.Hex(), int(record.Flags), record.Expiry.UTC())
	if err != nil {
		return fmt.Errorf("set lease record: %w", err)
	}
	return nil
}

func (t *postgresTx) GetRecord(ctx context.Context, id domain.Identifier) (*models.Record, error) {
	return scanRecord(t.tx.QueryRowContext(ctx, selectRecord+` FOR UPDATE`, id.String()))
}

func (t *postgresTx) CanModify(ctx context.Context, id domain.Identifier, actor domain.Identity) (bool, error) {
	rec, err := t.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return canModify(rec, actor), nil
}

func scanRecord(row *sql.Row) (*models.Record, error) {
	var (
		identifier string
		owner      string
		flags      int
		expiry     time.Time
	)
	if err := row.Scan(&identifier, &owner, &flags, &expiry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan lease record: %w", err)
	}
	return &models.Record{
		Identifier: domain.Identifier(identifier),
		Owner:      common.HexToAddress(owner),
		Flags:      models.Flags(flags),
		Expiry:     expiry.UTC(),
	}, nil
}
