package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"phonelease/internal/pricing/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

// PostgresStore persists pricing configuration in PostgreSQL.
// This store is pure I/O; bounds and multiplier rules belong in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ApplySchema creates the pricing tables when they do not exist.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply pricing schema: %w", err)
	}
	return nil
}

// Seed stores basePrice unless a base price is already configured.
func (s *PostgresStore) Seed(ctx context.Context, basePrice *big.Int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pricing_config (id, base_price) VALUES (1, $1::numeric)
		ON CONFLICT (id) DO NOTHING
	`, basePrice.String())
	if err != nil {
		return fmt.Errorf("seed base price: %w", err)
	}
	return nil
}

func (s *PostgresStore) BasePrice(ctx context.Context) (*big.Int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT base_price::text FROM pricing_config WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get base price: %w", err)
	}
	price, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("get base price: malformed numeric %q", raw)
	}
	return price, nil
}

func (s *PostgresStore) SetBasePrice(ctx context.Context, price *big.Int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pricing_config (id, base_price, updated_at) VALUES (1, $1::numeric, now())
		ON CONFLICT (id) DO UPDATE SET base_price = EXCLUDED.base_price, updated_at = EXCLUDED.updated_at
	`, price.String())
	if err != nil {
		return fmt.Errorf("set base price: %w", err)
	}
	return nil
}

func (s *PostgresStore) Multiplier(ctx context.Context, tier domain.Tier) (uint32, error) {
	var bps int64
	err := s.db.QueryRowContext(ctx, `SELECT multiplier_bps FROM price_tiers WHERE tier = $1`, tier.String()).Scan(&bps)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("get multiplier: %w", err)
	}
	return uint32(bps), nil
}

func (s *PostgresStore) SetMultiplier(ctx context.Context, entry models.PriceTier) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_tiers (tier, multiplier_bps, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (tier) DO UPDATE SET multiplier_bps = EXCLUDED.multiplier_bps, updated_at = EXCLUDED.updated_at
	`, entry.Tier.String(), int64(entry.MultiplierBPS))
	if err != nil {
		return fmt.Errorf("set multiplier: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveMultiplier(ctx context.Context, tier domain.Tier) (uint32, error) {
	var bps int64
	err := s.db.QueryRowContext(ctx, `DELETE FROM price_tiers WHERE tier = $1 RETURNING multiplier_bps`, tier.String()).Scan(&bps)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("remove multiplier: %w", err)
	}
	return uint32(bps), nil
}

func (s *PostgresStore) ListMultipliers(ctx context.Context) ([]models.PriceTier, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tier, multiplier_bps FROM price_tiers ORDER BY tier`)
	if err != nil {
		return nil, fmt.Errorf("list multipliers: %w", err)
	}
	defer rows.Close()

	var out []models.PriceTier
	for rows.Next() {
		var (
			tier string
			bps  int64
		)
		if err := rows.Scan(&tier, &bps); err != nil {
			return nil, fmt.Errorf("scan multiplier: %w", err)
		}
		out = append(out, models.PriceTier{Tier: domain.Tier(tier), MultiplierBPS: uint32(bps)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list multipliers: %w", err)
	}
	return out, nil
}
