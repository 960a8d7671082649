// Copyright 2025 Chainframe

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// BlockRepository persists ingested block headers.
type BlockRepository struct {
	client *Client
}

// NewBlockRepository constructs a BlockRepository.
func NewBlockRepository(client *Client) *BlockRepository {
	return &BlockRepository{client: client}
}

// Insert writes a Block. Blocks are immutable once processed, so this is
// insert-only; a conflict on number indicates a retry of the same height
// and is treated as a no-op.
func (r *BlockRepository) Insert(ctx context.Context, db DBTX, b *Block) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO blocks (number, hash, parent_hash, "timestamp", transactions_count, gas_used, gas_limit, base_fee_per_gas)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::numeric)
		ON CONFLICT (number) DO NOTHING`,
		b.Number, b.Hash, b.ParentHash, b.Timestamp, b.TxCount, b.GasUsed, b.GasLimit, b.BaseFee)
	if err != nil {
		return fmt.Errorf("failed to insert block %d: %w", b.Number, err)
	}
	return nil
}

// ByNumber fetches a block by height.
func (r *BlockRepository) ByNumber(ctx context.Context, number uint64) (*Block, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT number, hash, parent_hash, "timestamp", gas_used, gas_limit, COALESCE(base_fee_per_gas::text, ''), transactions_count
		FROM blocks WHERE number = $1`, number)

	b := &Block{}
	if err := row.Scan(&b.Number, &b.Hash, &b.ParentHash, &b.Timestamp, &b.GasUsed, &b.GasLimit, &b.BaseFee, &b.TxCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("failed to fetch block %d: %w", number, err)
	}
	return b, nil
}

// LatestNumber returns the highest stored block number, or 0 if empty.
func (r *BlockRepository) LatestNumber(ctx context.Context) (uint64, error) {
	var n sql.NullInt64
	row := r.client.QueryRowContext(ctx, `SELECT MAX(number) FROM blocks`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to fetch latest block number: %w", err)
	}
	if !n.Valid {
		return 0, nil
	}
	return uint64(n.Int64), nil
}
