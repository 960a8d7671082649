// Copyright 2025 Chainframe

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ZeroAddress is the EVM null address; transfers to/from it are mint/burn
// events rather than ordinary balance movements.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// TransferRepository persists decoded token transfers and maintains the
// derived TokenBalance rows.
type TransferRepository struct {
	client *Client
}

// NewTransferRepository constructs a TransferRepository.
func NewTransferRepository(client *Client) *TransferRepository {
	return &TransferRepository{client: client}
}

// Insert records a TokenTransfer and applies the derived-balance rule in
// the same statement batch so a failure rolls back both. Callers pass the
// enclosing block transaction as db.
func (r *TransferRepository) Insert(ctx context.Context, db DBTX, timestamp interface{}, t *TokenTransfer) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO token_transfers (block_number, transaction_hash, log_index, token_address, token_type, from_address, to_address, token_id, value, "timestamp")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (transaction_hash, token_address, from_address, to_address, token_id)
		DO UPDATE SET value = EXCLUDED.value
		WHERE token_transfers.value IS DISTINCT FROM EXCLUDED.value`,
		t.BlockNumber, t.TransactionHash, t.LogIndex, t.TokenAddress, string(t.Kind), t.FromAddress, t.ToAddress, t.TokenID, t.Amount, timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert transfer %s/%d: %w", t.TransactionHash, t.LogIndex, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transfer insert result: %w", err)
	}
	if affected == 0 {
		// Already recorded with the same value; re-running the balance
		// update would double-apply it, so skip.
		return nil
	}

	return r.applyBalanceUpdate(ctx, db, t)
}

// applyBalanceUpdate implements the derived-balance rule: debit from
// (clamped at zero), credit to, mark minting.
func (r *TransferRepository) applyBalanceUpdate(ctx context.Context, db DBTX, t *TokenTransfer) error {
	if t.FromAddress != "" && t.FromAddress != ZeroAddress {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO token_balances (address, token_address, token_id, balance, token_type, updated_at)
			VALUES ($1, $2, $3, 0, $4, now())
			ON CONFLICT (address, token_address, token_id)
			DO UPDATE SET balance = GREATEST(token_balances.balance - $5::numeric, 0), updated_at = now()`,
			t.FromAddress, t.TokenAddress, t.TokenID, string(t.Kind), t.Amount); err != nil {
			return fmt.Errorf("failed to debit balance for %s: %w", t.FromAddress, err)
		}
	}

	if t.ToAddress != "" && t.ToAddress != ZeroAddress {
		isCreator := t.FromAddress == ZeroAddress
		if _, err := db.ExecContext(ctx, `
			INSERT INTO token_balances (address, token_address, token_id, balance, token_type, is_creator, updated_at)
			VALUES ($1, $2, $3, $4::numeric, $5, $6, now())
			ON CONFLICT (address, token_address, token_id)
			DO UPDATE SET balance = token_balances.balance + $4::numeric,
			              is_creator = token_balances.is_creator OR $6,
			              updated_at = now()`,
			t.ToAddress, t.TokenAddress, t.TokenID, t.Amount, string(t.Kind), isCreator); err != nil {
			return fmt.Errorf("failed to credit balance for %s: %w", t.ToAddress, err)
		}

		if isCreator {
			if _, err := db.ExecContext(ctx, `
				UPDATE contracts SET creator = $1 WHERE address = $2 AND creator IS NULL`,
				t.ToAddress, t.TokenAddress); err != nil {
				return fmt.Errorf("failed to backfill creator for %s: %w", t.TokenAddress, err)
			}
		}
	}

	return nil
}

// ByTransaction returns the transfers recorded for a transaction, in
// log-index order.
func (r *TransferRepository) ByTransaction(ctx context.Context, txHash string) ([]*TokenTransfer, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT id, block_number, transaction_hash, log_index, token_address, token_type, from_address, to_address, token_id, value
		FROM token_transfers WHERE transaction_hash = $1 ORDER BY log_index ASC`, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers for %s: %w", txHash, err)
	}
	defer rows.Close()

	var out []*TokenTransfer
	for rows.Next() {
		t := &TokenTransfer{}
		var kind string
		if err := rows.Scan(&t.ID, &t.BlockNumber, &t.TransactionHash, &t.LogIndex, &t.TokenAddress, &kind, &t.FromAddress, &t.ToAddress, &t.TokenID, &t.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		t.Kind = TransferKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

// BalanceRepository provides read access to derived TokenBalance rows.
type BalanceRepository struct {
	client *Client
}

// NewBalanceRepository constructs a BalanceRepository.
func NewBalanceRepository(client *Client) *BalanceRepository {
	return &BalanceRepository{client: client}
}

// Get returns the balance for (address, token, tokenID), or a zero balance
// if no row exists yet.
func (r *BalanceRepository) Get(ctx context.Context, address, tokenAddress, tokenID string) (*TokenBalance, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT balance, token_type, updated_at FROM token_balances
		WHERE address = $1 AND token_address = $2 AND token_id = $3`, address, tokenAddress, tokenID)

	b := &TokenBalance{Address: address, TokenAddress: tokenAddress, TokenID: tokenID}
	var tokenType string
	if err := row.Scan(&b.Balance, &tokenType, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			b.Balance = "0"
			return b, nil
		}
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return b, nil
}

// HoldersOf returns every non-zero balance holder for a token, used for
// holder-count and holder-list derivations at query time.
func (r *BalanceRepository) HoldersOf(ctx context.Context, tokenAddress string, limit, offset int) ([]*TokenBalance, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT address, token_id, balance, updated_at FROM token_balances
		WHERE token_address = $1 AND balance > 0
		ORDER BY balance DESC
		LIMIT $2 OFFSET $3`, tokenAddress, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list holders for %s: %w", tokenAddress, err)
	}
	defer rows.Close()

	var out []*TokenBalance
	for rows.Next() {
		b := &TokenBalance{TokenAddress: tokenAddress}
		if err := rows.Scan(&b.Address, &b.TokenID, &b.Balance, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// HolderCount returns the number of addresses with a non-zero balance.
func (r *BalanceRepository) HolderCount(ctx context.Context, tokenAddress string) (int, error) {
	var count int
	row := r.client.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM token_balances WHERE token_address = $1 AND balance > 0`, tokenAddress)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count holders for %s: %w", tokenAddress, err)
	}
	return count, nil
}
