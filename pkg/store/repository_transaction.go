// Copyright 2025 Chainframe

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// TransactionRepository persists ingested transactions.
type TransactionRepository struct {
	client *Client
}

// NewTransactionRepository constructs a TransactionRepository.
func NewTransactionRepository(client *Client) *TransactionRepository {
	return &TransactionRepository{client: client}
}

// Insert writes a Transaction, keyed by hash; a retry of the same hash is
// a no-op.
func (r *TransactionRepository) Insert(ctx context.Context, db DBTX, tx *Transaction, timestamp interface{}) error {
	var toAddr, contractAddr sql.NullString
	if tx.ToAddress != "" {
		toAddr = sql.NullString{String: tx.ToAddress, Valid: true}
	}
	if tx.ContractAddress != "" {
		contractAddr = sql.NullString{String: tx.ContractAddress, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (hash, block_number, transaction_index, from_address, to_address, value, gas_price, gas_used, status, contract_address, input_data, "timestamp")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (hash) DO NOTHING`,
		tx.Hash, tx.BlockNumber, tx.TransactionIndex, tx.FromAddress, toAddr, tx.Value, tx.GasPrice, tx.GasUsed, tx.Status, contractAddr, tx.InputData, timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", tx.Hash, err)
	}
	return nil
}

// ByHash fetches a transaction by hash.
func (r *TransactionRepository) ByHash(ctx context.Context, hash string) (*Transaction, error) {
	var toAddr, contractAddr sql.NullString
	row := r.client.QueryRowContext(ctx, `
		SELECT hash, block_number, transaction_index, from_address, to_address, value, gas_price, gas_used, status, contract_address
		FROM transactions WHERE hash = $1`, hash)

	tx := &Transaction{}
	if err := row.Scan(&tx.Hash, &tx.BlockNumber, &tx.TransactionIndex, &tx.FromAddress, &toAddr, &tx.Value, &tx.GasPrice, &tx.GasUsed, &tx.Status, &contractAddr); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", hash, err)
	}
	tx.ToAddress = toAddr.String
	tx.ContractAddress = contractAddr.String
	return tx, nil
}

// ByAddress returns transactions where address is sender or recipient,
// newest first, paginated.
func (r *TransactionRepository) ByAddress(ctx context.Context, address string, limit, offset int) ([]*Transaction, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT hash, block_number, transaction_index, from_address, to_address, value, gas_price, gas_used, status, contract_address
		FROM transactions
		WHERE from_address = $1 OR to_address = $1
		ORDER BY block_number DESC, transaction_index DESC
		LIMIT $2 OFFSET $3`, address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", address, err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var toAddr, contractAddr sql.NullString
		tx := &Transaction{}
		if err := rows.Scan(&tx.Hash, &tx.BlockNumber, &tx.TransactionIndex, &tx.FromAddress, &toAddr, &tx.Value, &tx.GasPrice, &tx.GasUsed, &tx.Status, &contractAddr); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		tx.ToAddress = toAddr.String
		tx.ContractAddress = contractAddr.String
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ByBlock returns transactions for a block in ascending transaction_index
// order.
func (r *TransactionRepository) ByBlock(ctx context.Context, blockNumber uint64) ([]*Transaction, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT hash, block_number, transaction_index, from_address, to_address, value, gas_price, gas_used, status, contract_address
		FROM transactions WHERE block_number = $1 ORDER BY transaction_index ASC`, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for block %d: %w", blockNumber, err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var toAddr, contractAddr sql.NullString
		tx := &Transaction{}
		if err := rows.Scan(&tx.Hash, &tx.BlockNumber, &tx.TransactionIndex, &tx.FromAddress, &toAddr, &tx.Value, &tx.GasPrice, &tx.GasUsed, &tx.Status, &contractAddr); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		tx.ToAddress = toAddr.String
		tx.ContractAddress = contractAddr.String
		out = append(out, tx)
	}
	return out, rows.Err()
}
