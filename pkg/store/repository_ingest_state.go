// Copyright 2025 Chainframe

package store

import (
	"context"
	"fmt"
)

// IngestStateRepository tracks the singleton ingestion cursor: the
// highest block number fully committed to the store.
type IngestStateRepository struct {
	client *Client
}

// NewIngestStateRepository constructs an IngestStateRepository.
func NewIngestStateRepository(client *Client) *IngestStateRepository {
	return &IngestStateRepository{client: client}
}

// LatestProcessedBlock returns the current cursor.
func (r *IngestStateRepository) LatestProcessedBlock(ctx context.Context) (uint64, error) {
	var n uint64
	row := r.client.QueryRowContext(ctx, `SELECT latest_processed_block FROM ingest_state WHERE id = 1`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to fetch ingest state: %w", err)
	}
	return n, nil
}

// Advance sets the cursor to h. Callers must ensure h is monotonically
// increasing; this is enforced by the pipeline processing heights in
// strict order, not by a database constraint.
func (r *IngestStateRepository) Advance(ctx context.Context, db DBTX, h uint64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE ingest_state SET latest_processed_block = $1, updated_at = now() WHERE id = 1`, h)
	if err != nil {
		return fmt.Errorf("failed to advance ingest state to %d: %w", h, err)
	}
	return nil
}
