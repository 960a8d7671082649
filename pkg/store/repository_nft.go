// Copyright 2025 Chainframe

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// NFTTokenRepository persists per-token NFT metadata.
type NFTTokenRepository struct {
	client *Client
}

// NewNFTTokenRepository constructs an NFTTokenRepository.
func NewNFTTokenRepository(client *Client) *NFTTokenRepository {
	return &NFTTokenRepository{client: client}
}

// Upsert writes or refreshes a token's owner and metadata. Metadata fields
// are best-effort; a soft-fail leaves them empty and is retried on the
// next transfer of the same token.
func (r *NFTTokenRepository) Upsert(ctx context.Context, db DBTX, t *NFTToken) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO nft_tokens (token_address, token_id, owner_address, metadata_uri, name, image_url, metadata, last_updated)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, '')::jsonb, now())
		ON CONFLICT (token_address, token_id) DO UPDATE SET
			owner_address = EXCLUDED.owner_address,
			metadata_uri = COALESCE(EXCLUDED.metadata_uri, nft_tokens.metadata_uri),
			name = COALESCE(EXCLUDED.name, nft_tokens.name),
			image_url = COALESCE(EXCLUDED.image_url, nft_tokens.image_url),
			metadata = COALESCE(EXCLUDED.metadata, nft_tokens.metadata),
			last_updated = now()`,
		t.TokenAddress, t.TokenID, t.Owner, t.TokenURI, t.Name, t.ImageURI, t.MetadataJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert nft token %s/%s: %w", t.TokenAddress, t.TokenID, err)
	}
	return nil
}

// Get fetches a single NFT token record.
func (r *NFTTokenRepository) Get(ctx context.Context, tokenAddress, tokenID string) (*NFTToken, error) {
	var uri, name, image, metadata sql.NullString
	row := r.client.QueryRowContext(ctx, `
		SELECT owner_address, metadata_uri, name, image_url, metadata::text, last_updated
		FROM nft_tokens WHERE token_address = $1 AND token_id = $2`, tokenAddress, tokenID)

	t := &NFTToken{TokenAddress: tokenAddress, TokenID: tokenID}
	if err := row.Scan(&t.Owner, &uri, &name, &image, &metadata, &t.LastSyncedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNFTTokenNotFound
		}
		return nil, fmt.Errorf("failed to fetch nft token %s/%s: %w", tokenAddress, tokenID, err)
	}
	t.TokenURI, t.Name, t.ImageURI, t.MetadataJSON = uri.String, name.String, image.String, metadata.String
	return t, nil
}

// NFTCollectionRepository persists collection-level ERC-721/1155 metadata.
type NFTCollectionRepository struct {
	client *Client
}

// NewNFTCollectionRepository constructs an NFTCollectionRepository.
func NewNFTCollectionRepository(client *Client) *NFTCollectionRepository {
	return &NFTCollectionRepository{client: client}
}

// Upsert writes or refreshes collection-level metadata.
func (r *NFTCollectionRepository) Upsert(ctx context.Context, db DBTX, c *NFTCollection) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO nft_collections (token_address, name, symbol, total_supply, last_updated)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, '')::numeric, now())
		ON CONFLICT (token_address) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, nft_collections.name),
			symbol = COALESCE(EXCLUDED.symbol, nft_collections.symbol),
			total_supply = COALESCE(EXCLUDED.total_supply, nft_collections.total_supply),
			last_updated = now()`,
		c.Address, c.Name, c.Symbol, c.TotalSupply)
	if err != nil {
		return fmt.Errorf("failed to upsert nft collection %s: %w", c.Address, err)
	}
	return nil
}

// Get fetches a single NFT collection record.
func (r *NFTCollectionRepository) Get(ctx context.Context, tokenAddress string) (*NFTCollection, error) {
	var name, symbol, totalSupply sql.NullString
	row := r.client.QueryRowContext(ctx, `
		SELECT name, symbol, total_supply::text FROM nft_collections WHERE token_address = $1`, tokenAddress)

	c := &NFTCollection{Address: tokenAddress}
	if err := row.Scan(&name, &symbol, &totalSupply); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNFTCollectionNotFound
		}
		return nil, fmt.Errorf("failed to fetch nft collection %s: %w", tokenAddress, err)
	}
	c.Name, c.Symbol, c.TotalSupply = name.String, symbol.String, totalSupply.String
	return c, nil
}
