// Copyright 2025 Chainframe
//
// NFT and collection metadata resolution. Fetch failures are soft: they
// log and leave the record incomplete, retried on the next transfer of
// the same token.

package derive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultIPFSGateway = "https://ipfs.io/ipfs/"

// MetadataFetcher resolves tokenURI/uri contents over HTTP or IPFS.
type MetadataFetcher struct {
	httpClient  *http.Client
	ipfsGateway string
	logger      *log.Logger
}

// NewMetadataFetcher constructs a MetadataFetcher with a fixed timeout.
func NewMetadataFetcher(timeout time.Duration, logger *log.Logger) *MetadataFetcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[Derive] ", log.LstdFlags)
	}
	return &MetadataFetcher{
		httpClient:  &http.Client{Timeout: timeout},
		ipfsGateway: defaultIPFSGateway,
		logger:      logger,
	}
}

// TokenMetadata is the subset of a metadata JSON blob the indexer extracts.
type TokenMetadata struct {
	Raw         string
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Fetch resolves uri (HTTP or IPFS) and extracts name/description/image.
// Any failure is returned to the caller, which is expected to log and
// continue (soft-fail semantics live at the call site, not here).
func (f *MetadataFetcher) Fetch(ctx context.Context, uri string) (*TokenMetadata, error) {
	resolved := f.resolveURI(uri)
	if resolved == "" {
		return nil, fmt.Errorf("empty metadata uri")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata from %s: %w", resolved, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata fetch from %s returned status %d", resolved, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata body from %s: %w", resolved, err)
	}

	meta := &TokenMetadata{Raw: string(body)}
	if err := json.Unmarshal(body, meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata json from %s: %w", resolved, err)
	}
	meta.Image = f.resolveURI(meta.Image)
	return meta, nil
}

// resolveURI rewrites an ipfs:// URI to an HTTP gateway URL; other schemes
// pass through unchanged.
func (f *MetadataFetcher) resolveURI(uri string) string {
	if strings.HasPrefix(uri, "ipfs://") {
		return f.ipfsGateway + strings.TrimPrefix(uri, "ipfs://")
	}
	return uri
}
