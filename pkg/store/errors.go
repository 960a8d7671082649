// Copyright 2025 Chainframe
//
// Sentinel errors for store operations. Repositories return these instead
// of (nil, nil) on a missing row so callers can use errors.Is.

package store

import "errors"

var (
	// ErrBlockNotFound is returned when a block is not present in the store.
	ErrBlockNotFound = errors.New("block not found")

	// ErrTransactionNotFound is returned when a transaction is not present.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrContractNotFound is returned when a contract record is not present.
	ErrContractNotFound = errors.New("contract not found")

	// ErrVerificationNotFound is returned when no verification exists for
	// a contract address.
	ErrVerificationNotFound = errors.New("verification not found")

	// ErrNFTCollectionNotFound is returned when an NFT collection record
	// is not present.
	ErrNFTCollectionNotFound = errors.New("nft collection not found")

	// ErrNFTTokenNotFound is returned when an NFT token record is not
	// present.
	ErrNFTTokenNotFound = errors.New("nft token not found")
)
