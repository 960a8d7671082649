// Copyright 2025 Chainframe

package store

// Repositories aggregates every repository backed by a single Client.
type Repositories struct {
	Blocks         *BlockRepository
	Transactions   *TransactionRepository
	Transfers      *TransferRepository
	Balances       *BalanceRepository
	NFTTokens      *NFTTokenRepository
	NFTCollections *NFTCollectionRepository
	Contracts      *ContractRepository
	IngestState    *IngestStateRepository
}

// NewRepositories constructs every repository against the given client.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		Blocks:         NewBlockRepository(client),
		Transactions:   NewTransactionRepository(client),
		Transfers:      NewTransferRepository(client),
		Balances:       NewBalanceRepository(client),
		NFTTokens:      NewNFTTokenRepository(client),
		NFTCollections: NewNFTCollectionRepository(client),
		Contracts:      NewContractRepository(client),
		IngestState:    NewIngestStateRepository(client),
	}
}
