// Copyright 2025 Chainframe
//
// Data model for the indexer's persisted state. Addresses are stored as
// lowercase 0x-prefixed hex strings; amounts that may exceed 64 bits are
// stored as decimal strings rather than native integers.

package store

import "time"

// Block is a single ingested block header.
type Block struct {
	Number     uint64
	Hash       string
	ParentHash string
	Timestamp  time.Time
	GasUsed    uint64
	GasLimit   uint64
	BaseFee    string // decimal string, empty if pre-EIP-1559
	TxCount    int
}

// Transaction is a single transaction within an ingested block.
type Transaction struct {
	Hash             string
	BlockNumber      uint64
	TransactionIndex int
	FromAddress      string
	ToAddress        string // empty for contract-creation transactions
	Value            string // decimal string
	GasUsed          uint64
	GasPrice         string // decimal string
	Status           bool
	ContractAddress  string // set when this tx created a contract
	InputData        []byte
}

// TransferKind distinguishes the token standard a transfer event belongs to.
type TransferKind string

const (
	TransferKindERC20   TransferKind = "erc20"
	TransferKindERC721  TransferKind = "erc721"
	TransferKindERC1155 TransferKind = "erc1155"
)

// TokenTransfer is a single decoded Transfer/TransferSingle/TransferBatch
// event, one row per token id for batch transfers.
type TokenTransfer struct {
	ID              int64
	BlockNumber     uint64
	TransactionHash string
	LogIndex        int
	TokenAddress    string
	Kind            TransferKind
	FromAddress     string
	ToAddress       string
	TokenID         string // empty for ERC-20
	Amount          string // decimal string; 1 for ERC-721
}

// TokenBalance is the derived balance of an account for a given token
// (and token id, for ERC-721/1155). The unique key is
// (address, token_address, token_id).
type TokenBalance struct {
	Address      string
	TokenAddress string
	TokenID      string // empty for ERC-20 and fungible-only holdings
	Balance      string // decimal string, clamped at zero
	UpdatedAt    time.Time
}

// NFTCollection is a detected ERC-721 or ERC-1155 contract.
type NFTCollection struct {
	Address     string
	Name        string
	Symbol      string
	Standard    string // "erc721" or "erc1155"
	Creator     string // zero-address mint origin, set once
	TotalSupply string // decimal string, best-effort
}

// NFTToken is a single minted token within an NFTCollection, with its
// resolved metadata (best-effort, may be incomplete).
type NFTToken struct {
	TokenAddress string
	TokenID      string
	Owner        string
	TokenURI     string
	MetadataJSON string // raw fetched JSON, empty if unresolved
	Name         string
	Description  string
	ImageURI     string
	LastSyncedAt time.Time
}

// ContractStandard is the best detected ERC interface for a contract.
type ContractStandard string

const (
	ContractStandardUnknown ContractStandard = "unknown"
	ContractStandardERC20   ContractStandard = "erc20"
	ContractStandardERC721  ContractStandard = "erc721"
	ContractStandardERC1155 ContractStandard = "erc1155"
)

// Contract is a detected contract account, created by a transaction or by
// another contract via CREATE/CREATE2.
type Contract struct {
	Address        string
	CreatorAddress string
	CreationTxHash string
	CreationBlock  uint64
	Standard       ContractStandard
	Name           string
	Symbol         string
	Decimals       int
	IsVerified     bool
}

// ContractVerification is the result of a successful or attempted source
// verification for a contract address.
type ContractVerification struct {
	ContractAddress  string
	CompilerVersion  string
	EVMVersion       string
	Optimized        bool
	OptimizationRuns int
	SourceFiles      map[string]string // path -> source, multiple for multi-file
	MainFile         string            // basename (no extension) of the contract's defining file, multi-file only
	ConstructorArgs  string            // lowercase hex without 0x prefix, empty if none
	ABI              string            // raw JSON
	Metadata         string            // raw solc metadata JSON
	MatchType        string            // "exact" or "constructor-args"
	VerifiedAt       time.Time
}

// IngestState tracks the single-row ingestion progress cursor.
type IngestState struct {
	LatestProcessedBlock uint64
	UpdatedAt            time.Time
}
