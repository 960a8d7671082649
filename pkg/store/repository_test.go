// Copyright 2025 Chainframe

package store

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/chainframe/evm-indexer/pkg/config"
)

var testClient *Client

func TestMain(m *testing.M) {
	connStr := os.Getenv("INDEXER_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	cfg := &config.Config{
		DatabaseURL:       connStr,
		DBMaxOpenConns:    5,
		DBMaxIdleConns:    2,
		DBConnMaxLifetime: time.Hour,
		DBConnMaxIdleTime: 5 * time.Minute,
	}

	client, err := NewClient(cfg)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	if err := client.MigrateUp(context.Background()); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}
	testClient = client

	code := m.Run()
	testClient.Close()
	os.Exit(code)
}

func randomAddress() string {
	b := make([]byte, 20)
	rand.Read(b)
	return fmt.Sprintf("0x%x", b)
}

func randomHash() string {
	b := make([]byte, 32)
	rand.Read(b)
	return fmt.Sprintf("0x%x", b)
}

func insertTestBlock(t *testing.T, number uint64) *Block {
	t.Helper()
	b := &Block{
		Number:     number,
		Hash:       randomHash(),
		ParentHash: randomHash(),
		Timestamp:  time.Now().UTC(),
		GasUsed:    21000,
		GasLimit:   30_000_000,
		TxCount:    0,
	}
	if err := NewBlockRepository(testClient).Insert(context.Background(), testClient, b); err != nil {
		t.Fatalf("failed to insert test block: %v", err)
	}
	t.Cleanup(func() {
		_, _ = testClient.ExecContext(context.Background(), "DELETE FROM blocks WHERE number = $1", number)
	})
	return b
}

func TestBlockRepositoryInsertAndGet(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	number := uint64(1_000_000 + rand.Intn(1_000_000))
	b := insertTestBlock(t, number)

	repo := NewBlockRepository(testClient)
	got, err := repo.ByNumber(context.Background(), number)
	if err != nil {
		t.Fatalf("failed to fetch block: %v", err)
	}
	if got.Hash != b.Hash {
		t.Errorf("expected hash %s, got %s", b.Hash, got.Hash)
	}

	// Re-inserting the same height is a no-op, not an error.
	if err := repo.Insert(context.Background(), testClient, b); err != nil {
		t.Errorf("expected duplicate insert to be a no-op, got %v", err)
	}
}

func TestBlockRepositoryGetNotFound(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	_, err := NewBlockRepository(testClient).ByNumber(context.Background(), 999_999_999)
	if err != ErrBlockNotFound {
		t.Errorf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestTransferRepositoryAppliesBalanceUpdate(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	ctx := context.Background()
	number := uint64(2_000_000 + rand.Intn(1_000_000))
	insertTestBlock(t, number)

	txHash := randomHash()
	tokenAddr := randomAddress()
	from := randomAddress()
	to := randomAddress()

	txRepo := NewTransactionRepository(testClient)
	if err := txRepo.Insert(ctx, testClient, &Transaction{
		Hash:             txHash,
		BlockNumber:      number,
		TransactionIndex: 0,
		FromAddress:      from,
		ToAddress:        tokenAddr,
		Value:            "0",
		GasPrice:         "0",
		Status:           true,
	}, time.Now().UTC()); err != nil {
		t.Fatalf("failed to insert transaction: %v", err)
	}
	t.Cleanup(func() {
		_, _ = testClient.ExecContext(ctx, "DELETE FROM token_transfers WHERE transaction_hash = $1", txHash)
		_, _ = testClient.ExecContext(ctx, "DELETE FROM token_balances WHERE token_address = $1", tokenAddr)
		_, _ = testClient.ExecContext(ctx, "DELETE FROM transactions WHERE hash = $1", txHash)
	})

	transferRepo := NewTransferRepository(testClient)
	transfer := &TokenTransfer{
		BlockNumber:     number,
		TransactionHash: txHash,
		LogIndex:        0,
		TokenAddress:    tokenAddr,
		Kind:            TransferKindERC20,
		FromAddress:     from,
		ToAddress:       to,
		Amount:          "1000",
	}
	if err := transferRepo.Insert(ctx, testClient, time.Now().UTC(), transfer); err != nil {
		t.Fatalf("failed to insert transfer: %v", err)
	}

	// Re-applying the identical transfer must not double the credit (the
	// insert is a no-op on a true conflict).
	if err := transferRepo.Insert(ctx, testClient, time.Now().UTC(), transfer); err != nil {
		t.Fatalf("failed to re-insert identical transfer: %v", err)
	}

	balanceRepo := NewBalanceRepository(testClient)
	bal, err := balanceRepo.Get(ctx, to, tokenAddr, "")
	if err != nil {
		t.Fatalf("failed to fetch balance: %v", err)
	}
	if bal.Balance != "1000" {
		t.Errorf("expected balance 1000 after idempotent re-insert, got %s", bal.Balance)
	}
}

func TestBalanceRepositoryGetDefaultsToZero(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	bal, err := NewBalanceRepository(testClient).Get(context.Background(), randomAddress(), randomAddress(), "")
	if err != nil {
		t.Fatalf("unexpected error for unknown balance: %v", err)
	}
	if bal.Balance != "0" {
		t.Errorf("expected zero balance for unknown holder, got %s", bal.Balance)
	}
}

func TestContractRepositoryInsertIsIdempotent(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	ctx := context.Background()
	number := uint64(3_000_000 + rand.Intn(1_000_000))
	insertTestBlock(t, number)

	addr := randomAddress()
	c := &Contract{
		Address:       addr,
		CreationBlock: number,
		Standard:      ContractStandardERC20,
		Name:          "Test Token",
		Symbol:        "TST",
		Decimals:      18,
	}
	repo := NewContractRepository(testClient)
	t.Cleanup(func() {
		_, _ = testClient.ExecContext(ctx, "DELETE FROM contracts WHERE address = $1", addr)
	})

	if err := repo.Insert(ctx, testClient, c, time.Now().UTC(), "0x6080"); err != nil {
		t.Fatalf("failed to insert contract: %v", err)
	}
	if err := repo.Insert(ctx, testClient, c, time.Now().UTC(), "0x6080"); err != nil {
		t.Fatalf("expected duplicate contract insert to be a no-op, got %v", err)
	}

	seen, err := repo.CodeSeen(ctx, addr)
	if err != nil {
		t.Fatalf("failed to check code seen: %v", err)
	}
	if !seen {
		t.Error("expected CodeSeen to report true after insert")
	}

	got, err := repo.Get(ctx, addr)
	if err != nil {
		t.Fatalf("failed to fetch contract: %v", err)
	}
	if got.Name != "Test Token" || got.Symbol != "TST" {
		t.Errorf("unexpected contract fields: %+v", got)
	}
}

func TestContractRepositoryUpsertVerification(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	ctx := context.Background()
	number := uint64(4_000_000 + rand.Intn(1_000_000))
	insertTestBlock(t, number)

	addr := randomAddress()
	repo := NewContractRepository(testClient)
	t.Cleanup(func() {
		_, _ = testClient.ExecContext(ctx, "DELETE FROM contracts WHERE address = $1", addr)
	})

	if err := repo.Insert(ctx, testClient, &Contract{Address: addr, CreationBlock: number}, time.Now().UTC(), "0x6080"); err != nil {
		t.Fatalf("failed to insert contract: %v", err)
	}

	v := &ContractVerification{
		ContractAddress:  addr,
		CompilerVersion:  "v0.8.20+commit.a1b79de6",
		EVMVersion:       "paris",
		Optimized:        true,
		OptimizationRuns: 200,
		SourceFiles:      map[string]string{"contract.sol": "pragma solidity ^0.8.20;"},
		ABI:              `[]`,
		MatchType:        "exact",
		VerifiedAt:       time.Now().UTC(),
	}
	if err := repo.UpsertVerification(ctx, v); err != nil {
		t.Fatalf("failed to upsert verification: %v", err)
	}

	got, err := repo.Verification(ctx, addr)
	if err != nil {
		t.Fatalf("failed to fetch verification: %v", err)
	}
	if got.CompilerVersion != v.CompilerVersion {
		t.Errorf("expected compiler version %s, got %s", v.CompilerVersion, got.CompilerVersion)
	}
	if got.MatchType != "exact" {
		t.Errorf("expected match type exact, got %s", got.MatchType)
	}
	if len(got.SourceFiles) != 1 {
		t.Errorf("expected one source file round-tripped, got %d", len(got.SourceFiles))
	}
}

func TestContractRepositoryVerificationNotFound(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	ctx := context.Background()
	number := uint64(5_000_000 + rand.Intn(1_000_000))
	insertTestBlock(t, number)

	addr := randomAddress()
	repo := NewContractRepository(testClient)
	t.Cleanup(func() {
		_, _ = testClient.ExecContext(ctx, "DELETE FROM contracts WHERE address = $1", addr)
	})

	if err := repo.Insert(ctx, testClient, &Contract{Address: addr, CreationBlock: number}, time.Now().UTC(), "0x6080"); err != nil {
		t.Fatalf("failed to insert contract: %v", err)
	}

	if _, err := repo.Verification(ctx, addr); err != ErrVerificationNotFound {
		t.Errorf("expected ErrVerificationNotFound, got %v", err)
	}
}

func TestIngestStateAdvance(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	ctx := context.Background()
	repo := NewIngestStateRepository(testClient)

	before, err := repo.LatestProcessedBlock(ctx)
	if err != nil {
		t.Fatalf("failed to read ingest state: %v", err)
	}

	if err := repo.Advance(ctx, testClient, before+1); err != nil {
		t.Fatalf("failed to advance ingest state: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Advance(ctx, testClient, before)
	})

	after, err := repo.LatestProcessedBlock(ctx)
	if err != nil {
		t.Fatalf("failed to re-read ingest state: %v", err)
	}
	if after != before+1 {
		t.Errorf("expected cursor %d, got %d", before+1, after)
	}
}

func TestNFTTokenUpsert(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	ctx := context.Background()
	tokenAddr := randomAddress()
	owner := randomAddress()
	repo := NewNFTTokenRepository(testClient)
	t.Cleanup(func() {
		_, _ = testClient.ExecContext(ctx, "DELETE FROM nft_tokens WHERE token_address = $1", tokenAddr)
	})

	if err := repo.Upsert(ctx, testClient, &NFTToken{
		TokenAddress: tokenAddr,
		TokenID:      "42",
		Owner:        owner,
		TokenURI:     "ipfs://abc",
	}); err != nil {
		t.Fatalf("failed to upsert nft token: %v", err)
	}

	got, err := repo.Get(ctx, tokenAddr, "42")
	if err != nil {
		t.Fatalf("failed to fetch nft token: %v", err)
	}
	if got.Owner != owner {
		t.Errorf("expected owner %s, got %s", owner, got.Owner)
	}
}

func TestNFTTokenGetNotFound(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}

	_, err := NewNFTTokenRepository(testClient).Get(context.Background(), randomAddress(), "1")
	if err != ErrNFTTokenNotFound {
		t.Errorf("expected ErrNFTTokenNotFound, got %v", err)
	}
}
