// Copyright 2025 Chainframe

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ContractRepository persists detected contracts and their verification
// state.
type ContractRepository struct {
	client *Client
}

// NewContractRepository constructs a ContractRepository.
func NewContractRepository(client *Client) *ContractRepository {
	return &ContractRepository{client: client}
}

// Insert records a newly detected contract. Detection is idempotent: a
// conflict on address (the contract was already seen) is a no-op.
func (r *ContractRepository) Insert(ctx context.Context, db DBTX, c *Contract, timestamp interface{}, bytecode string) error {
	var decimals sql.NullInt64
	if c.Decimals > 0 {
		decimals = sql.NullInt64{Int64: int64(c.Decimals), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO contracts (address, creator, creation_tx, block_number, "timestamp", contract_type, name, symbol, decimals, bytecode, verified)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, false)
		ON CONFLICT (address) DO NOTHING`,
		c.Address, c.CreatorAddress, c.CreationTxHash, c.CreationBlock, timestamp, string(c.Standard), c.Name, c.Symbol, decimals, bytecode)
	if err != nil {
		return fmt.Errorf("failed to insert contract %s: %w", c.Address, err)
	}
	return nil
}

// Get fetches a contract by address.
func (r *ContractRepository) Get(ctx context.Context, address string) (*Contract, error) {
	var creator, creationTx, name, symbol sql.NullString
	var decimals sql.NullInt64
	row := r.client.QueryRowContext(ctx, `
		SELECT address, creator, creation_tx, block_number, contract_type, name, symbol, decimals, verified
		FROM contracts WHERE address = $1`, address)

	c := &Contract{}
	var standard string
	if err := row.Scan(&c.Address, &creator, &creationTx, &c.CreationBlock, &standard, &name, &symbol, &decimals, &c.IsVerified); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to fetch contract %s: %w", address, err)
	}
	c.CreatorAddress, c.CreationTxHash, c.Name, c.Symbol = creator.String, creationTx.String, name.String, symbol.String
	c.Decimals = int(decimals.Int64)
	c.Standard = ContractStandard(standard)
	return c, nil
}

// CodeSeen reports whether a contract row already exists for address,
// used by detection to avoid re-probing known contracts.
func (r *ContractRepository) CodeSeen(ctx context.Context, address string) (bool, error) {
	var exists bool
	row := r.client.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM contracts WHERE address = $1)`, address)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check contract existence for %s: %w", address, err)
	}
	return exists, nil
}

// UpsertVerification persists a successful verification result. Implicitly
// sets verified = true.
func (r *ContractRepository) UpsertVerification(ctx context.Context, v *ContractVerification) error {
	sourceFilesJSON, err := json.Marshal(v.SourceFiles)
	if err != nil {
		return fmt.Errorf("failed to marshal source files: %w", err)
	}
	isMultiFile := len(v.SourceFiles) > 1
	mainFile := v.MainFile
	if isMultiFile && mainFile == "" {
		mainFile = deriveMainFile(v.SourceFiles)
	}

	_, err = r.client.ExecContext(ctx, `
		UPDATE contracts SET
			verified = true,
			source_files = $2::jsonb,
			abi = $3::jsonb,
			compiler_version = $4,
			optimization_used = $5,
			runs = $6,
			constructor_arguments = NULLIF($7, ''),
			evm_version = $8,
			is_multi_file = $9,
			main_file = NULLIF($10, ''),
			verification_metadata = NULLIF($11, '')::jsonb,
			verified_at = $12,
			match_type = NULLIF($13, '')
		WHERE address = $1`,
		v.ContractAddress, string(sourceFilesJSON), v.ABI, v.CompilerVersion, v.Optimized, v.OptimizationRuns,
		v.ConstructorArgs, v.EVMVersion, isMultiFile, mainFile, v.Metadata, v.VerifiedAt, v.MatchType)
	if err != nil {
		return fmt.Errorf("failed to persist verification for %s: %w", v.ContractAddress, err)
	}
	return nil
}

// deriveMainFile falls back to the lexicographically first source file
// (by basename, extension stripped) when the caller didn't supply one.
func deriveMainFile(sourceFiles map[string]string) string {
	names := make([]string, 0, len(sourceFiles))
	for p := range sourceFiles {
		names = append(names, path.Base(strings.ReplaceAll(p, "\\", "/")))
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return strings.TrimSuffix(names[0], ".sol")
}

// Verification fetches the verification record for a contract, if verified.
func (r *ContractRepository) Verification(ctx context.Context, address string) (*ContractVerification, error) {
	var sourceFilesJSON, abi, compilerVersion, constructorArgs, evmVersion, mainFile, metadata, matchType sql.NullString
	var optimized sql.NullBool
	var runs sql.NullInt64
	var verifiedAt sql.NullTime
	var verified bool

	row := r.client.QueryRowContext(ctx, `
		SELECT verified, source_files::text, abi::text, compiler_version, optimization_used, runs, constructor_arguments, evm_version, main_file, verification_metadata::text, verified_at, match_type
		FROM contracts WHERE address = $1`, address)

	if err := row.Scan(&verified, &sourceFilesJSON, &abi, &compilerVersion, &optimized, &runs, &constructorArgs, &evmVersion, &mainFile, &metadata, &verifiedAt, &matchType); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to fetch verification for %s: %w", address, err)
	}
	if !verified {
		return nil, ErrVerificationNotFound
	}

	v := &ContractVerification{
		ContractAddress:  address,
		CompilerVersion:  compilerVersion.String,
		EVMVersion:       evmVersion.String,
		Optimized:        optimized.Bool,
		OptimizationRuns: int(runs.Int64),
		ConstructorArgs:  constructorArgs.String,
		MainFile:         mainFile.String,
		ABI:              abi.String,
		Metadata:         metadata.String,
		MatchType:        matchType.String,
		VerifiedAt:       verifiedAt.Time,
	}
	if sourceFilesJSON.Valid {
		_ = json.Unmarshal([]byte(sourceFilesJSON.String), &v.SourceFiles)
	}
	return v, nil
}
