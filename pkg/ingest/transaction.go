// Copyright 2025 Chainframe

package ingest

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainframe/evm-indexer/pkg/derive"
	"github.com/chainframe/evm-indexer/pkg/store"
)

// processTransaction inserts a Transaction row, extracts token transfers
// from its receipt logs, and records/detects any contract it touches.
func (p *Pipeline) processTransaction(ctx context.Context, tx *store.Tx, blockNumber uint64, index int, gethTx *types.Transaction, timestamp time.Time) error {
	from, err := types.Sender(types.LatestSignerForChainID(gethTx.ChainId()), gethTx)
	if err != nil {
		return fmt.Errorf("failed to recover sender: %w", err)
	}

	var toAddr string
	if gethTx.To() != nil {
		toAddr = strings.ToLower(gethTx.To().Hex())
	}

	receipt, err := p.pool.Receipt(ctx, gethTx.Hash())
	if err != nil {
		return fmt.Errorf("failed to fetch receipt: %w", err)
	}

	var gasUsed uint64
	status := true
	var contractAddr string
	if receipt != nil {
		gasUsed = receipt.GasUsed
		status = receipt.Status == types.ReceiptStatusSuccessful
		if receipt.ContractAddress != (common.Address{}) {
			contractAddr = strings.ToLower(receipt.ContractAddress.Hex())
		}
	}

	value := "0"
	if gethTx.Value() != nil {
		value = gethTx.Value().String()
	}
	gasPrice := "0"
	if gethTx.GasPrice() != nil {
		gasPrice = gethTx.GasPrice().String()
	}

	record := &store.Transaction{
		Hash:             gethTx.Hash().Hex(),
		BlockNumber:      blockNumber,
		TransactionIndex: index,
		FromAddress:      strings.ToLower(from.Hex()),
		ToAddress:        toAddr,
		Value:            value,
		GasUsed:          gasUsed,
		GasPrice:         gasPrice,
		Status:           status,
		ContractAddress:  contractAddr,
		InputData:        gethTx.Data(),
	}
	if err := p.repos.Transactions.Insert(ctx, tx.Raw(), record, timestamp); err != nil {
		return err
	}

	if receipt != nil {
		for _, l := range receipt.Logs {
			transfers, err := derive.Decode(l)
			if err != nil {
				p.logger.Printf("failed to decode log %s/%d: %v", l.TxHash.Hex(), l.Index, err)
				continue
			}
			for _, t := range transfers {
				if err := p.repos.Transfers.Insert(ctx, tx.Raw(), timestamp, t); err != nil {
					return fmt.Errorf("failed to insert transfer: %w", err)
				}
				p.resolveNFTMetadata(ctx, tx, t)
			}
		}
	}

	if contractAddr != "" {
		if err := p.detectContract(ctx, tx, common.HexToAddress(contractAddr), record.FromAddress, record.Hash, blockNumber, timestamp); err != nil {
			p.logger.Printf("contract detection failed for %s: %v", contractAddr, err)
		}
	} else if toAddr != "" {
		seen, err := p.repos.Contracts.CodeSeen(ctx, toAddr)
		if err == nil && !seen {
			if err := p.detectContract(ctx, tx, common.HexToAddress(toAddr), record.FromAddress, record.Hash, blockNumber, timestamp); err != nil {
				p.logger.Printf("contract detection failed for %s: %v", toAddr, err)
			}
		}
	}

	return nil
}

// resolveNFTMetadata performs a best-effort tokenURI/metadata fetch for a
// newly-seen NFT. Failures are soft: logged and left for the next
// transfer to retry.
func (p *Pipeline) resolveNFTMetadata(ctx context.Context, tx *store.Tx, t *store.TokenTransfer) {
	if t.Kind == store.TransferKindERC20 || t.TokenID == "" {
		return
	}

	if existing, err := p.repos.NFTTokens.Get(ctx, t.TokenAddress, t.TokenID); err == nil && existing.MetadataJSON != "" {
		// Metadata already resolved; owner still needs updating even
		// though the metadata fetch is skipped.
		_ = p.repos.NFTTokens.Upsert(ctx, tx.Raw(), &store.NFTToken{
			TokenAddress: t.TokenAddress,
			TokenID:      t.TokenID,
			Owner:        t.ToAddress,
		})
		return
	}

	uri, err := p.fetchTokenURI(ctx, common.HexToAddress(t.TokenAddress), t.TokenID, t.Kind)
	nft := &store.NFTToken{
		TokenAddress: t.TokenAddress,
		TokenID:      t.TokenID,
		Owner:        t.ToAddress,
	}
	if err != nil {
		p.logger.Printf("tokenURI fetch failed for %s/%s: %v", t.TokenAddress, t.TokenID, err)
	} else {
		nft.TokenURI = uri
		meta, metaErr := p.meta.Fetch(ctx, uri)
		if metaErr != nil {
			p.logger.Printf("metadata fetch failed for %s/%s: %v", t.TokenAddress, t.TokenID, metaErr)
		} else {
			nft.MetadataJSON = meta.Raw
			nft.Name = meta.Name
			nft.ImageURI = meta.Image
		}
	}

	if err := p.repos.NFTTokens.Upsert(ctx, tx.Raw(), nft); err != nil {
		p.logger.Printf("failed to persist nft token %s/%s: %v", t.TokenAddress, t.TokenID, err)
	}
}

// detectContract runs standard detection/classification for a
// freshly-seen contract address.
func (p *Pipeline) detectContract(ctx context.Context, tx *store.Tx, addr common.Address, creator, creationTx string, blockNumber uint64, timestamp time.Time) error {
	c, bytecode, err := p.prober.Probe(ctx, addr)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	c.CreatorAddress = creator
	c.CreationTxHash = creationTx
	c.CreationBlock = blockNumber

	if err := p.repos.Contracts.Insert(ctx, tx.Raw(), c, timestamp, bytecode); err != nil {
		return err
	}

	if c.Standard == store.ContractStandardERC721 || c.Standard == store.ContractStandardERC1155 {
		_ = p.repos.NFTCollections.Upsert(ctx, tx.Raw(), &store.NFTCollection{
			Address: c.Address,
			Name:    c.Name,
			Symbol:  c.Symbol,
		})
	}

	return nil
}

// fetchTokenURI calls tokenURI (ERC-721) or uri (ERC-1155) on the token
// contract.
func (p *Pipeline) fetchTokenURI(ctx context.Context, addr common.Address, tokenID string, kind store.TransferKind) (string, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return "", fmt.Errorf("invalid token id %q", tokenID)
	}

	method := "tokenURI"
	if kind == store.TransferKindERC1155 {
		method = "uri"
	}

	data, err := tokenURIABI.Pack(method, id)
	if err != nil {
		return "", fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	out, err := p.pool.Call(ctx, ethereumCallMsg(addr, data))
	if err != nil {
		return "", err
	}
	results, err := tokenURIABI.Unpack(method, out)
	if err != nil || len(results) != 1 {
		return "", fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	uri, _ := results[0].(string)
	return uri, nil
}
