// Copyright 2025 Chainframe
//
// Transfer decoding: turns raw receipt logs into TokenTransfer rows.
// ERC-20 and ERC-721 share the Transfer(address,address,uint256) topic0
// and are distinguished by topic count; ERC-1155 uses its own
// TransferSingle/TransferBatch signatures with batch expansion.

package derive

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainframe/evm-indexer/pkg/store"
)

var (
	transferTopic0       = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	transferSingleTopic0 = common.HexToHash("0xc3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62")
	transferBatchTopic0  = common.HexToHash("0x4a39dc06d4c0dbc64b70af90fd698a233a518aa5d07e595d983b8c0526c8f7fb")
)

// Decode extracts zero or more TokenTransfers from a single receipt log.
// BlockNumber is taken from the log; the block timestamp is not part of
// TokenTransfer and is supplied by the caller when the transfer is stored.
func Decode(log *types.Log) ([]*store.TokenTransfer, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}

	switch log.Topics[0] {
	case transferTopic0:
		return decodeTransfer(log)
	case transferSingleTopic0:
		return decodeTransferSingle(log)
	case transferBatchTopic0:
		return decodeTransferBatch(log)
	default:
		return nil, nil
	}
}

// decodeTransfer handles the shared ERC-20/ERC-721 Transfer signature.
// 3 indexed topics (from, to, tokenId) means ERC-721; 2 indexed topics
// plus a data word (value) means ERC-20.
func decodeTransfer(log *types.Log) ([]*store.TokenTransfer, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("transfer log %s/%d: expected at least 3 topics, got %d", log.TxHash.Hex(), log.Index, len(log.Topics))
	}

	from := common.HexToAddress(log.Topics[1].Hex()).Hex()
	to := common.HexToAddress(log.Topics[2].Hex()).Hex()

	if len(log.Topics) == 4 {
		tokenID := new(big.Int).SetBytes(log.Topics[3].Bytes())
		return []*store.TokenTransfer{{
			BlockNumber:     log.BlockNumber,
			TransactionHash: log.TxHash.Hex(),
			LogIndex:        int(log.Index),
			TokenAddress:    normalizeAddress(log.Address),
			Kind:            store.TransferKindERC721,
			FromAddress:     normalizeHex(from),
			ToAddress:       normalizeHex(to),
			TokenID:         tokenID.String(),
			Amount:          "1",
		}}, nil
	}

	if len(log.Data) < 32 {
		return nil, fmt.Errorf("transfer log %s/%d: expected 32 bytes of data, got %d", log.TxHash.Hex(), log.Index, len(log.Data))
	}
	value := new(big.Int).SetBytes(log.Data[:32])
	return []*store.TokenTransfer{{
		BlockNumber:     log.BlockNumber,
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        int(log.Index),
		TokenAddress:    normalizeAddress(log.Address),
		Kind:            store.TransferKindERC20,
		FromAddress:     normalizeHex(from),
		ToAddress:       normalizeHex(to),
		Amount:          value.String(),
	}}, nil
}

// decodeTransferSingle handles ERC-1155 TransferSingle(operator, from, to, id, value).
func decodeTransferSingle(log *types.Log) ([]*store.TokenTransfer, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("transfer-single log %s/%d: expected at least 4 topics, got %d", log.TxHash.Hex(), log.Index, len(log.Topics))
	}
	if len(log.Data) < 64 {
		return nil, fmt.Errorf("transfer-single log %s/%d: expected 64 bytes of data, got %d", log.TxHash.Hex(), log.Index, len(log.Data))
	}

	from := common.HexToAddress(log.Topics[2].Hex()).Hex()
	to := common.HexToAddress(log.Topics[3].Hex()).Hex()
	id := new(big.Int).SetBytes(log.Data[0:32])
	value := new(big.Int).SetBytes(log.Data[32:64])

	return []*store.TokenTransfer{{
		BlockNumber:     log.BlockNumber,
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        int(log.Index),
		TokenAddress:    normalizeAddress(log.Address),
		Kind:            store.TransferKindERC1155,
		FromAddress:     normalizeHex(from),
		ToAddress:       normalizeHex(to),
		TokenID:         id.String(),
		Amount:          value.String(),
	}}, nil
}

// decodeTransferBatch handles ERC-1155 TransferBatch, expanding the event
// into one TokenTransfer per id in the batch.
func decodeTransferBatch(log *types.Log) ([]*store.TokenTransfer, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("transfer-batch log %s/%d: expected at least 4 topics, got %d", log.TxHash.Hex(), log.Index, len(log.Topics))
	}

	ids, values, err := decodeBatchArrays(log.Data)
	if err != nil {
		return nil, fmt.Errorf("transfer-batch log %s/%d: %w", log.TxHash.Hex(), log.Index, err)
	}
	if len(ids) != len(values) {
		return nil, fmt.Errorf("transfer-batch log %s/%d: ids/values length mismatch (%d vs %d)", log.TxHash.Hex(), log.Index, len(ids), len(values))
	}

	from := common.HexToAddress(log.Topics[2].Hex()).Hex()
	to := common.HexToAddress(log.Topics[3].Hex()).Hex()

	out := make([]*store.TokenTransfer, 0, len(ids))
	for i := range ids {
		out = append(out, &store.TokenTransfer{
			BlockNumber:     log.BlockNumber,
			TransactionHash: log.TxHash.Hex(),
			LogIndex:        int(log.Index),
			TokenAddress:    normalizeAddress(log.Address),
			Kind:            store.TransferKindERC1155,
			FromAddress:     normalizeHex(from),
			ToAddress:       normalizeHex(to),
			TokenID:         ids[i].String(),
			Amount:          values[i].String(),
		})
	}
	return out, nil
}

// decodeBatchArrays parses the ABI-encoded (uint256[], uint256[]) tuple
// used by TransferBatch's non-indexed data.
func decodeBatchArrays(data []byte) ([]*big.Int, []*big.Int, error) {
	if len(data) < 64 {
		return nil, nil, fmt.Errorf("data too short for two array offsets")
	}
	idsOffset := new(big.Int).SetBytes(data[0:32]).Int64()
	valuesOffset := new(big.Int).SetBytes(data[32:64]).Int64()

	ids, err := decodeUintArray(data, idsOffset)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode ids array: %w", err)
	}
	values, err := decodeUintArray(data, valuesOffset)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode values array: %w", err)
	}
	return ids, values, nil
}

func decodeUintArray(data []byte, offset int64) ([]*big.Int, error) {
	if offset < 0 || int64(len(data)) < offset+32 {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}
	length := new(big.Int).SetBytes(data[offset : offset+32]).Int64()
	start := offset + 32
	end := start + length*32
	if end > int64(len(data)) {
		return nil, fmt.Errorf("array of length %d exceeds data bounds", length)
	}

	out := make([]*big.Int, 0, length)
	for i := int64(0); i < length; i++ {
		elemStart := start + i*32
		out = append(out, new(big.Int).SetBytes(data[elemStart:elemStart+32]))
	}
	return out, nil
}

func normalizeAddress(addr common.Address) string {
	return normalizeHex(addr.Hex())
}

// normalizeHex lowercases a 0x-prefixed hex string, the canonical storage
// form for addresses and hashes throughout the store.
func normalizeHex(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
