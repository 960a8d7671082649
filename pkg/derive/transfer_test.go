// Copyright 2025 Chainframe

package derive

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainframe/evm-indexer/pkg/store"
)

func leftPad32(v *big.Int) common.Hash {
	return common.BigToHash(v)
}

func TestDecodeTransferERC20(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")

	log := &types.Log{
		Address: token,
		Topics: []common.Hash{
			transferTopic0,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(big.NewInt(1000).Bytes(), 32),
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xabc"),
		Index:       3,
	}

	out, err := Decode(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(out))
	}
	transfer := out[0]
	if transfer.Kind != store.TransferKindERC20 {
		t.Errorf("expected erc20, got %s", transfer.Kind)
	}
	if transfer.Amount != "1000" {
		t.Errorf("expected amount 1000, got %s", transfer.Amount)
	}
	if transfer.FromAddress != normalizeAddress(from) {
		t.Errorf("expected from %s, got %s", normalizeAddress(from), transfer.FromAddress)
	}
	if transfer.TokenID != "" {
		t.Errorf("expected no token id for erc20, got %s", transfer.TokenID)
	}
}

func TestDecodeTransferERC721(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")

	log := &types.Log{
		Address: token,
		Topics: []common.Hash{
			transferTopic0,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			leftPad32(big.NewInt(7)),
		},
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xabc"),
		Index:       3,
	}

	out, err := Decode(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(out))
	}
	transfer := out[0]
	if transfer.Kind != store.TransferKindERC721 {
		t.Errorf("expected erc721, got %s", transfer.Kind)
	}
	if transfer.TokenID != "7" {
		t.Errorf("expected token id 7, got %s", transfer.TokenID)
	}
	if transfer.Amount != "1" {
		t.Errorf("expected amount 1, got %s", transfer.Amount)
	}
}

func TestDecodeTransferSingle(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	operator := common.HexToAddress("0x4444444444444444444444444444444444444444")
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data := append(common.LeftPadBytes(big.NewInt(5).Bytes(), 32), common.LeftPadBytes(big.NewInt(200).Bytes(), 32)...)
	log := &types.Log{
		Address: token,
		Topics: []common.Hash{
			transferSingleTopic0,
			common.BytesToHash(operator.Bytes()),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        data,
		BlockNumber: 10,
		TxHash:      common.HexToHash("0xdef"),
		Index:       1,
	}

	out, err := Decode(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(out))
	}
	transfer := out[0]
	if transfer.Kind != store.TransferKindERC1155 {
		t.Errorf("expected erc1155, got %s", transfer.Kind)
	}
	if transfer.TokenID != "5" || transfer.Amount != "200" {
		t.Errorf("unexpected id/amount: %s/%s", transfer.TokenID, transfer.Amount)
	}

	t.Run("topic1 carries the operator", func(t *testing.T) {
		if log.Topics[1] != common.BytesToHash(operator.Bytes()) {
			t.Errorf("operator topic changed unexpectedly")
		}
	})
}

func TestDecodeTransferBatch(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	operator := common.HexToAddress("0x4444444444444444444444444444444444444444")
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")

	ids := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	values := []*big.Int{big.NewInt(10), big.NewInt(20), big.NewInt(30)}
	data := encodeBatchArraysForTest(ids, values)

	log := &types.Log{
		Address: token,
		Topics: []common.Hash{
			transferBatchTopic0,
			common.BytesToHash(operator.Bytes()),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        data,
		BlockNumber: 11,
		TxHash:      common.HexToHash("0xfff"),
		Index:       2,
	}

	out, err := Decode(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 transfers, got %d", len(out))
	}
	for i, transfer := range out {
		if transfer.TokenID != ids[i].String() {
			t.Errorf("transfer %d: expected token id %s, got %s", i, ids[i].String(), transfer.TokenID)
		}
		if transfer.Amount != values[i].String() {
			t.Errorf("transfer %d: expected amount %s, got %s", i, values[i].String(), transfer.Amount)
		}
	}
}

func TestDecodeUnknownTopic(t *testing.T) {
	log := &types.Log{
		Topics: []common.Hash{common.HexToHash("0xdeadbeef")},
	}
	out, err := Decode(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil for unrecognized topic0, got %v", out)
	}
}

func TestDecodeNoTopics(t *testing.T) {
	out, err := Decode(&types.Log{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil for a log with no topics, got %v", out)
	}
}

func TestNormalizeHexLowercases(t *testing.T) {
	got := normalizeHex("0xABCDEF")
	if got != "0xabcdef" {
		t.Errorf("expected 0xabcdef, got %s", got)
	}
}

// encodeBatchArraysForTest builds the ABI encoding of (uint256[], uint256[])
// that decodeBatchArrays expects to parse.
func encodeBatchArraysForTest(ids, values []*big.Int) []byte {
	idsOffset := int64(64)
	idsWords := int64(1 + len(ids))
	valuesOffset := idsOffset + idsWords*32

	var out []byte
	out = append(out, common.LeftPadBytes(big.NewInt(idsOffset).Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(big.NewInt(valuesOffset).Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(big.NewInt(int64(len(ids))).Bytes(), 32)...)
	for _, id := range ids {
		out = append(out, common.LeftPadBytes(id.Bytes(), 32)...)
	}
	out = append(out, common.LeftPadBytes(big.NewInt(int64(len(values))).Bytes(), 32)...)
	for _, v := range values {
		out = append(out, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return out
}
