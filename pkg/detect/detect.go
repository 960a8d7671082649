// Copyright 2025 Chainframe
//
// Contract detection and ERC-standard probing. A contract-creation
// candidate or a newly-seen `to` address is probed for name/symbol/
// decimals/totalSupply/supportsInterface; failures degrade gracefully to
// UNKNOWN rather than aborting detection for the block.

package detect

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/chainframe/evm-indexer/pkg/rpc"
	"github.com/chainframe/evm-indexer/pkg/store"
)

const (
	erc721InterfaceID  = "80ac58cd"
	erc1155InterfaceID = "d9b67a26"
)

const probeABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"interfaceId","type":"bytes4"}],"name":"supportsInterface","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var probeABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(probeABIJSON))
	if err != nil {
		panic(fmt.Sprintf("detect: failed to parse probe ABI: %v", err))
	}
	probeABI = parsed
}

// Prober inspects deployed code and classifies a contract's ERC standard.
type Prober struct {
	pool *rpc.Pool
}

// NewProber constructs a Prober against the given RPC pool.
func NewProber(pool *rpc.Pool) *Prober {
	return &Prober{pool: pool}
}

// Probe fetches code at addr and, if non-empty, classifies it. Returns nil
// with no error if addr has no code (an externally owned account).
func (p *Prober) Probe(ctx context.Context, addr common.Address) (*store.Contract, string, error) {
	code, err := p.pool.Code(ctx, addr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch code at %s: %w", addr.Hex(), err)
	}
	if len(code) == 0 {
		return nil, "", nil
	}

	c := &store.Contract{
		Address:  strings.ToLower(addr.Hex()),
		Standard: store.ContractStandardUnknown,
	}

	is721, _ := p.supportsInterface(ctx, addr, erc721InterfaceID)
	is1155, _ := p.supportsInterface(ctx, addr, erc1155InterfaceID)

	name, _ := p.callString(ctx, addr, "name")
	symbol, _ := p.callString(ctx, addr, "symbol")
	c.Name = name
	c.Symbol = symbol

	switch {
	case is1155:
		c.Standard = store.ContractStandardERC1155
	case is721:
		c.Standard = store.ContractStandardERC721
	default:
		decimals, errDec := p.callUint8(ctx, addr, "decimals")
		_, errSupply := p.callBigInt(ctx, addr, "totalSupply")
		if errDec == nil && errSupply == nil {
			c.Standard = store.ContractStandardERC20
			c.Decimals = int(decimals)
		}
	}

	return c, fmt.Sprintf("0x%x", code), nil
}

func (p *Prober) supportsInterface(ctx context.Context, addr common.Address, interfaceIDHex string) (bool, error) {
	var id [4]byte
	idBytes := common.FromHex(interfaceIDHex)
	copy(id[:], idBytes)

	data, err := probeABI.Pack("supportsInterface", id)
	if err != nil {
		return false, fmt.Errorf("failed to pack supportsInterface call: %w", err)
	}

	out, err := p.pool.Call(ctx, ethereum.CallMsg{To: &addr, Data: data})
	if err != nil {
		return false, err
	}

	results, err := probeABI.Unpack("supportsInterface", out)
	if err != nil || len(results) != 1 {
		return false, fmt.Errorf("failed to unpack supportsInterface result: %w", err)
	}
	ok, _ := results[0].(bool)
	return ok, nil
}

func (p *Prober) callString(ctx context.Context, addr common.Address, method string) (string, error) {
	data, err := probeABI.Pack(method)
	if err != nil {
		return "", err
	}
	out, err := p.pool.Call(ctx, ethereum.CallMsg{To: &addr, Data: data})
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%s: empty return data", method)
	}
	results, err := probeABI.Unpack(method, out)
	if err != nil || len(results) != 1 {
		return "", fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	s, _ := results[0].(string)
	return s, nil
}

func (p *Prober) callUint8(ctx context.Context, addr common.Address, method string) (uint8, error) {
	data, err := probeABI.Pack(method)
	if err != nil {
		return 0, err
	}
	out, err := p.pool.Call(ctx, ethereum.CallMsg{To: &addr, Data: data})
	if err != nil {
		return 0, err
	}
	results, err := probeABI.Unpack(method, out)
	if err != nil || len(results) != 1 {
		return 0, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	v, _ := results[0].(uint8)
	return v, nil
}

func (p *Prober) callBigInt(ctx context.Context, addr common.Address, method string) (*big.Int, error) {
	data, err := probeABI.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := p.pool.Call(ctx, ethereum.CallMsg{To: &addr, Data: data})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty return data", method)
	}
	results, err := probeABI.Unpack(method, out)
	if err != nil || len(results) != 1 {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	v, _ := results[0].(*big.Int)
	return v, nil
}
