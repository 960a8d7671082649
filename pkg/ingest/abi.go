// Copyright 2025 Chainframe

package ingest

import (
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const tokenURIABIJSON = `[
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"id","type":"uint256"}],"name":"uri","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var tokenURIABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(tokenURIABIJSON))
	if err != nil {
		panic("ingest: failed to parse tokenURI ABI: " + err.Error())
	}
	tokenURIABI = parsed
}

func ethereumCallMsg(addr common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &addr, Data: data}
}
