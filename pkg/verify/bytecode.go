// Copyright 2025 Chainframe
//
// Bytecode comparison: the staged algorithm that decides whether an
// on-chain deployment matches a fresh compilation.

package verify

import "strings"

// metadataHashHexLen is 43 bytes of trailing CBOR-encoded metadata hash,
// expressed as hex characters (86).
const metadataHashHexLen = 86

// MatchType enumerates the possible comparison outcomes.
type MatchType string

const (
	MatchExact           MatchType = "exact"
	MatchConstructorArgs MatchType = "constructor-args"
	MatchMetadataOnly    MatchType = "metadata-only"
	MatchNone            MatchType = "none"
)

// CompareBytecode decides the match outcome for onChain against compiled,
// both 0x-prefixed deployed bytecode; constructorArgs is normalized hex
// (without 0x), possibly empty.
func CompareBytecode(onChain, compiled, constructorArgs string) MatchType {
	onChain = strip0x(onChain)
	compiled = strip0x(compiled)
	constructorArgs = strip0x(constructorArgs)

	onChainBody, onChainMeta := splitMetadata(onChain)
	compiledBody, compiledMeta := splitMetadata(compiled)

	if onChainBody == compiledBody {
		return MatchExact
	}

	if strings.HasPrefix(onChain, compiled) {
		suffix := strings.TrimPrefix(onChain, compiled)
		if suffix == constructorArgs {
			return MatchConstructorArgs
		}
	}

	if onChainMeta != "" && onChainMeta == compiledMeta {
		return MatchMetadataOnly
	}

	return MatchNone
}

// splitMetadata strips the trailing CBOR metadata hash, returning the
// code body and the stripped suffix separately.
func splitMetadata(hexCode string) (body, meta string) {
	if len(hexCode) <= metadataHashHexLen {
		return hexCode, ""
	}
	cut := len(hexCode) - metadataHashHexLen
	return hexCode[:cut], hexCode[cut:]
}

func strip0x(s string) string {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return strings.ToLower(s)
}
