// Copyright 2025 Chainframe

package verify

import "testing"

func repeatHex(pattern string, n int) string {
	out := make([]byte, 0, len(pattern)*n)
	for i := 0; i < n; i++ {
		out = append(out, pattern...)
	}
	return string(out)
}

func TestCompareBytecodeExactMatch(t *testing.T) {
	body := repeatHex("60", 20)
	meta := repeatHex("aa", 43)
	onChain := "0x" + body + meta
	compiled := body + meta

	if got := CompareBytecode(onChain, compiled, ""); got != MatchExact {
		t.Errorf("expected exact match, got %s", got)
	}
}

func TestCompareBytecodeExactMatchIgnoresMetadataDivergence(t *testing.T) {
	body := repeatHex("60", 20)
	onChain := "0x" + body + repeatHex("aa", 43)
	compiled := body + repeatHex("bb", 43)

	// Bodies match even though metadata hashes differ; still exact.
	if got := CompareBytecode(onChain, compiled, ""); got != MatchExact {
		t.Errorf("expected exact match despite differing metadata, got %s", got)
	}
}

func TestCompareBytecodeConstructorArgs(t *testing.T) {
	body := repeatHex("60", 20)
	meta := repeatHex("aa", 43)
	args := "000000000000000000000000000000000000000000000000000000000000002a"

	onChain := "0x" + body + meta + args
	compiled := body + meta

	if got := CompareBytecode(onChain, compiled, args); got != MatchConstructorArgs {
		t.Errorf("expected constructor-args match, got %s", got)
	}
}

func TestCompareBytecodeMetadataOnly(t *testing.T) {
	meta := repeatHex("aa", 43)
	onChain := "0x" + repeatHex("60", 20) + meta
	compiled := repeatHex("61", 20) + meta

	if got := CompareBytecode(onChain, compiled, ""); got != MatchMetadataOnly {
		t.Errorf("expected metadata-only match, got %s", got)
	}
}

func TestCompareBytecodeNone(t *testing.T) {
	onChain := "0x" + repeatHex("60", 20) + repeatHex("aa", 43)
	compiled := repeatHex("61", 20) + repeatHex("bb", 43)

	if got := CompareBytecode(onChain, compiled, ""); got != MatchNone {
		t.Errorf("expected no match, got %s", got)
	}
}

func TestCompareBytecodeShortCodeSkipsMetadataSplit(t *testing.T) {
	onChain := "0x6080"
	compiled := "6080"

	if got := CompareBytecode(onChain, compiled, ""); got != MatchExact {
		t.Errorf("expected exact match for short bytecode, got %s", got)
	}
}

func TestStrip0xHandlesBothCasingsAndLowercases(t *testing.T) {
	if got := strip0x("0XABCDEF"); got != "abcdef" {
		t.Errorf("expected abcdef, got %s", got)
	}
	if got := strip0x("0xABCDEF"); got != "abcdef" {
		t.Errorf("expected abcdef, got %s", got)
	}
	if got := strip0x("ABCDEF"); got != "abcdef" {
		t.Errorf("expected abcdef, got %s", got)
	}
}
