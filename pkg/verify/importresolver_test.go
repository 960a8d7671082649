// Copyright 2025 Chainframe

package verify

import (
	"errors"
	"testing"
)

func TestImportResolverExactMatch(t *testing.T) {
	r := NewImportResolver(map[string]string{
		"contracts/Token.sol": "contract Token {}",
	})

	name, content, err := r.Resolve("contracts/Token.sol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "contracts/Token.sol" || content != "contract Token {}" {
		t.Errorf("unexpected resolution: %s / %s", name, content)
	}
}

func TestImportResolverStripsRelativePrefix(t *testing.T) {
	r := NewImportResolver(map[string]string{
		"Token.sol": "contract Token {}",
	})

	name, _, err := r.Resolve("../Token.sol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Token.sol" {
		t.Errorf("expected Token.sol, got %s", name)
	}
}

func TestImportResolverAddsSolSuffix(t *testing.T) {
	r := NewImportResolver(map[string]string{
		"Token.sol": "contract Token {}",
	})

	name, _, err := r.Resolve("Token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Token.sol" {
		t.Errorf("expected Token.sol, got %s", name)
	}
}

func TestImportResolverRemovesSolSuffix(t *testing.T) {
	r := NewImportResolver(map[string]string{
		"Token": "contract Token {}",
	})

	name, _, err := r.Resolve("Token.sol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Token" {
		t.Errorf("expected Token, got %s", name)
	}
}

func TestImportResolverSwapsSeparator(t *testing.T) {
	r := NewImportResolver(map[string]string{
		`contracts\Token.sol`: "contract Token {}",
	})

	name, _, err := r.Resolve("contracts/Token.sol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != `contracts\Token.sol` {
		t.Errorf("expected separator-swapped match, got %s", name)
	}
}

func TestImportResolverLowercasedMatch(t *testing.T) {
	r := NewImportResolver(map[string]string{
		"contracts/token.sol": "contract Token {}",
	})

	name, _, err := r.Resolve("contracts/Token.SOL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "contracts/token.sol" {
		t.Errorf("expected lowercased match, got %s", name)
	}
}

func TestImportResolverBasenameFallback(t *testing.T) {
	r := NewImportResolver(map[string]string{
		"node_modules/openzeppelin/contracts/Token.sol": "contract Token {}",
	})

	name, _, err := r.Resolve("@openzeppelin/contracts/Token.sol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "node_modules/openzeppelin/contracts/Token.sol" {
		t.Errorf("expected basename fallback match, got %s", name)
	}
}

func TestImportResolverUnresolvable(t *testing.T) {
	r := NewImportResolver(map[string]string{})

	if _, _, err := r.Resolve("Missing.sol"); err == nil {
		t.Error("expected an error for an unresolvable import")
	}
}

func TestImportResolverDetectsCircularImport(t *testing.T) {
	r := NewImportResolver(map[string]string{
		"A.sol": "import \"B.sol\";",
		"B.sol": "import \"A.sol\";",
	})

	if _, _, err := r.Resolve("A.sol"); err != nil {
		t.Fatalf("unexpected error resolving A.sol: %v", err)
	}
	if _, _, err := r.Resolve("B.sol"); err != nil {
		t.Fatalf("unexpected error resolving B.sol: %v", err)
	}
	if _, _, err := r.Resolve("A.sol"); !errors.Is(err, ErrCircularImport) {
		t.Errorf("expected ErrCircularImport on re-entry, got %v", err)
	}
}

func TestImportResolverReleaseAllowsDiamondReimport(t *testing.T) {
	r := NewImportResolver(map[string]string{
		"Shared.sol": "contract Shared {}",
	})

	if _, _, err := r.Resolve("Shared.sol"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Release("Shared.sol")

	if _, _, err := r.Resolve("Shared.sol"); err != nil {
		t.Errorf("expected re-import to succeed after Release, got %v", err)
	}
}
