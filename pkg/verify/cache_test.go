// Copyright 2025 Chainframe

package verify

import "testing"

func TestCacheKeyDeterministicAcrossMapOrdering(t *testing.T) {
	req1 := &Request{
		ContractName:    "Token",
		CompilerVersion: "v0.8.20",
		SourceFiles: map[string]string{
			"a.sol": "contract A {}",
			"b.sol": "contract B {}",
		},
		Libraries: map[string]string{
			"Lib1": "0x1111111111111111111111111111111111111111",
			"Lib2": "0x2222222222222222222222222222222222222222",
		},
	}
	req2 := &Request{
		ContractName:    "Token",
		CompilerVersion: "v0.8.20",
		SourceFiles: map[string]string{
			"b.sol": "contract B {}",
			"a.sol": "contract A {}",
		},
		Libraries: map[string]string{
			"Lib2": "0x2222222222222222222222222222222222222222",
			"Lib1": "0x1111111111111111111111111111111111111111",
		},
	}

	key1, err := CacheKey(req1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key2, err := CacheKey(req2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key1 != key2 {
		t.Errorf("expected identical cache keys regardless of map iteration order, got %s vs %s", key1, key2)
	}
}

func TestCacheKeyDiffersOnViaIR(t *testing.T) {
	req := &Request{ContractName: "Token", CompilerVersion: "v0.8.20", SourceCode: "contract Token {}"}

	key1, err := CacheKey(req, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key2, err := CacheKey(req, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key1 == key2 {
		t.Error("expected different cache keys for viaIR true vs false")
	}
}

func TestCacheKeyDiffersOnSource(t *testing.T) {
	req1 := &Request{ContractName: "Token", CompilerVersion: "v0.8.20", SourceCode: "contract Token {}"}
	req2 := &Request{ContractName: "Token", CompilerVersion: "v0.8.20", SourceCode: "contract Token { uint x; }"}

	key1, _ := CacheKey(req1, false)
	key2, _ := CacheKey(req2, false)
	if key1 == key2 {
		t.Error("expected different cache keys for different source code")
	}
}

func TestArtifactCacheGetPut(t *testing.T) {
	c := NewArtifactCache()

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	artifact := &CompilationArtifact{ABI: "[]", DeployedBytecode: "0x6080"}
	c.Put("key", artifact)

	got, ok := c.Get("key")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got != artifact {
		t.Error("expected the same artifact pointer back")
	}
}
