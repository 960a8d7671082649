// Copyright 2025 Chainframe
//
// Compilation cache keyed by sha256(json(...)) of the compile inputs.
// A hit returns the prior artifact without invoking solc again.

package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

type cacheKeyInput struct {
	SourceCode      string            `json:"sourceCode,omitempty"`
	SourceFiles     map[string]string `json:"sourceFiles,omitempty"`
	CompilerVersion string            `json:"compilerVersion"`
	ContractName    string            `json:"contractName"`
	Optimized       bool              `json:"optimizationUsed"`
	Runs            int               `json:"runs"`
	Libraries       map[string]string `json:"libraries,omitempty"`
	EVMVersion      string            `json:"evmVersion"`
	ViaIR           bool              `json:"viaIR"`
}

// CacheKey computes the sha256(json(...)) compilation cache key.
func CacheKey(req *Request, viaIR bool) (string, error) {
	input := cacheKeyInput{
		SourceCode:      req.SourceCode,
		SourceFiles:     req.SourceFiles,
		CompilerVersion: req.CompilerVersion,
		ContractName:    req.ContractName,
		Optimized:       req.OptimizationUsed,
		Runs:            req.Runs,
		Libraries:       req.Libraries,
		EVMVersion:      req.EVMVersion,
		ViaIR:           viaIR,
	}

	// json.Marshal sorts map keys already, but we sort sourceFiles/libraries
	// explicitly via a canonical re-encoding to keep the key stable across
	// Go versions.
	canonical, err := canonicalJSON(input)
	if err != nil {
		return "", fmt.Errorf("failed to build cache key: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

func marshalSorted(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []interface{}:
		buf := []byte{'['}
		for i, e := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			eb, err := marshalSorted(e)
			if err != nil {
				return nil, err
			}
			buf = append(buf, eb...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(val)
	}
}

// ArtifactCache is a simple write-once-per-key in-memory cache of
// compilation artifacts.
type ArtifactCache struct {
	mu    sync.RWMutex
	items map[string]*CompilationArtifact
}

// NewArtifactCache constructs an empty ArtifactCache.
func NewArtifactCache() *ArtifactCache {
	return &ArtifactCache{items: make(map[string]*CompilationArtifact)}
}

// Get returns the cached artifact for key, if any.
func (c *ArtifactCache) Get(key string) (*CompilationArtifact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.items[key]
	return a, ok
}

// Put stores an artifact under key.
func (c *ArtifactCache) Put(key string, artifact *CompilationArtifact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = artifact
}
