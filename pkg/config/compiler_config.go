// Copyright 2025 Chainframe
//
// Compiler configuration loader for the Solidity verification engine.
// Loaded from a YAML file rather than the environment, since solc version
// pinning and cache sizing is operator tuning rather than a secret.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CompilerConfig controls how the verification engine resolves and caches
// solc releases.
type CompilerConfig struct {
	BinariesIndexURL  string        `yaml:"binaries_index_url"`
	CacheDir          string        `yaml:"cache_dir"`
	DownloadTimeout   time.Duration `yaml:"download_timeout"`
	CompileTimeout    time.Duration `yaml:"compile_timeout"`
	MaxCachedVersions int           `yaml:"max_cached_versions"`
}

// DefaultCompilerConfig returns sane defaults for solc resolution and
// caching.
func DefaultCompilerConfig() *CompilerConfig {
	return &CompilerConfig{
		BinariesIndexURL:  "https://binaries.soliditylang.org/bin/list.json",
		CacheDir:          "./data/solc-cache",
		DownloadTimeout:   30 * time.Second,
		CompileTimeout:    120 * time.Second,
		MaxCachedVersions: 12,
	}
}

// LoadCompilerConfig reads a YAML compiler configuration file. A missing
// file is not an error; defaults are returned instead.
func LoadCompilerConfig(path string) (*CompilerConfig, error) {
	cfg := DefaultCompilerConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read compiler config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse compiler config %s: %w", path, err)
	}

	return cfg, nil
}
