// Copyright 2025 Chainframe
//
// Compiler loading: resolves a caller-supplied compiler version string to
// a canonical solc release, downloads its pure-JS (soljson) build, and
// hosts it in an in-process ECMAScript VM so compilation never shells out
// to a native binary.

package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// versionIndex mirrors the subset of binaries.soliditylang.org/bin/list.json
// the engine needs: a map from short version ("0.8.20") to canonical build
// name ("soljson-v0.8.20+commit.a1b79de6.js").
type versionIndex struct {
	Releases map[string]string `json:"releases"`
	Builds   []struct {
		Path        string `json:"path"`
		Version     string `json:"version"`
		LongVersion string `json:"longVersion"`
	} `json:"builds"`
}

// CompilerSource fetches and caches solc releases.
type CompilerSource struct {
	indexURL   string
	cacheDir   string
	httpClient *http.Client

	mu       sync.Mutex
	index    *versionIndex
	bindings map[string]*goja.Program // canonical build name -> compiled program
}

// NewCompilerSource constructs a CompilerSource.
func NewCompilerSource(indexURL, cacheDir string, downloadTimeout time.Duration) *CompilerSource {
	return &CompilerSource{
		indexURL:   indexURL,
		cacheDir:   cacheDir,
		httpClient: &http.Client{Timeout: downloadTimeout},
		bindings:   make(map[string]*goja.Program),
	}
}

// Resolve maps a caller-supplied version string (e.g. "0.8.20" or
// "0.8.20+commit.a1b79de6") to its canonical soljson build name.
func (s *CompilerSource) Resolve(ctx context.Context, version string) (string, error) {
	if strings.Contains(version, "+commit.") {
		return fmt.Sprintf("soljson-v%s.js", version), nil
	}

	idx, err := s.fetchIndex(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch compiler index: %w", err)
	}

	canonical, ok := idx.Releases[version]
	if !ok {
		return "", fmt.Errorf("verify: unknown compiler version %q", version)
	}
	return canonical, nil
}

func (s *CompilerSource) fetchIndex(ctx context.Context) (*versionIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		return s.index, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.indexURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index fetch returned status %d", resp.StatusCode)
	}

	var idx versionIndex
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		return nil, fmt.Errorf("failed to decode version index: %w", err)
	}
	s.index = &idx
	return s.index, nil
}

// Load returns a compiled goja.Program for buildName, downloading and
// caching the soljson source on first use. Loading is idempotent and
// thread-safe.
func (s *CompilerSource) Load(ctx context.Context, buildName string) (*goja.Program, error) {
	s.mu.Lock()
	if prog, ok := s.bindings[buildName]; ok {
		s.mu.Unlock()
		return prog, nil
	}
	s.mu.Unlock()

	src, err := s.loadSource(ctx, buildName)
	if err != nil {
		return nil, err
	}

	prog, err := goja.Compile(buildName, src, false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", buildName, err)
	}

	s.mu.Lock()
	s.bindings[buildName] = prog
	s.mu.Unlock()
	return prog, nil
}

func (s *CompilerSource) loadSource(ctx context.Context, buildName string) (string, error) {
	cachePath := filepath.Join(s.cacheDir, buildName)
	if data, err := os.ReadFile(cachePath); err == nil {
		return string(data), nil
	}

	url := fmt.Sprintf("https://binaries.soliditylang.org/bin/%s", buildName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", buildName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download of %s returned status %d", buildName, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", buildName, err)
	}

	if err := os.MkdirAll(s.cacheDir, 0o755); err == nil {
		_ = os.WriteFile(cachePath, body, 0o644)
	}

	return string(body), nil
}

// Instance is a single goja runtime with a loaded soljson build, exposing
// the standard-JSON compile entrypoint.
type Instance struct {
	rt *goja.Runtime
}

// NewInstance boots a fresh runtime and runs the given compiled program,
// then binds the standard-JSON compile wrapper solc-js exposes on Module.
func NewInstance(prog *goja.Program) (*Instance, error) {
	rt := goja.New()
	if _, err := rt.RunProgram(prog); err != nil {
		return nil, fmt.Errorf("failed to initialize solc runtime: %w", err)
	}

	// solc-js builds expose a cwrap'd `solidity_compile` (or legacy
	// `compileStandard`) function on the Emscripten Module object; bind a
	// uniform JS-side shim so Go only ever calls `__compile`.
	shim := `
		(function() {
			if (typeof Module === 'undefined') { return; }
			if (typeof Module.cwrap !== 'function') { return; }
			if (typeof Module._solidity_compile === 'function') {
				globalThis.__compile = Module.cwrap('solidity_compile', 'string', ['string', 'number']);
			} else if (typeof Module._compileStandard === 'function') {
				globalThis.__compile = Module.cwrap('compileStandard', 'string', ['string']);
			}
		})();
	`
	if _, err := rt.RunString(shim); err != nil {
		return nil, fmt.Errorf("failed to bind solc entrypoint: %w", err)
	}

	return &Instance{rt: rt}, nil
}

// CompileStandardJSON runs the standard-JSON compile entrypoint against
// inputJSON and returns the raw standard-JSON output.
func (i *Instance) CompileStandardJSON(inputJSON string) (string, error) {
	fn, ok := goja.AssertFunction(i.rt.Get("__compile"))
	if !ok {
		return "", fmt.Errorf("verify: solc entrypoint not available in this build")
	}

	result, err := fn(goja.Undefined(), i.rt.ToValue(inputJSON))
	if err != nil {
		return "", fmt.Errorf("solc invocation failed: %w", err)
	}
	return result.String(), nil
}
