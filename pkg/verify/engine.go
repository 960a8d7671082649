// Copyright 2025 Chainframe
//
// Verification engine: input validation, compilation-input assembly, and
// bytecode comparison. Persisting a successful result is left to the
// caller.

package verify

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainframe/evm-indexer/pkg/rpc"
)

const maxSourceBytes = 5 * 1024 * 1024

var constructorArgsPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]*$`)

// Engine is the contract verification engine.
type Engine struct {
	pool     *rpc.Pool
	compiler *CompilerSource
	cache    *ArtifactCache
	timeout  time.Duration
	logger   *log.Logger

	mu       sync.Mutex
	inFlight map[string]*sync.Mutex // per-address serialization
}

// Config configures an Engine.
type Config struct {
	BinariesIndexURL string
	CacheDir         string
	DownloadTimeout  time.Duration
	CompileTimeout   time.Duration
	Logger           *log.Logger
}

// NewEngine constructs an Engine.
func NewEngine(pool *rpc.Pool, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Verify] ", log.LstdFlags)
	}
	timeout := cfg.CompileTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Engine{
		pool:     pool,
		compiler: NewCompilerSource(cfg.BinariesIndexURL, cfg.CacheDir, cfg.DownloadTimeout),
		cache:    NewArtifactCache(),
		timeout:  timeout,
		logger:   logger,
		inFlight: make(map[string]*sync.Mutex),
	}
}

// lockAddress serializes verification per address, so two concurrent
// requests for the same contract never race on the same cache entry.
func (e *Engine) lockAddress(addr string) func() {
	e.mu.Lock()
	l, ok := e.inFlight[addr]
	if !ok {
		l = &sync.Mutex{}
		e.inFlight[addr] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Verify implements the public verify(request) contract.
func (e *Engine) Verify(ctx context.Context, req *Request) *Result {
	unlock := e.lockAddress(strings.ToLower(req.Address))
	defer unlock()

	if err := e.validate(req); err != nil {
		return &Result{Success: false, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if req.Runs == 0 {
		req.Runs = 200
	}
	if req.EVMVersion == "" {
		req.EVMVersion = defaultEVMVersion(req.CompilerVersion)
	}
	req.IsMultiPart = len(req.SourceFiles) > 0

	artifact, err := e.compile(ctx, req)
	if err != nil {
		return &Result{Success: false, Message: err.Error()}
	}

	onChainCode, err := e.pool.Code(ctx, common.HexToAddress(req.Address))
	if err != nil {
		return &Result{Success: false, Message: fmt.Sprintf("failed to fetch on-chain code: %v", err)}
	}

	normalizedArgs := strings.TrimPrefix(strings.ToLower(req.ConstructorArguments), "0x")
	matchType := CompareBytecode(hexString(onChainCode), artifact.DeployedBytecode, normalizedArgs)

	switch matchType {
	case MatchExact:
		return &Result{Success: true, Message: "contract source verified", ABI: artifact.ABI, Metadata: artifact.Metadata, MatchType: "exact"}
	case MatchConstructorArgs:
		return &Result{Success: true, Message: "contract source verified", ABI: artifact.ABI, Metadata: artifact.Metadata, MatchType: "constructor-args"}
	case MatchMetadataOnly:
		return &Result{Success: false, Message: "metadata hash matches but bytecode differs; check constructor arguments and libraries"}
	default:
		return &Result{Success: false, Message: "compiled bytecode does not match on-chain bytecode"}
	}
}

func (e *Engine) validate(req *Request) error {
	if req.Address == "" {
		return fmt.Errorf("address is required")
	}
	if req.ContractName == "" {
		return fmt.Errorf("contractName is required")
	}
	if req.CompilerVersion == "" {
		return fmt.Errorf("compilerVersion is required")
	}
	if req.SourceCode == "" && len(req.SourceFiles) == 0 {
		return fmt.Errorf("sourceCode or sourceFiles is required")
	}

	total := len(req.SourceCode)
	for _, content := range req.SourceFiles {
		total += len(content)
	}
	if total > maxSourceBytes {
		return fmt.Errorf("source exceeds maximum size of %d bytes", maxSourceBytes)
	}

	if req.ConstructorArguments != "" && !constructorArgsPattern.MatchString(req.ConstructorArguments) {
		return fmt.Errorf("constructorArguments must be hex-encoded")
	}

	return nil
}

// compile assembles the compilation input, consults the cache, and
// invokes solc on a miss.
func (e *Engine) compile(ctx context.Context, req *Request) (*CompilationArtifact, error) {
	key, err := CacheKey(req, false)
	if err != nil {
		return nil, err
	}
	if artifact, ok := e.cache.Get(key); ok {
		return artifact, nil
	}

	buildName, err := e.compiler.Resolve(ctx, req.CompilerVersion)
	if err != nil {
		return nil, fmt.Errorf("compiler resolution failed: %w", err)
	}
	prog, err := e.compiler.Load(ctx, buildName)
	if err != nil {
		return nil, fmt.Errorf("compiler load failed: %w", err)
	}
	instance, err := NewInstance(prog)
	if err != nil {
		return nil, fmt.Errorf("compiler init failed: %w", err)
	}

	input, err := e.buildStandardInput(req)
	if err != nil {
		return nil, err
	}

	rawOutput, err := instance.CompileStandardJSON(input)
	if err != nil {
		return nil, fmt.Errorf("compilation failed: %w", err)
	}

	artifact, err := extractArtifact(rawOutput, req.ContractName, req.SourceFiles)
	if err != nil {
		return nil, err
	}

	e.cache.Put(key, artifact)
	return artifact, nil
}

// importStatementPattern extracts the quoted path out of any Solidity
// import form (`import "X";`, `import {A} from "X";`, `import * as A from
// "X";`) without a full parser.
var importStatementPattern = regexp.MustCompile(`import\s+[^"']*["']([^"']+)["']`)

// resolveMultiFileSources builds the solc sources map for multi-file mode.
// solc's own lookup only matches a source key verbatim, so every import
// path that isn't already a literal key in req.SourceFiles is resolved
// through ImportResolver and aliased into the map under that exact path.
func (e *Engine) resolveMultiFileSources(req *Request) (map[string]map[string]string, error) {
	sources := map[string]map[string]string{}
	for path, content := range req.SourceFiles {
		sources[path] = map[string]string{"content": content}
	}

	resolver := NewImportResolver(req.SourceFiles)
	for path, content := range req.SourceFiles {
		if err := e.resolveFileImports(resolver, path, content, sources); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// resolveFileImports walks content's import statements, aliasing any
// import path solc wouldn't find verbatim, and recurses into the resolved
// file so transitive imports are aliased too. Resolver.Release on
// backtrack lets diamond imports re-resolve while a true cycle (the same
// unresolved path re-entered before release) still errors.
func (e *Engine) resolveFileImports(resolver *ImportResolver, path, content string, sources map[string]map[string]string) error {
	for _, m := range importStatementPattern.FindAllStringSubmatch(content, -1) {
		imp := m[1]
		if _, ok := sources[imp]; ok {
			continue
		}

		name, importedContent, err := resolver.Resolve(imp)
		if err != nil {
			return fmt.Errorf("resolving import %q from %q: %w", imp, path, err)
		}

		if err := e.resolveFileImports(resolver, name, importedContent, sources); err != nil {
			resolver.Release(imp)
			return err
		}
		resolver.Release(imp)
		sources[imp] = map[string]string{"content": importedContent}
	}
	return nil
}

// buildStandardInput assembles the solc standard-JSON input (single-file
// vs multi-file mode, library bucketing by file:library).
func (e *Engine) buildStandardInput(req *Request) (string, error) {
	var sources map[string]map[string]string

	if req.IsMultiPart {
		resolved, err := e.resolveMultiFileSources(req)
		if err != nil {
			return "", err
		}
		sources = resolved
	} else {
		sources = map[string]map[string]string{
			"contract.sol": {"content": req.SourceCode},
		}
	}

	libraries := map[string]map[string]string{}
	for name, addr := range req.Libraries {
		file := "contract.sol"
		lib := name
		if idx := strings.Index(name, ":"); idx >= 0 {
			file = name[:idx]
			lib = name[idx+1:]
		}
		if libraries[file] == nil {
			libraries[file] = map[string]string{}
		}
		libraries[file][lib] = addr
	}

	settings := map[string]interface{}{
		"optimizer": map[string]interface{}{
			"enabled": req.OptimizationUsed,
			"runs":    req.Runs,
		},
		"outputSelection": map[string]interface{}{
			"*": map[string]interface{}{
				"*": []string{"abi", "evm.bytecode.object", "evm.deployedBytecode.object", "metadata"},
			},
		},
	}
	if req.EVMVersion != "" {
		settings["evmVersion"] = req.EVMVersion
	}
	if len(libraries) > 0 {
		settings["libraries"] = libraries
	}

	input := map[string]interface{}{
		"language": "Solidity",
		"sources":  sources,
		"settings": settings,
	}

	encoded, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode compiler input: %w", err)
	}
	return string(encoded), nil
}

// standardOutput is the subset of solc's standard-JSON output the engine
// needs.
type standardOutput struct {
	Errors []struct {
		Severity string `json:"severity"`
		Message  string `json:"message"`
	} `json:"errors"`
	Contracts map[string]map[string]struct {
		ABI      json.RawMessage `json:"abi"`
		Metadata string          `json:"metadata"`
		EVM      struct {
			Bytecode struct {
				Object string `json:"object"`
			} `json:"bytecode"`
			DeployedBytecode struct {
				Object string `json:"object"`
			} `json:"deployedBytecode"`
		} `json:"evm"`
	} `json:"contracts"`
}

func extractArtifact(rawOutput, contractName string, sourceFiles map[string]string) (*CompilationArtifact, error) {
	var out standardOutput
	if err := json.Unmarshal([]byte(rawOutput), &out); err != nil {
		return nil, fmt.Errorf("failed to parse compiler output: %w", err)
	}

	for _, e := range out.Errors {
		if e.Severity == "error" {
			return nil, fmt.Errorf("compile error: %s", e.Message)
		}
	}

	for _, fileContracts := range out.Contracts {
		if c, ok := fileContracts[contractName]; ok {
			abiJSON, _ := json.Marshal(c.ABI)
			return &CompilationArtifact{
				ABI:              string(abiJSON),
				Bytecode:         "0x" + c.EVM.Bytecode.Object,
				DeployedBytecode: "0x" + c.EVM.DeployedBytecode.Object,
				Metadata:         c.Metadata,
			}, nil
		}
	}

	return nil, fmt.Errorf("contract %q not found in compiler output", contractName)
}

// defaultEVMVersion maps a compiler version range to its default EVM
// target, used when a verification request omits evmVersion.
func defaultEVMVersion(compilerVersion string) string {
	m := versionPattern.FindStringSubmatch(compilerVersion)
	if m == nil {
		return "istanbul"
	}
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	switch minor {
	case 4:
		return "byzantium"
	case 5:
		return "petersburg"
	case 6:
		return "istanbul"
	case 7:
		return "berlin"
	case 8:
		switch {
		case patch == 0:
			return "istanbul"
		case patch <= 5:
			return "berlin"
		case patch <= 9:
			return "london"
		default:
			return "paris"
		}
	default:
		return "paris"
	}
}

func hexString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
