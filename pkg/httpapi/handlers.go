// Copyright 2025 Chainframe
//
// HTTP surface consumed by external collaborators. The core only
// implements the write path (POST /contracts/verify) and a health probe;
// the broader read API is built by callers against the store directly.

package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chainframe/evm-indexer/pkg/store"
	"github.com/chainframe/evm-indexer/pkg/verify"
)

// Handlers serves the indexer's HTTP surface.
type Handlers struct {
	engine *verify.Engine
	repos  *store.Repositories
	logger *log.Logger
}

// NewHandlers constructs Handlers.
func NewHandlers(engine *verify.Engine, repos *store.Repositories, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTPAPI] ", log.LstdFlags)
	}
	return &Handlers{engine: engine, repos: repos, logger: logger}
}

// Router builds the mux for the handlers. /health is bound by the
// supervisor instead (pkg/supervisor.Supervisor.Handler), whose aggregate
// check covers more than this package can see on its own; callers must
// register that separately on the same mux.
func (h *Handlers) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/contracts/verify", h.HandleVerify)
	return mux
}

// verifyRequestBody mirrors verify.Request over JSON.
type verifyRequestBody struct {
	Address              string            `json:"address"`
	ContractName         string            `json:"contractName"`
	CompilerVersion      string            `json:"compilerVersion"`
	OptimizationUsed     bool              `json:"optimizationUsed"`
	Runs                 int               `json:"runs"`
	EVMVersion           string            `json:"evmVersion"`
	SourceCode           string            `json:"sourceCode"`
	SourceFiles          map[string]string `json:"sourceFiles"`
	ConstructorArguments string            `json:"constructorArguments"`
	Libraries            map[string]string `json:"libraries"`
}

// HandleVerify handles POST /contracts/verify.
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body verifyRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Address == "" || body.ContractName == "" || body.CompilerVersion == "" {
		h.writeError(w, http.StatusBadRequest, "address, contractName, and compilerVersion are required")
		return
	}
	if body.SourceCode == "" && len(body.SourceFiles) == 0 {
		h.writeError(w, http.StatusBadRequest, "sourceCode or sourceFiles is required")
		return
	}

	req := &verify.Request{
		Address:              body.Address,
		ContractName:         body.ContractName,
		CompilerVersion:      body.CompilerVersion,
		OptimizationUsed:     body.OptimizationUsed,
		Runs:                 body.Runs,
		EVMVersion:           body.EVMVersion,
		SourceCode:           body.SourceCode,
		SourceFiles:          body.SourceFiles,
		ConstructorArguments: body.ConstructorArguments,
		Libraries:            body.Libraries,
	}

	requestID := uuid.New()
	h.logger.Printf("request %s: verifying %s as %s", requestID, body.Address, body.ContractName)

	result := h.engine.Verify(r.Context(), req)

	if result.Success {
		if err := h.persistVerification(r.Context(), req, result); err != nil {
			h.logger.Printf("request %s: failed to persist verification for %s: %v", requestID, body.Address, err)
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"requestId": requestID,
		"success":   result.Success,
		"message":   result.Message,
		"abi":       json.RawMessage(nonEmptyJSON(result.ABI)),
		"address":   body.Address,
	})
}

func (h *Handlers) persistVerification(ctx context.Context, req *verify.Request, result *verify.Result) error {
	return h.repos.Contracts.UpsertVerification(ctx, &store.ContractVerification{
		ContractAddress:  req.Address,
		CompilerVersion:  req.CompilerVersion,
		EVMVersion:       req.EVMVersion,
		Optimized:        req.OptimizationUsed,
		OptimizationRuns: req.Runs,
		SourceFiles:      sourceFilesOf(req),
		MainFile:         mainFileOf(req),
		ConstructorArgs:  strings.TrimPrefix(strings.ToLower(req.ConstructorArguments), "0x"),
		ABI:              result.ABI,
		Metadata:         result.Metadata,
		MatchType:        result.MatchType,
		VerifiedAt:       time.Now().UTC(),
	})
}

func sourceFilesOf(req *verify.Request) map[string]string {
	if len(req.SourceFiles) > 0 {
		return req.SourceFiles
	}
	return map[string]string{"contract.sol": req.SourceCode}
}

// mainFileOf picks the source file whose base name, stripped of its .sol
// extension, equals ContractName, for multi-file verifications; file
// contents are not inspected. Single-file requests have no meaningful
// main file.
func mainFileOf(req *verify.Request) string {
	if len(req.SourceFiles) == 0 {
		return ""
	}
	for p := range req.SourceFiles {
		base := path.Base(strings.ReplaceAll(p, "\\", "/"))
		if strings.TrimSuffix(base, ".sol") == req.ContractName {
			return strings.TrimSuffix(base, ".sol")
		}
	}
	return ""
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("failed to encode response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{"success": false, "message": message})
}

func nonEmptyJSON(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
