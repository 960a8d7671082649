// Copyright 2025 Chainframe
//
// Supervisor: schema bootstrap, periodic health checks across every
// dependency, and restart-policy escalation when a component keeps
// failing.

package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/chainframe/evm-indexer/pkg/ingest"
	"github.com/chainframe/evm-indexer/pkg/rpc"
	"github.com/chainframe/evm-indexer/pkg/store"
)

// componentStatus is one dependency's last-observed health.
type componentStatus struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Status is the aggregate health snapshot returned by /health.
type Status struct {
	Overall       string                     `json:"status"` // "ok", "degraded", "error"
	IngestState   string                     `json:"ingest_state"`
	Components    map[string]componentStatus `json:"components"`
	RPCEndpoints  map[string]bool            `json:"rpc_endpoints"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
}

// Supervisor owns process lifecycle concerns that sit outside the
// ingestion/verification domain logic: schema bootstrap, periodic health
// checks, restart escalation, and backup scheduling.
type Supervisor struct {
	store    *store.Client
	pool     *rpc.Pool
	pipeline *ingest.Pipeline
	backup   *BackupManager
	metrics  *Metrics
	logger   *log.Logger

	healthInterval time.Duration
	startedAt      time.Time

	mu         sync.RWMutex
	components map[string]componentStatus
	failures   map[string]int // consecutive failure count, for restart escalation
}

// Config configures a Supervisor.
type Config struct {
	HealthInterval time.Duration
	Logger         *log.Logger
}

// New constructs a Supervisor.
func New(storeClient *store.Client, pool *rpc.Pool, pipeline *ingest.Pipeline, backup *BackupManager, metrics *Metrics, cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Supervisor] ", log.LstdFlags)
	}
	interval := cfg.HealthInterval
	if interval == 0 {
		interval = 60 * time.Second
	}

	return &Supervisor{
		store:          storeClient,
		pool:           pool,
		pipeline:       pipeline,
		backup:         backup,
		metrics:        metrics,
		logger:         logger,
		healthInterval: interval,
		startedAt:      time.Now(),
		components:     make(map[string]componentStatus),
		failures:       make(map[string]int),
	}
}

// Bootstrap brings the schema up to date, retrying a database that has
// disappeared by recreating it from the last backup (or from scratch) and
// re-running migrations. It runs before the RPC pool and ingestion
// pipeline exist, so it takes the store and backup manager directly
// rather than a full Supervisor.
func Bootstrap(ctx context.Context, storeClient *store.Client, backup *BackupManager, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(log.Writer(), "[Supervisor] ", log.LstdFlags)
	}

	if err := storeClient.Ping(ctx); err != nil {
		logger.Printf("database unreachable on startup (%v); attempting restore", err)
		if backup != nil {
			if restoreErr := backup.RestoreLatest(ctx); restoreErr != nil {
				logger.Printf("restore from backup failed: %v (continuing with a fresh schema)", restoreErr)
			}
		}
	}

	if err := storeClient.MigrateUp(ctx); err != nil {
		return fmt.Errorf("schema bootstrap failed: %w", err)
	}
	return nil
}

// Run starts the periodic health check loop and, if configured, the backup
// scheduler. It blocks until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runHealthLoop(ctx)
	}()

	if s.backup != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.backup.Run(ctx)
		}()
	}

	wg.Wait()
}

func (s *Supervisor) runHealthLoop(ctx context.Context) {
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	s.checkAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

// checkAll probes RPC, database, the blocks table, and the ingestion
// pipeline's own state, and escalates restart policy for any component
// failing repeatedly.
func (s *Supervisor) checkAll(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.record("database", s.checkDatabase(checkCtx))
	s.record("rpc", s.checkRPC(checkCtx))
	s.record("blocks_table", s.checkBlocksTable(checkCtx))
	s.record("ingest_pipeline", s.checkPipeline())

	if s.metrics != nil {
		for url, healthy := range s.pool.HealthSnapshot() {
			v := 0.0
			if healthy {
				v = 1.0
			}
			s.metrics.RPCEndpointHealthy.WithLabelValues(url).Set(v)
		}
		if head, err := s.pool.LatestBlock(checkCtx); err == nil {
			s.metrics.LatestChainBlock.Set(float64(head))
			var indexed uint64
			if err := s.store.QueryRowContext(checkCtx, `SELECT latest_processed_block FROM ingest_state WHERE id = 1`).Scan(&indexed); err == nil {
				s.metrics.LatestIndexedBlock.Set(float64(indexed))
				s.metrics.IngestionLag.Set(float64(head) - float64(indexed))
			}
		}
	}
}

func (s *Supervisor) checkDatabase(ctx context.Context) error {
	status, err := s.store.Health(ctx)
	if err != nil {
		return err
	}
	if !status.Healthy {
		return fmt.Errorf("%s", status.Error)
	}
	return nil
}

func (s *Supervisor) checkRPC(ctx context.Context) error {
	_, err := s.pool.LatestBlock(ctx)
	return err
}

// checkBlocksTable does a sample read against the blocks table, catching
// corruption that a bare connectivity ping would miss.
func (s *Supervisor) checkBlocksTable(ctx context.Context) error {
	_, err := s.store.QueryRowContext(ctx, `SELECT count(*) FROM blocks LIMIT 1`).Scan(new(int64))
	return err
}

func (s *Supervisor) checkPipeline() error {
	if s.pipeline == nil {
		return nil
	}
	if s.pipeline.State() == ingest.StateStopped {
		return fmt.Errorf("ingestion pipeline stopped")
	}
	return nil
}

// record updates a component's status and applies the restart-policy
// escalation: a component failing 3 consecutive checks is logged as a
// restart event (actual process supervision is delegated to the
// deployment's orchestrator, e.g. a container restart policy).
func (s *Supervisor) record(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := componentStatus{Name: name, Healthy: err == nil, CheckedAt: time.Now()}
	if err != nil {
		status.Error = err.Error()
		s.failures[name]++
	} else {
		s.failures[name] = 0
	}
	s.components[name] = status

	if n := s.failures[name]; n > 0 && n%3 == 0 {
		reason := "unknown"
		if err != nil {
			reason = err.Error()
		}
		s.logger.Printf("component %s has failed %d consecutive checks (%s); escalating restart policy", name, n, reason)
		if s.metrics != nil {
			s.metrics.RestartsTotal.WithLabelValues(name, "consecutive_failures").Inc()
		}
	}
}

// Snapshot returns the current aggregate health status, consumed by the
// HTTP /health handler.
func (s *Supervisor) Snapshot(ctx context.Context) Status {
	s.mu.RLock()
	components := make(map[string]componentStatus, len(s.components))
	for k, v := range s.components {
		components[k] = v
	}
	s.mu.RUnlock()

	overall := "ok"
	for _, c := range components {
		if !c.Healthy {
			overall = "degraded"
		}
	}
	if dbStatus, ok := components["database"]; ok && !dbStatus.Healthy {
		overall = "error"
	}
	if rpcStatus, ok := components["rpc"]; ok && !rpcStatus.Healthy {
		overall = "error"
	}

	ingestState := "unknown"
	if s.pipeline != nil {
		ingestState = string(s.pipeline.State())
	}

	return Status{
		Overall:       overall,
		IngestState:   ingestState,
		Components:    components,
		RPCEndpoints:  s.pool.HealthSnapshot(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
}

// Handler returns an http.HandlerFunc serving the aggregate health status.
func (s *Supervisor) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := s.Snapshot(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Overall == "error" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
