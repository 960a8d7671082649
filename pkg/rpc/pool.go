// Copyright 2025 Chainframe
//
// RPC client pool: redundant, health-aware fan-out over several JSON-RPC
// endpoints. Calls run against the first healthy endpoint and fail over to
// the rest, in configured order.

package rpc

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// endpoint wraps a single JSON-RPC connection along with its health flag.
type endpoint struct {
	url    string
	client *ethclient.Client
	raw    *gethrpc.Client

	mu      sync.RWMutex
	healthy bool
}

func (e *endpoint) isHealthy() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.healthy
}

func (e *endpoint) setHealthy(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.healthy = v
}

// Pool maintains an ordered list of JSON-RPC endpoints and executes calls
// against the first healthy one, falling back to the rest in order.
type Pool struct {
	endpoints []*endpoint
	logger    *log.Logger

	healthInterval time.Duration
	callTimeout    time.Duration

	cancelHealth context.CancelFunc
	wg           sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets a custom logger for the pool.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// WithHealthInterval overrides the default 30s health-check cadence.
func WithHealthInterval(d time.Duration) Option {
	return func(p *Pool) { p.healthInterval = d }
}

// WithCallTimeout bounds how long a single endpoint attempt may take
// before the pool moves on to the next endpoint.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pool) { p.callTimeout = d }
}

// NewPool dials every configured endpoint URL and returns a Pool that
// fans out calls across them, healthy endpoints first.
func NewPool(urls []string, opts ...Option) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}

	p := &Pool{
		logger:         log.New(log.Writer(), "[RPCPool] ", log.LstdFlags),
		healthInterval: 30 * time.Second,
		callTimeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, url := range urls {
		raw, err := gethrpc.Dial(url)
		if err != nil {
			p.logger.Printf("failed to dial %s: %v (starting unhealthy)", url, err)
			p.endpoints = append(p.endpoints, &endpoint{url: url, healthy: false})
			continue
		}
		p.endpoints = append(p.endpoints, &endpoint{
			url:     url,
			client:  ethclient.NewClient(raw),
			raw:     raw,
			healthy: true,
		})
	}

	return p, nil
}

// Close releases every underlying connection.
func (p *Pool) Close() {
	if p.cancelHealth != nil {
		p.cancelHealth()
		p.wg.Wait()
	}
	for _, e := range p.endpoints {
		if e.raw != nil {
			e.raw.Close()
		}
	}
}

// orderedEndpoints returns endpoints with healthy ones first, preserving
// configured order within each group.
func (p *Pool) orderedEndpoints() []*endpoint {
	ordered := make([]*endpoint, 0, len(p.endpoints))
	var unhealthy []*endpoint
	for _, e := range p.endpoints {
		if e.isHealthy() {
			ordered = append(ordered, e)
		} else {
			unhealthy = append(unhealthy, e)
		}
	}
	return append(ordered, unhealthy...)
}

// Execute runs f against the first healthy endpoint to succeed. On error,
// the endpoint is marked unhealthy and the next endpoint is tried. If every
// endpoint fails, the aggregated AllProvidersFailedError is returned.
func Execute[T any](ctx context.Context, p *Pool, f func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	var zero T
	var attempts []EndpointError

	for _, e := range p.orderedEndpoints() {
		if e.client == nil {
			attempts = append(attempts, EndpointError{URL: e.url, Err: fmt.Errorf("not connected")})
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		result, err := f(callCtx, e.client)
		cancel()

		if err == nil {
			e.setHealthy(true)
			return result, nil
		}

		e.setHealthy(false)
		attempts = append(attempts, EndpointError{URL: e.url, Err: err})
		p.logger.Printf("endpoint %s failed, marking unhealthy: %v", e.url, err)
	}

	return zero, &AllProvidersFailedError{Attempts: attempts}
}

// StartHealthChecks launches the periodic background health-checker. A
// successful latest_block call marks an endpoint healthy; any error marks
// it unhealthy. Runs until ctx is cancelled.
func (p *Pool) StartHealthChecks(ctx context.Context) {
	hctx, cancel := context.WithCancel(ctx)
	p.cancelHealth = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.healthInterval)
		defer ticker.Stop()

		p.checkAll(hctx)
		for {
			select {
			case <-hctx.Done():
				return
			case <-ticker.C:
				p.checkAll(hctx)
			}
		}
	}()
}

func (p *Pool) checkAll(ctx context.Context) {
	for _, e := range p.endpoints {
		if e.client == nil {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		_, err := e.client.BlockNumber(callCtx)
		cancel()

		if err != nil {
			if e.isHealthy() {
				p.logger.Printf("endpoint %s failed health check: %v", e.url, err)
			}
			e.setHealthy(false)
			continue
		}
		if !e.isHealthy() {
			p.logger.Printf("endpoint %s recovered", e.url)
		}
		e.setHealthy(true)
	}
}

// HealthSnapshot reports the current healthy/unhealthy state per endpoint,
// consumed by the supervisor's health check and by metrics.
func (p *Pool) HealthSnapshot() map[string]bool {
	snap := make(map[string]bool, len(p.endpoints))
	for _, e := range p.endpoints {
		snap[e.url] = e.isHealthy()
	}
	return snap
}

// ============================================================================
// Upper-layer operations
// ============================================================================

// LatestBlock returns the current chain head height.
func (p *Pool) LatestBlock(ctx context.Context) (uint64, error) {
	return Execute(ctx, p, func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
}

// BlockByNumber fetches a full block, including its transaction bodies.
func (p *Pool) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	return Execute(ctx, p, func(ctx context.Context, c *ethclient.Client) (*types.Block, error) {
		return c.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	})
}

// BlockWithTransactions fetches a block with its full transaction list.
// go-ethereum's ethclient.BlockByNumber already returns transaction bodies,
// so this is an alias kept for naming symmetry with the other block reads.
func (p *Pool) BlockWithTransactions(ctx context.Context, number uint64) (*types.Block, error) {
	return p.BlockByNumber(ctx, number)
}

// Transaction fetches a transaction by hash. Returns nil if not found.
func (p *Pool) Transaction(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	return Execute(ctx, p, func(ctx context.Context, c *ethclient.Client) (*types.Transaction, error) {
		tx, _, err := c.TransactionByHash(ctx, hash)
		if err == ethereum.NotFound {
			return nil, nil
		}
		return tx, err
	})
}

// Receipt fetches a transaction receipt by hash. Returns nil if not found.
func (p *Pool) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return Execute(ctx, p, func(ctx context.Context, c *ethclient.Client) (*types.Receipt, error) {
		r, err := c.TransactionReceipt(ctx, hash)
		if err == ethereum.NotFound {
			return nil, nil
		}
		return r, err
	})
}

// Code fetches the deployed bytecode at addr, at the latest block.
func (p *Pool) Code(ctx context.Context, addr common.Address) ([]byte, error) {
	return Execute(ctx, p, func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CodeAt(ctx, addr, nil)
	})
}

// Balance fetches the native-coin balance of addr, at the latest block.
func (p *Pool) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return Execute(ctx, p, func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.BalanceAt(ctx, addr, nil)
	})
}

// Logs fetches event logs matching filter.
func (p *Pool) Logs(ctx context.Context, filter ethereum.FilterQuery) ([]types.Log, error) {
	return Execute(ctx, p, func(ctx context.Context, c *ethclient.Client) ([]types.Log, error) {
		return c.FilterLogs(ctx, filter)
	})
}

// Call executes a read-only contract call and returns the raw return data.
func (p *Pool) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return Execute(ctx, p, func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CallContract(ctx, msg, nil)
	})
}

// PendingTransactions is a best-effort probe of the mempool via the
// non-standard eth_pendingTransactions method some clients expose. It is
// not on the ingestion critical path; callers should tolerate it failing
// on endpoints that don't implement it.
func (p *Pool) PendingTransactions(ctx context.Context) ([]*types.Transaction, error) {
	return Execute(ctx, p, func(ctx context.Context, c *ethclient.Client) ([]*types.Transaction, error) {
		var raw []*types.Transaction
		err := c.Client().CallContext(ctx, &raw, "eth_pendingTransactions")
		return raw, err
	})
}
