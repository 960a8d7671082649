// Copyright 2025 Chainframe
//
// Block ingestion pipeline: a forward-only state machine. One block is
// in flight at a time; heights are committed in strict ascending order.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chainframe/evm-indexer/pkg/derive"
	"github.com/chainframe/evm-indexer/pkg/detect"
	"github.com/chainframe/evm-indexer/pkg/rpc"
	"github.com/chainframe/evm-indexer/pkg/store"
)

// State is a pipeline lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateDeriving   State = "deriving"
	StateCommitting State = "committing"
	StateStopped    State = "stopped"
)

const backpressureDelay = 5 * time.Second
const retryDelay = 5 * time.Second

// Pipeline drives block-by-block ingestion from the RPC pool into the
// store.
type Pipeline struct {
	pool   *rpc.Pool
	client *store.Client
	repos  *store.Repositories
	prober *detect.Prober
	meta   *derive.MetadataFetcher

	confirmations uint64
	startBlock    uint64
	logger        *log.Logger

	mu    sync.RWMutex
	state State
}

// Config configures a Pipeline.
type Config struct {
	Confirmations uint64
	// StartBlock is the height ingestion begins at when the store is
	// empty (indexer.start_block). Ignored once any block has been
	// committed; the persisted cursor always takes precedence after that.
	StartBlock      uint64
	MetadataTimeout time.Duration
	Logger          *log.Logger
}

// New constructs a Pipeline.
func New(pool *rpc.Pool, client *store.Client, repos *store.Repositories, cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Ingest] ", log.LstdFlags)
	}
	metaTimeout := cfg.MetadataTimeout
	if metaTimeout == 0 {
		metaTimeout = 10 * time.Second
	}

	return &Pipeline{
		pool:          pool,
		client:        client,
		repos:         repos,
		prober:        detect.NewProber(pool),
		meta:          derive.NewMetadataFetcher(metaTimeout, logger),
		confirmations: cfg.Confirmations,
		startBlock:    cfg.StartBlock,
		logger:        logger,
		state:         StateIdle,
	}
}

// State returns the current lifecycle phase, consumed by the supervisor's
// health check.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run advances the cursor forward until ctx is cancelled, at which point
// the pipeline transitions to Stopped at the next safe point.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			p.setState(StateStopped)
			return ctx.Err()
		}

		current, err := p.repos.IngestState.LatestProcessedBlock(ctx)
		if err != nil {
			return fmt.Errorf("failed to read ingest cursor: %w", err)
		}
		next := current + 1
		if current == 0 && p.startBlock > 1 {
			// Empty store: honor the configured start height instead of
			// beginning at genesis. Once any block is committed, the
			// persisted cursor takes over and this branch never fires
			// again.
			next = p.startBlock
		}

		if err := p.processHeight(ctx, next); err != nil {
			if errors.Is(err, context.Canceled) {
				p.setState(StateStopped)
				return err
			}
			p.logger.Printf("height %d failed, will retry: %v", next, err)
			select {
			case <-ctx.Done():
				p.setState(StateStopped)
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
}

// processHeight fetches, derives, and commits a single block height.
func (p *Pipeline) processHeight(ctx context.Context, h uint64) error {
	p.setState(StateFetching)

	head, err := p.pool.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch latest block: %w", err)
	}

	for head < h+p.confirmations {
		p.setState(StateIdle)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backpressureDelay):
		}
		head, err = p.pool.LatestBlock(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch latest block: %w", err)
		}
		p.setState(StateFetching)
	}

	block, err := p.pool.BlockWithTransactions(ctx, h)
	if err != nil {
		return fmt.Errorf("failed to fetch block %d: %w", h, err)
	}

	p.setState(StateDeriving)
	tx, err := p.client.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for block %d: %w", h, err)
	}
	defer tx.Rollback()

	timestamp := time.Unix(int64(block.Time()), 0).UTC()
	baseFee := ""
	if block.BaseFee() != nil {
		baseFee = block.BaseFee().String()
	}

	if err := p.repos.Blocks.Insert(ctx, tx.Raw(), &store.Block{
		Number:     h,
		Hash:       block.Hash().Hex(),
		ParentHash: block.ParentHash().Hex(),
		Timestamp:  timestamp,
		GasUsed:    block.GasUsed(),
		GasLimit:   block.GasLimit(),
		BaseFee:    baseFee,
		TxCount:    len(block.Transactions()),
	}); err != nil {
		return err
	}

	for idx, gethTx := range block.Transactions() {
		if err := p.processTransaction(ctx, tx, h, idx, gethTx, timestamp); err != nil {
			return fmt.Errorf("failed processing tx %s in block %d: %w", gethTx.Hash().Hex(), h, err)
		}
	}

	p.setState(StateCommitting)
	if err := p.repos.IngestState.Advance(ctx, tx.Raw(), h); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit block %d: %w", h, err)
	}

	p.setState(StateIdle)
	return nil
}
