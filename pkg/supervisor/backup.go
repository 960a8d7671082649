// Copyright 2025 Chainframe
//
// Backup management: periodic pg_dump snapshots, compressed and retained
// for a bounded window, plus restore-from-latest for the
// database-disappearance recovery path in Supervisor.Bootstrap.

package supervisor

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackupManager runs scheduled pg_dump snapshots of the indexer database
// and can restore the most recent one.
type BackupManager struct {
	databaseURL    string
	honeypotDBName string
	dir            string
	interval       time.Duration
	retention      time.Duration
	logger         *log.Logger
}

// BackupConfig configures a BackupManager.
type BackupConfig struct {
	DatabaseURL    string
	HoneypotDBName string
	Dir            string
	Interval       time.Duration
	Retention      time.Duration
	Logger         *log.Logger
}

// NewBackupManager constructs a BackupManager.
func NewBackupManager(cfg BackupConfig) *BackupManager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Backup] ", log.LstdFlags)
	}
	return &BackupManager{
		databaseURL:    cfg.DatabaseURL,
		honeypotDBName: cfg.HoneypotDBName,
		dir:            cfg.Dir,
		interval:       cfg.Interval,
		retention:      cfg.Retention,
		logger:         logger,
	}
}

// Run executes the periodic dump-compress-prune loop until ctx is
// canceled.
func (b *BackupManager) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.dump(ctx); err != nil {
				b.logger.Printf("backup failed: %v", err)
				continue
			}
			if err := b.prune(); err != nil {
				b.logger.Printf("backup pruning failed: %v", err)
			}
		}
	}
}

// dump refuses to run against the honeypot database name, guarding
// against a misconfigured DATABASE_URL silently backing up the wrong
// instance, and shells out to pg_dump, compressing the output with gzip.
func (b *BackupManager) dump(ctx context.Context) error {
	if strings.Contains(b.databaseURL, b.honeypotDBName) {
		return fmt.Errorf("refusing to back up honeypot database %q", b.honeypotDBName)
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	runID := uuid.New()
	name := fmt.Sprintf("evm-indexer-%s-%s.sql.gz", time.Now().UTC().Format("20060102T150405Z"), runID)
	path := filepath.Join(b.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()

	cmd := exec.CommandContext(ctx, "pg_dump", b.databaseURL)
	cmd.Stdout = gz
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pg_dump failed: %w", err)
	}

	b.logger.Printf("backup run %s written to %s", runID, path)
	return nil
}

// prune removes backups older than the configured retention window.
func (b *BackupManager) prune() error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-b.retention)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(b.dir, e.Name())
			if err := os.Remove(path); err != nil {
				b.logger.Printf("failed to prune %s: %v", path, err)
				continue
			}
			b.logger.Printf("pruned expired backup %s", path)
		}
	}
	return nil
}

// RestoreLatest restores the most recent backup into the configured
// database, used when the supervisor finds the database unreachable on
// startup.
func (b *BackupManager) RestoreLatest(ctx context.Context) error {
	latest, err := b.latestBackup()
	if err != nil {
		return err
	}
	if latest == "" {
		return fmt.Errorf("no backups available to restore")
	}

	f, err := os.Open(latest)
	if err != nil {
		return fmt.Errorf("failed to open backup %s: %w", latest, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to decompress backup %s: %w", latest, err)
	}
	defer gz.Close()

	cmd := exec.CommandContext(ctx, "psql", b.databaseURL)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open psql stdin: %w", err)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start psql restore: %w", err)
	}

	if _, err := io.Copy(stdin, gz); err != nil {
		stdin.Close()
		return fmt.Errorf("failed to stream backup into psql: %w", err)
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("psql restore failed: %w", err)
	}

	b.logger.Printf("restored database from %s", latest)
	return nil
}

func (b *BackupManager) latestBackup() (string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql.gz") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}

	sort.Strings(names) // timestamped names sort chronologically
	return filepath.Join(b.dir, names[len(names)-1]), nil
}
