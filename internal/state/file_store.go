package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/logger"
)

const weeklyFileName = "weekly_pnl.json"

// FileStore persists the weekly P&L snapshot as JSON on local disk
type FileStore struct {
	dir    string
	logger *logger.Logger
	mu     sync.Mutex
}

// NewFileStore creates the state directory if needed
func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FileStore{dir: dir, logger: log}, nil
}

// Path returns the snapshot file location
func (fs *FileStore) Path() string {
	return filepath.Join(fs.dir, weeklyFileName)
}

// LoadWeekly returns nil when no snapshot has been written yet
func (fs *FileStore) LoadWeekly(ctx context.Context) (*ledger.WeeklySnapshot, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.Path())
	if os.IsNotExist(err) {
		fs.logger.Info("No existing state file found, starting with clean state")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var snap ledger.WeeklySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// a corrupt file must not stop the bot from starting
		fs.logger.LogWarning("State Validation", "Unreadable state file %s: %v, using clean state", fs.Path(), err)
		return nil, nil
	}
	return &snap, nil
}

// SaveWeekly writes to a temp file and renames it over the snapshot
func (fs *FileStore) SaveWeekly(ctx context.Context, snap ledger.WeeklySnapshot) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := fs.Path() + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tempFile, fs.Path()); err != nil {
		return fmt.Errorf("failed to move state file: %w", err)
	}

	fs.logger.Debug("Weekly P&L %s saved for %s", snap.WeeklyPnL.StringFixed(2), snap.Week)
	return nil
}
