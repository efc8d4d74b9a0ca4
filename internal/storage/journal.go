package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/dualstock/adviser/pkg/models"
)

// Journal appends completed analysis results to a JSON-lines file, one
// record per line. Appends are serialized; a disabled journal accepts
// writes and drops them.
type Journal struct {
	mu      sync.Mutex
	path    string
	enabled bool
	log     *zap.Logger
}

// NewJournal creates a journal writing to path. When enabled is false the
// journal becomes a no-op sink.
func NewJournal(path string, enabled bool, log *zap.Logger) *Journal {
	return &Journal{
		path:    path,
		enabled: enabled,
		log:     log,
	}
}

// Append writes one result as a single JSON line. The file is created on
// first use together with its parent directory.
func (j *Journal) Append(result *models.AnalysisResult) error {
	if !j.enabled || result == nil {
		return nil
	}

	line, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding journal record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating journal directory: %w", err)
		}
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending journal record: %w", err)
	}

	j.log.Debug("journaled analysis",
		zap.String("id", result.ID),
		zap.String("symbol", result.Symbol))
	return nil
}
