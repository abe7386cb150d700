package history

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/artemvlas/veretino-sub000/internal/config"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// FileName is the history file created inside the configured data folder.
const FileName = "history.db"

// NewHistoryFromConfig creates a History implementation based on the history config type.
func NewHistoryFromConfig(cfg config.HistoryConfig) (vt.History, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite history")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history folder: %w", err)
		}
		return open(filepath.Join(cfg.DataDir, FileName))
	case "memory":
		return open(":memory:")
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}

func open(path string) (vt.History, error) {
	h, err := NewSQLiteHistory(path)
	if err != nil {
		return nil, err
	}
	return h, nil
}
