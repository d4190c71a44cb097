package store

import (
	"fmt"

	"riskgate/internal/config"
	"riskgate/internal/core"
	apperrors "riskgate/pkg/errors"
)

// New builds the snapshot store named by the persistence configuration
func New(cfg config.PersistenceConfig) (core.ISnapshotStore, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownBackend, cfg.Backend)
	}
}
