package core

import "context"

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// IPositionSource is the portfolio view the risk gate consults on every check
type IPositionSource interface {
	OpenPositionCount() int
}

// ISnapshotStore persists and restores the tracker's position set.
// LoadSnapshot returns (nil, nil) when no snapshot has been written yet.
type ISnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *TrackerSnapshot) error
	LoadSnapshot(ctx context.Context) (*TrackerSnapshot, error)
	Close() error
}

// IRunner is a component with a blocking run loop tied to a context
type IRunner interface {
	Run(ctx context.Context) error
}
