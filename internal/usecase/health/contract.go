package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// BacklogReader reports how many interactions await the batch path.
type BacklogReader interface {
	PendingCount(ctx context.Context) (int64, error)
}

// ConsumerChecker checks the event consumer connection.
type ConsumerChecker interface {
	HealthCheck(ctx context.Context) error
}
