package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Pending int64
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	backlog    BacklogReader
	consumer   ConsumerChecker
	maxBacklog int64
}

// New creates a Service.
func New(db DBPinger, backlog BacklogReader) *Service {
	return &Service{db: db, backlog: backlog}
}

// WithConsumer adds the event consumer check.
func (s *Service) WithConsumer(c ConsumerChecker) *Service {
	s.consumer = c
	return s
}

// WithMaxBacklog marks the batch path degraded once more than n
// interactions are pending. Zero disables the check.
func (s *Service) WithMaxBacklog(n int64) *Service {
	s.maxBacklog = n
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	var pending int64

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		return Report{Status: Unhealthy, Checks: checks}
	}
	checks["database"] = CheckOK

	if s.backlog != nil {
		n, err := s.backlog.PendingCount(ctx)
		switch {
		case err != nil:
			checks["batch_backlog"] = CheckError
		case s.maxBacklog > 0 && n > s.maxBacklog:
			checks["batch_backlog"] = CheckError
		default:
			checks["batch_backlog"] = CheckOK
		}
		pending = n
	}

	if s.consumer != nil {
		if err := s.consumer.HealthCheck(ctx); err != nil {
			checks["events"] = CheckError
		} else {
			checks["events"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Pending: pending}
}
