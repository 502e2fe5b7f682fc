package rrdp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Db defines the interface for run-state persistence: durable configuration,
// hashed credentials, the kill switch and the fetch cycle audit trail. The
// pipeline's own FetchState stays in memory; the database records history.
type Db interface {
	Init() error
	Close() error
	RecordFetchCycle(cycle FetchCycle) error
	GetRecentFetchCycles(limit int) ([]FetchCycle, error)
	GetConfigValue(key string) (string, error)
	SetConfigValue(key, value string) error
	GetCredential(key string) (string, error)
	SetCredential(key, value string) error
	GetSchedulerStatus() (bool, error)
	SetSchedulerStatus(isActive bool) error
	RecordKillSwitchAttempt(attemptType string) error
	GetRecentKillSwitchAttempts(attemptType string, duration time.Duration) (int, error)
	CleanupOldKillSwitchAttempts(olderThan time.Duration) error
}

// Reporter receives the outcome of every fetch cycle, typically to drive
// metrics.
type Reporter interface {
	Success(serial uint64, objectCount, collisionCount int)
	NotModified()
	Failure()
	Timeout()
}

// ObjectSink consumes the object set produced by a successful cycle. The
// materialization stage implements this; the mirror core never touches the
// filesystem itself.
type ObjectSink interface {
	Publish(ctx context.Context, result *FetchResult) error
}

// LogSink is the default ObjectSink: it only reports what a materialization
// stage would have received.
type LogSink struct{}

// Publish logs the object set summary.
func (LogSink) Publish(_ context.Context, result *FetchResult) error {
	slog.Info("object set ready for materialization",
		"serial", result.Serial, "objects", len(result.Objects), "collisions", result.CollisionCount)
	return nil
}

// Service drives fetch cycles and owns everything that survives between them:
// the fetcher with its state, the run-state database, the metrics reporter
// and the downstream sink.
type Service struct {
	// Serializes whole cycles. State has no locking of its own and a cycle's
	// partial state must never be observed by another cycle.
	mu      sync.Mutex
	fetcher *Fetcher
	db      Db
	metrics Reporter
	sink    ObjectSink
}

// NewService creates a new mirror service. A nil sink falls back to LogSink.
func NewService(fetcher *Fetcher, db Db, metrics Reporter, sink ObjectSink) *Service {
	if sink == nil {
		sink = LogSink{}
	}
	return &Service{fetcher: fetcher, db: db, metrics: metrics, sink: sink}
}

// GetRecentFetchCycles returns the most recent recorded cycles, newest first.
func (s *Service) GetRecentFetchCycles(limit int) ([]FetchCycle, error) {
	return s.db.GetRecentFetchCycles(limit)
}

// GetConfigValue retrieves a configuration value.
func (s *Service) GetConfigValue(key string) (string, error) {
	return s.db.GetConfigValue(key)
}

// RunCycle executes one fetch cycle end to end: fetch, classify the outcome,
// record it, update metrics and hand the object set to the sink on success.
func (s *Service) RunCycle(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	result, err := s.fetcher.FetchObjects(ctx)
	cycle := FetchCycle{StartedAt: started, FinishedAt: time.Now()}

	if err == nil {
		cycle.Outcome = OutcomeSuccess
		cycle.Serial = result.Serial
		cycle.ObjectCount = len(result.Objects)
		cycle.CollisionCount = result.CollisionCount
		s.metrics.Success(result.Serial, len(result.Objects), result.CollisionCount)
		slog.Info("fetch cycle succeeded",
			"serial", result.Serial, "objects", len(result.Objects), "collisions", result.CollisionCount)

		if sinkErr := s.sink.Publish(ctx, result); sinkErr != nil {
			slog.Error("failed to publish object set downstream", "err", sinkErr)
		}
	} else {
		cycle = s.classifyFailure(cycle, err)
	}

	if recordErr := s.db.RecordFetchCycle(cycle); recordErr != nil {
		slog.Error("failed to record fetch cycle", "err", recordErr)
	}
}

func (s *Service) classifyFailure(cycle FetchCycle, err error) FetchCycle {
	var notModified *NotModifiedError
	var structure *SnapshotStructureError
	var aborted *UpdateAbortedError

	switch {
	case errors.As(err, &notModified):
		cycle.Outcome = OutcomeNotModified
		cycle.Detail = notModified.URL
		s.metrics.NotModified()
		slog.Info("fetch cycle found no changes", "url", notModified.URL)
	case errors.As(err, &structure):
		cycle.Outcome = OutcomeStructureError
		cycle.Detail = structure.Error()
		s.metrics.Failure()
		slog.Error("snapshot violated a structural invariant", "url", structure.URL, "detail", structure.Detail)
	case errors.As(err, &aborted):
		cycle.Outcome = OutcomeAborted
		cycle.Detail = aborted.Error()
		s.metrics.Timeout()
		slog.Warn("fetch cycle aborted", "url", aborted.URL, "err", aborted.Cause)
	default:
		cycle.Outcome = OutcomeFailure
		cycle.Detail = err.Error()
		s.metrics.Failure()
		slog.Error("fetch cycle failed", "err", err)
	}
	return cycle
}
