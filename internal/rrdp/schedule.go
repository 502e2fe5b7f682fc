package rrdp

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler triggers fetch cycles at a fixed interval.
type Scheduler struct {
	service   *Service
	scheduler gocron.Scheduler
}

// NewScheduler creates a new scheduler. ctx bounds every cycle it starts.
func NewScheduler(ctx context.Context, service *Service, interval time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	scheduler := &Scheduler{
		service:   service,
		scheduler: s,
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { scheduler.runCycle(ctx) }),
	)
	if err != nil {
		return nil, err
	}

	return scheduler, nil
}

// Start begins the fetch loop.
func (s *Scheduler) Start() {
	slog.Info("starting fetch scheduler")
	s.scheduler.Start()
}

// Stop halts the fetch loop.
func (s *Scheduler) Stop() {
	slog.Info("stopping fetch scheduler")
	if err := s.scheduler.Shutdown(); err != nil {
		slog.Error("error shutting down scheduler", "err", err)
	}
}

// runCycle is the task that runs periodically.
func (s *Scheduler) runCycle(ctx context.Context) {
	isActive, err := s.service.db.GetSchedulerStatus()
	if err != nil {
		slog.Error("error checking scheduler status", "err", err)
		return
	}

	if !isActive {
		slog.Info("scheduler is disabled via kill switch, skipping fetch cycle")
		return
	}

	s.service.RunCycle(ctx)
}
