package health

import "context"

// Service tracks whether the process is shutting down.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewService derives the health lifecycle from the process root context, so a
// cancelled root immediately flips /health to unavailable.
func NewService(parent context.Context) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Shutdown marks the service as shutting down.
func (s *Service) Shutdown() {
	s.cancel()
}

// IsShuttingDown reports whether shutdown has begun.
func (s *Service) IsShuttingDown() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// Context returns the service context for use in operations.
func (s *Service) Context() context.Context {
	return s.ctx
}
