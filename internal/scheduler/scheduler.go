// Package scheduler drives the periodic full refresh through cron.
// The coordinator's busy guard makes overlapping fires harmless: a
// fire landing while the previous pass still runs is skipped.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/refresh"
)

// Scheduler owns the cron loop.
type Scheduler struct {
	cron   *cron.Cron
	coord  *refresh.Coordinator
	logger *zap.Logger
}

// New builds a Scheduler over the coordinator.
func New(coord *refresh.Coordinator, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		coord:  coord,
		logger: logger,
	}
}

// Schedule registers a periodic full refresh under the given cron
// spec (e.g. "@every 30m"). ctx bounds the background work of every
// triggered pass.
func (s *Scheduler) Schedule(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if s.coord.TriggerAll(ctx) {
			s.logger.Info("scheduled refresh triggered", zap.String("spec", spec))
			return
		}
		s.logger.Warn("scheduled refresh skipped, previous pass still running")
	})
	if err != nil {
		return fmt.Errorf("register refresh schedule %q: %w", spec, err)
	}
	return nil
}

// Start begins firing scheduled entries.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop and waits for in-flight fires to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
