package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionPurger drops sessions idle for longer than ttl.
type SessionPurger interface {
	PurgeIdle(ttl time.Duration) int
}

// Janitor periodically drops abandoned quiz sessions.
type Janitor struct {
	purger   SessionPurger
	ttl      time.Duration
	schedule string
	logger   *zap.Logger
}

func NewJanitor(purger SessionPurger, ttl time.Duration, schedule string, logger *zap.Logger) *Janitor {
	return &Janitor{
		purger:   purger,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger,
	}
}

// Start runs the purge job on schedule until ctx is done.
func (j *Janitor) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(j.schedule, j.RunOnce); err != nil {
		return fmt.Errorf("add janitor job %q: %w", j.schedule, err)
	}

	c.Start()
	j.logger.Info("session janitor started",
		zap.String("schedule", j.schedule),
		zap.Duration("ttl", j.ttl),
	)

	<-ctx.Done()

	<-c.Stop().Done()
	j.logger.Info("session janitor stopped")

	return nil
}

// RunOnce purges idle sessions immediately.
func (j *Janitor) RunOnce() {
	if n := j.purger.PurgeIdle(j.ttl); n > 0 {
		j.logger.Info("purged idle quiz sessions", zap.Int("count", n))
	}
}
