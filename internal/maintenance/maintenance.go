// Package maintenance runs the periodic housekeeping jobs: pruning old
// join/leave history so the database stays small.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"joinerbot/internal/presence"
	"joinerbot/pkg/logx"
)

const (
	DefaultSchedule  = "@daily"
	DefaultRetention = 30 * 24 * time.Hour
)

type Config struct {
	Schedule  string        // cron spec or descriptor; empty means DefaultSchedule
	Retention time.Duration // 0 means DefaultRetention
}

type Service struct {
	store *presence.Store
	log   logx.Logger

	schedule  string
	retention time.Duration

	parser cron.Parser
	c      *cron.Cron
}

func New(store *presence.Store, cfg Config, log logx.Logger) *Service {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		store:     store,
		log:       log,
		schedule:  schedule,
		retention: retention,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start() error {
	c := cron.New(cron.WithParser(s.parser))
	_, err := c.AddFunc(s.schedule, s.pruneOnce)
	if err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("maintenance scheduled",
		logx.String("schedule", s.schedule), logx.Duration("retention", s.retention))
	return nil
}

func (s *Service) Stop() {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
}

func (s *Service) pruneOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	n, err := s.store.PruneHistory(ctx, cutoff)
	if err != nil {
		s.log.Error("history prune failed", logx.Err(err))
		return
	}
	s.log.Info("history pruned", logx.Int64("rows", n), logx.Time("cutoff", cutoff))
}
