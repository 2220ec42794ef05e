package services

import (
	"context"
	"fmt"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/robfig/cron/v3"
)

// CloserScheduler runs the closer sweep on a fixed interval. Ticks never
// overlap: a tick that fires while the previous sweep runs is skipped.
type CloserScheduler struct {
	cron       *cron.Cron
	closer     *AuctionCloser
	leader     domain.LeaderElection
	instanceID string
	interval   time.Duration
	log        logger.Logger
}

// NewCloserScheduler builds a scheduler. With a nil leader every instance
// sweeps; otherwise only the current leader does.
func NewCloserScheduler(closer *AuctionCloser, leader domain.LeaderElection, instanceID string,
	interval time.Duration, log logger.Logger) *CloserScheduler {
	cl := cronLogger{log: log}
	return &CloserScheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		closer:     closer,
		leader:     leader,
		instanceID: instanceID,
		interval:   interval,
		log:        log,
	}
}

func (s *CloserScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction closer", "interval", s.interval.String())

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.tick(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *CloserScheduler) Stop() error {
	s.log.Info("Stopping auction closer")
	<-s.cron.Stop().Done()
	return nil
}

func (s *CloserScheduler) tick(ctx context.Context) {
	if s.leader != nil {
		ok, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Failed to check leadership", "error", err)
			return
		}
		if !ok {
			s.log.Debug("Not leader, skipping sweep", "instance_id", s.instanceID)
			return
		}
	}

	if _, err := s.closer.Sweep(ctx); err != nil {
		s.log.Error("Sweep failed", "error", err)
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}

var _ domain.AuctionScheduler = (*CloserScheduler)(nil)
