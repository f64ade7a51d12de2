package scheduler

import (
	"context"
	"sync"

	"mailmirror-backend/internal/mailsync/usecase"
	"mailmirror-backend/pkg/logger"

	cronv3 "github.com/robfig/cron/v3"
)

// SyncScheduler triggers bulk imports: once at start and on a cron schedule.
type SyncScheduler struct {
	runner   usecase.Runner
	schedule string
	onStart  bool
	log      logger.Logger

	cron   *cronv3.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncScheduler creates a scheduler. An empty schedule disables periodic runs.
func NewSyncScheduler(runner usecase.Runner, schedule string, onStart bool, log logger.Logger) *SyncScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncScheduler{
		runner:   runner,
		schedule: schedule,
		onStart:  onStart,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the startup run in the background and registers the cron job
func (s *SyncScheduler) Start() error {
	if s.onStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.log.Info("[SyncScheduler] running startup import")
			s.runner.RunAll(s.ctx)
		}()
	}

	if s.schedule == "" {
		s.log.Info("[SyncScheduler] no schedule configured, periodic import disabled")
		return nil
	}

	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	if _, err := c.AddFunc(s.schedule, s.runOnce); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.log.Infof("[SyncScheduler] registered periodic import with schedule: %s", s.schedule)
	return nil
}

func (s *SyncScheduler) runOnce() {
	if s.ctx.Err() != nil {
		return
	}
	report := s.runner.RunAll(s.ctx)
	if report.AlreadyRunning {
		s.log.Info("[SyncScheduler] previous import still running, tick skipped")
		return
	}
	s.log.Infof("[SyncScheduler] periodic import done: %d/%d users succeeded", report.Succeeded, report.Total)
}

// Stop cancels in-flight imports and waits for them to return
func (s *SyncScheduler) Stop() {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.log.Info("[SyncScheduler] stopped")
}
