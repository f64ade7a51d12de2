package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"
	syncdomain "mailmirror-backend/internal/mailsync/domain"
	"mailmirror-backend/internal/mailsync/repository"
	"mailmirror-backend/pkg/logger"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type runner struct {
	users       UserLister
	importer    Importer
	runs        repository.SyncRunRepository
	concurrency int
	log         logger.Logger

	bulk      sync.Mutex
	userLocks sync.Map // user ID -> chan struct{} of capacity 1
}

// NewRunner creates the bulk runner. runs may be nil to skip recording history.
func NewRunner(users UserLister, importer Importer, runs repository.SyncRunRepository, concurrency int, log logger.Logger) Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &runner{
		users:       users,
		importer:    importer,
		runs:        runs,
		concurrency: concurrency,
		log:         log,
	}
}

// RunAll imports every user. A failing user never stops the others and no
// error escapes; failures are reported in the returned results. Only one bulk
// run proceeds at a time; a concurrent call returns at once with
// AlreadyRunning set.
func (r *runner) RunAll(ctx context.Context) *syncdomain.Report {
	report := &syncdomain.Report{StartedAt: time.Now()}

	if !r.bulk.TryLock() {
		r.log.Warn("[BulkSync] another bulk import is running, skipping")
		report.AlreadyRunning = true
		report.Error = "bulk sync already running"
		report.Results = []syncdomain.UserResult{}
		report.FinishedAt = time.Now()
		return report
	}
	defer r.bulk.Unlock()

	users, err := r.users.FindAll(ctx)
	if err != nil {
		r.log.Errorf("[BulkSync] failed to list users: %v", err)
		report.Error = err.Error()
		report.FinishedAt = time.Now()
		return report
	}

	r.log.Infof("[BulkSync] starting import for %d users (concurrency %d)", len(users), r.concurrency)

	results := make([]syncdomain.UserResult, len(users))
	// Plain group: one user's failure must not cancel the others.
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, u := range users {
		g.Go(func() error {
			results[i] = r.runUser(ctx, u.ID, u.Email)
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.Total = len(results)
	for _, res := range results {
		if res.Status == syncdomain.StatusSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.FinishedAt = time.Now()

	r.log.Infof("[BulkSync] finished: %d succeeded, %d failed in %s",
		report.Succeeded, report.Failed, report.FinishedAt.Sub(report.StartedAt))
	return report
}

func (r *runner) RunUser(ctx context.Context, userID string) syncdomain.UserResult {
	email := ""
	if u, err := r.users.FindByID(ctx, userID); err == nil && u != nil {
		email = u.Email
	}
	return r.runUser(ctx, userID, email)
}

func (r *runner) History(ctx context.Context, userID string, limit int) ([]syncdomain.SyncRun, error) {
	if r.runs == nil {
		return []syncdomain.SyncRun{}, nil
	}
	return r.runs.ListByUser(ctx, userID, limit)
}

func (r *runner) runUser(ctx context.Context, userID, email string) (res syncdomain.UserResult) {
	start := time.Now()
	res = syncdomain.UserResult{UserID: userID, Email: email}

	defer func() {
		if p := recover(); p != nil {
			res.Status = syncdomain.StatusFailed
			res.Kind = emaildomain.KindInternal
			res.Error = fmt.Sprintf("panic: %v", p)
			r.log.Errorf("[BulkSync] user %s: recovered from panic: %v", userID, p)
		}
		res.DurationMs = time.Since(start).Milliseconds()
		r.record(ctx, res, start)
	}()

	unlock, err := r.lockUser(ctx, userID)
	if err != nil {
		res.Status = syncdomain.StatusFailed
		res.Kind = emaildomain.KindOf(err)
		res.Error = err.Error()
		res.Steps = []syncdomain.StepResult{}
		return res
	}
	defer unlock()

	steps, err := r.importer.SyncUser(ctx, userID)
	res.Steps = steps
	if res.Steps == nil {
		res.Steps = []syncdomain.StepResult{}
	}
	if err != nil {
		res.Status = syncdomain.StatusFailed
		res.Kind = emaildomain.KindOf(err)
		res.Error = err.Error()
		r.log.Warnf("[BulkSync] user %s (%s) failed (%s): %v", userID, email, res.Kind, err)
		return res
	}

	res.Status = syncdomain.StatusSuccess
	r.log.Infof("[BulkSync] user %s (%s) synced", userID, email)
	return res
}

// lockUser waits until no other import of userID is in flight.
func (r *runner) lockUser(ctx context.Context, userID string) (func(), error) {
	v, _ := r.userLocks.LoadOrStore(userID, make(chan struct{}, 1))
	sem := v.(chan struct{})
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "waiting for running import of user %s", userID)
	}
}

func (r *runner) record(ctx context.Context, res syncdomain.UserResult, start time.Time) {
	if r.runs == nil {
		return
	}
	// Users that do not exist have nothing to attach history to.
	if res.Kind == emaildomain.KindNotFound && res.Email == "" {
		return
	}
	if err := r.runs.Record(context.WithoutCancel(ctx), syncdomain.NewSyncRun(res, start)); err != nil {
		r.log.Warnf("[BulkSync] user %s: failed to record run: %v", res.UserID, err)
	}
}
