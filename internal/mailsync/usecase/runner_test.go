package usecase

import (
	"context"
	"testing"
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"
	emaildomain "mailmirror-backend/internal/email/domain"
	syncdomain "mailmirror-backend/internal/mailsync/domain"
	syncrepo "mailmirror-backend/internal/mailsync/repository"
	"mailmirror-backend/internal/testutil"
	"mailmirror-backend/pkg/logger"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockImporter struct {
	Importer
	mock.Mock
}

func (m *mockImporter) SyncUser(ctx context.Context, userID string) ([]syncdomain.StepResult, error) {
	args := m.Called(ctx, userID)
	steps, _ := args.Get(0).([]syncdomain.StepResult)
	return steps, args.Error(1)
}

type staticUsers []authdomain.User

func (s staticUsers) FindAll(ctx context.Context) ([]authdomain.User, error) {
	return s, nil
}

func (s staticUsers) FindByID(ctx context.Context, id string) (*authdomain.User, error) {
	for i := range s {
		if s[i].ID == id {
			return &s[i], nil
		}
	}
	return nil, nil
}

type failingUsers struct{ staticUsers }

func (failingUsers) FindAll(ctx context.Context) ([]authdomain.User, error) {
	return nil, errors.New("connection refused")
}

func TestRunner_RunAllIsolatesFailures(t *testing.T) {
	// Arrange
	users := staticUsers{{ID: "a", Email: "a@x.com"}, {ID: "b", Email: "b@x.com"}, {ID: "c", Email: "c@x.com"}}
	imp := &mockImporter{}
	imp.On("SyncUser", mock.Anything, "a").Return(nil, errors.Wrap(emaildomain.ErrMissingCredentials, "user a"))
	imp.On("SyncUser", mock.Anything, "b").Return([]syncdomain.StepResult{{Step: syncdomain.StepInbox, Created: 2}}, nil)
	imp.On("SyncUser", mock.Anything, "c").Run(func(mock.Arguments) { panic("boom") })

	runner := NewRunner(users, imp, nil, 2, logger.NewNop())

	// Act
	report := runner.RunAll(context.Background())

	// Assert
	require.Len(t, report.Results, 3)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Empty(t, report.Error)

	assert.Equal(t, "a", report.Results[0].UserID)
	assert.Equal(t, syncdomain.StatusFailed, report.Results[0].Status)
	assert.Equal(t, emaildomain.KindMissingCredentials, report.Results[0].Kind)
	assert.NotNil(t, report.Results[0].Steps)

	assert.Equal(t, syncdomain.StatusSuccess, report.Results[1].Status)
	assert.Equal(t, 2, report.Results[1].Steps[0].Created)

	assert.Equal(t, syncdomain.StatusFailed, report.Results[2].Status)
	assert.Equal(t, emaildomain.KindInternal, report.Results[2].Kind)
	assert.Contains(t, report.Results[2].Error, "boom")

	imp.AssertExpectations(t)
}

func TestRunner_RunAllReportsListingFailure(t *testing.T) {
	runner := NewRunner(failingUsers{}, &mockImporter{}, nil, 1, logger.NewNop())

	report := runner.RunAll(context.Background())

	assert.Contains(t, report.Error, "connection refused")
	assert.Zero(t, report.Total)
}

func TestRunner_RecordsHistory(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@x.com")
	runs := syncrepo.NewSyncRunRepository(db)

	imp := &mockImporter{}
	imp.On("SyncUser", mock.Anything, user.ID).Return([]syncdomain.StepResult{
		{Step: syncdomain.StepInbox, Created: 2},
		{Step: syncdomain.StepEmailLabels, Linked: 3},
	}, nil).Once()
	imp.On("SyncUser", mock.Anything, user.ID).Return(nil, errors.Wrap(emaildomain.ErrMissingCredentials, "user")).Once()
	imp.On("SyncUser", mock.Anything, "ghost").Return(nil, errors.Wrap(emaildomain.ErrNotFound, "user ghost")).Once()

	runner := NewRunner(staticUsers{*user}, imp, runs, 1, logger.NewNop())
	ctx := context.Background()

	res := runner.RunUser(ctx, user.ID)
	assert.Equal(t, syncdomain.StatusSuccess, res.Status)
	assert.Equal(t, "a@x.com", res.Email)

	res = runner.RunUser(ctx, user.ID)
	assert.Equal(t, syncdomain.StatusFailed, res.Status)

	res = runner.RunUser(ctx, "ghost")
	assert.Equal(t, emaildomain.KindNotFound, res.Kind)

	history, err := runner.History(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	var success syncdomain.SyncRun
	for _, run := range history {
		if run.Status == syncdomain.StatusSuccess {
			success = run
		}
	}
	assert.Equal(t, 2, success.Created)
	assert.Equal(t, 3, success.Linked)

	ghost, err := runner.History(ctx, "ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, ghost)
}

func TestRunner_EndToEndWithMissingCredentials(t *testing.T) {
	f := newImporterFixture(t, nil)
	noCreds := testutil.CreateUser(t, f.db, "a@x.com")
	withCreds := f.userWithCredentials(t, "b@x.com")
	f.provider.AddMessage(testutil.Message("m1", "Hi", "x@x.com", "b@x.com", firstJan, "hello", emaildomain.LabelInbox))

	runner := NewRunner(f.users, f.importer, syncrepo.NewSyncRunRepository(f.db), 1, logger.NewNop())
	report := runner.RunAll(context.Background())

	require.Len(t, report.Results, 2)
	byUser := map[string]syncdomain.UserResult{}
	for _, r := range report.Results {
		byUser[r.UserID] = r
	}
	assert.Equal(t, syncdomain.StatusFailed, byUser[noCreds.ID].Status)
	assert.Equal(t, emaildomain.KindMissingCredentials, byUser[noCreds.ID].Kind)
	assert.Equal(t, syncdomain.StatusSuccess, byUser[withCreds].Status)
	assert.Len(t, byUser[withCreds].Steps, 6)
	assert.Equal(t, int64(1), count(t, f.db, &emaildomain.Email{}))
}

func TestRunner_SkipsOverlappingBulkRun(t *testing.T) {
	// Arrange
	entered, release := make(chan struct{}), make(chan struct{})
	imp := &mockImporter{}
	imp.On("SyncUser", mock.Anything, "a").Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil, nil).Once()
	imp.On("SyncUser", mock.Anything, "a").Return(nil, nil).Once()

	runner := NewRunner(staticUsers{{ID: "a", Email: "a@x.com"}}, imp, nil, 1, logger.NewNop())

	first := make(chan *syncdomain.Report, 1)
	go func() { first <- runner.RunAll(context.Background()) }()
	<-entered

	// Act
	overlapping := runner.RunAll(context.Background())
	close(release)
	finished := <-first

	// Assert
	assert.True(t, overlapping.AlreadyRunning)
	assert.NotEmpty(t, overlapping.Error)
	assert.Zero(t, overlapping.Total)

	assert.False(t, finished.AlreadyRunning)
	assert.Equal(t, 1, finished.Succeeded)

	again := runner.RunAll(context.Background())
	assert.False(t, again.AlreadyRunning, "lock released after the first run")
	imp.AssertNumberOfCalls(t, "SyncUser", 2)
}

func TestRunner_RunUserWaitsForInFlightImport(t *testing.T) {
	// Arrange
	entered, release := make(chan struct{}), make(chan struct{})
	imp := &mockImporter{}
	imp.On("SyncUser", mock.Anything, "a").Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil, nil).Once()

	runner := NewRunner(staticUsers{{ID: "a", Email: "a@x.com"}}, imp, nil, 1, logger.NewNop())

	done := make(chan syncdomain.UserResult, 1)
	go func() { done <- runner.RunUser(context.Background(), "a") }()
	<-entered

	// Act
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waited := runner.RunUser(ctx, "a")
	close(release)
	first := <-done

	// Assert
	assert.Equal(t, syncdomain.StatusFailed, waited.Status)
	assert.Contains(t, waited.Error, "waiting for running import")
	assert.NotNil(t, waited.Steps)
	assert.Equal(t, syncdomain.StatusSuccess, first.Status)
	imp.AssertNumberOfCalls(t, "SyncUser", 1)
}
