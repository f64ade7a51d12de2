package usecase

import (
	"context"

	authdomain "mailmirror-backend/internal/auth/domain"
	emaildomain "mailmirror-backend/internal/email/domain"
	syncdomain "mailmirror-backend/internal/mailsync/domain"
)

// CredentialResolver loads a user and the provider credentials stored for it.
type CredentialResolver interface {
	ResolveCredentials(ctx context.Context, userID string) (*authdomain.User, emaildomain.Credentials, error)
}

type UserLister interface {
	FindAll(ctx context.Context) ([]authdomain.User, error)
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
}

// Importer reconciles one user's provider mailbox into the store.
type Importer interface {
	SyncInbox(ctx context.Context, userID string) (syncdomain.StepResult, error)
	SyncSpam(ctx context.Context, userID string) (syncdomain.StepResult, error)
	SyncDrafts(ctx context.Context, userID string) (syncdomain.StepResult, error)
	SyncLabels(ctx context.Context, userID string) (syncdomain.StepResult, error)
	SyncEmailLabels(ctx context.Context, userID string) (syncdomain.StepResult, error)
	SyncSent(ctx context.Context, userID string) (syncdomain.StepResult, error)
	// SyncUser runs every step in order and stops at the first failure.
	SyncUser(ctx context.Context, userID string) ([]syncdomain.StepResult, error)
}

// Runner imports every known user, isolating failures per user.
type Runner interface {
	RunAll(ctx context.Context) *syncdomain.Report
	RunUser(ctx context.Context, userID string) syncdomain.UserResult
	History(ctx context.Context, userID string, limit int) ([]syncdomain.SyncRun, error)
}
