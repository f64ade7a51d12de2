package usecase

import (
	"context"

	authdomain "mailmirror-backend/internal/auth/domain"
	emaildomain "mailmirror-backend/internal/email/domain"
)

// CredentialResolver loads a user and the provider credentials stored for it.
type CredentialResolver interface {
	ResolveCredentials(ctx context.Context, userID string) (*authdomain.User, emaildomain.Credentials, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
}

// EmailUsecase defines the interface for email use cases
type EmailUsecase interface {
	ListEmails(ctx context.Context) ([]emaildomain.Email, error)
	GetInbox(ctx context.Context, userID string) ([]emaildomain.InboxItem, error)
	ListSent(ctx context.Context, userID string) ([]emaildomain.Email, error)
	GetThread(ctx context.Context, emailID string) (*emaildomain.Email, []emaildomain.Email, error)
	Search(ctx context.Context, user *authdomain.User, query string) ([]emaildomain.Email, error)
	SendEmail(ctx context.Context, userID, to, subject, body string) (*emaildomain.Email, error)
	MarkAsRead(ctx context.Context, emailID string) error
	Reply(ctx context.Context, emailID string, reply *emaildomain.Email) (*emaildomain.Email, error)
	// DeleteEmail hides the email from userID and reports whether the row was purged.
	DeleteEmail(ctx context.Context, emailID, userID string) (bool, error)

	ListLabels(ctx context.Context, userID string) ([]emaildomain.Label, error)
	CreateLabel(ctx context.Context, userID, name string) (*emaildomain.Label, error)
	AddLabelToEmail(ctx context.Context, emailID, labelID string) error
	RemoveLabelFromEmail(ctx context.Context, emailID, labelID string) error

	GetDrafts(ctx context.Context, userID string) ([]emaildomain.DraftItem, error)
	ListStoredDrafts(ctx context.Context, userID string) ([]emaildomain.Draft, error)

	MoveToSpam(ctx context.Context, userID, emailID string) error
	RemoveFromSpam(ctx context.Context, userID, emailID string) error

	GetTrash(ctx context.Context, userID string) ([]emaildomain.Email, error)
	MoveToTrash(ctx context.Context, emailID, userID string) (*emaildomain.TrashEmail, error)
	DeleteFromTrash(ctx context.Context, trashID string) error

	DeleteSentEmail(ctx context.Context, sentID string) error
}
