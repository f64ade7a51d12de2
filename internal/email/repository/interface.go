package repository

import (
	"context"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"
)

// EmailRepository defines the interface for email persistence
type EmailRepository interface {
	Create(ctx context.Context, email *emaildomain.Email) error
	// CreateIfAbsent inserts email unless a row with the same provider message id exists.
	CreateIfAbsent(ctx context.Context, email *emaildomain.Email) (bool, error)
	FindByID(ctx context.Context, id string) (*emaildomain.Email, error)
	ExistsByGmailMessageID(ctx context.Context, gmailMessageID string) (bool, error)
	ListSyncedByUser(ctx context.Context, userID string) ([]emaildomain.Email, error)
	ListAllWithLabels(ctx context.Context) ([]emaildomain.Email, error)
	ListSentBy(ctx context.Context, fromEmail string) ([]emaildomain.Email, error)
	ListReplies(ctx context.Context, emailID string) ([]emaildomain.Email, error)
	Search(ctx context.Context, userEmail, query string) ([]emaildomain.Email, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	// MarkDeleted sets the delete flags of the given parties and purges the
	// row once both are set.
	MarkDeleted(ctx context.Context, id string, bySender, byReceiver bool) (bool, error)
}

// SpamUpsertResult reports what UpsertFromProvider changed.
type SpamUpsertResult struct {
	EmailCreated bool
	Flagged      bool
	LinkCreated  bool
}

type SpamRepository interface {
	// UpsertFromProvider stores or flags a provider spam message and links it to userID.
	UpsertFromProvider(ctx context.Context, userID string, email *emaildomain.Email) (SpamUpsertResult, error)
	Mark(ctx context.Context, userID, emailID string) error
	Unmark(ctx context.Context, userID, emailID string) (bool, error)
}

type TrashRepository interface {
	ListForReceiver(ctx context.Context, userEmail string) ([]emaildomain.Email, error)
	MoveToTrash(ctx context.Context, userID, emailID string) (*emaildomain.TrashEmail, error)
	DeleteByID(ctx context.Context, trashID string) (bool, error)
}

type LabelRepository interface {
	// Ensure fetches or creates the label (ownerID, name).
	Ensure(ctx context.Context, ownerID, name string) (*emaildomain.Label, bool, error)
	// LinkEmail ensures every named label exists and is linked to emailID.
	// It returns the number of new links.
	LinkEmail(ctx context.Context, emailID, ownerID string, names []string) (int, error)
	Create(ctx context.Context, label *emaildomain.Label) error
	FindByID(ctx context.Context, id string) (*emaildomain.Label, error)
	ListVisible(ctx context.Context, ownerID string) ([]emaildomain.Label, error)
	Attach(ctx context.Context, emailID, labelID string) error
	Detach(ctx context.Context, emailID, labelID string) error
}

type DraftOutcome string

const (
	DraftCreated DraftOutcome = "created"
	DraftAdopted DraftOutcome = "adopted"
	DraftSkipped DraftOutcome = "skipped"
)

type DraftRepository interface {
	UpsertFromProvider(ctx context.Context, draft *emaildomain.Draft) (DraftOutcome, error)
	ListByUser(ctx context.Context, userID string) ([]emaildomain.Draft, error)
}

type SentEmailRepository interface {
	CreateIfAbsent(ctx context.Context, sent *emaildomain.SentEmail) (bool, error)
	ExistsByGmailMessageID(ctx context.Context, gmailMessageID string) (bool, error)
	FindByID(ctx context.Context, id string) (*emaildomain.SentEmail, error)
	Delete(ctx context.Context, id string) error
}
