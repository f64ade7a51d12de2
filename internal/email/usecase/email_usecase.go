package usecase

import (
	"context"
	"strings"
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"
	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/internal/email/repository"
	"mailmirror-backend/pkg/logger"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	LabelScope       string
	InboxPreview     int64
	DraftPreview     int64
	FetchConcurrency int
}

type Repositories struct {
	Emails repository.EmailRepository
	Spam   repository.SpamRepository
	Trash  repository.TrashRepository
	Labels repository.LabelRepository
	Sent   repository.SentEmailRepository
	Drafts repository.DraftRepository
}

// emailUsecase implements EmailUsecase interface
type emailUsecase struct {
	repos    Repositories
	users    UserFinder
	creds    CredentialResolver
	provider emaildomain.MailProvider
	opts     Options
	log      logger.Logger
}

// NewEmailUsecase creates a new instance of emailUsecase
func NewEmailUsecase(repos Repositories, users UserFinder, creds CredentialResolver, provider emaildomain.MailProvider, opts Options, log logger.Logger) EmailUsecase {
	if opts.InboxPreview <= 0 {
		opts.InboxPreview = 10
	}
	if opts.DraftPreview <= 0 {
		opts.DraftPreview = 20
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 4
	}
	if opts.LabelScope == "" {
		opts.LabelScope = emaildomain.LabelScopeGlobal
	}
	return &emailUsecase{
		repos:    repos,
		users:    users,
		creds:    creds,
		provider: provider,
		opts:     opts,
		log:      log,
	}
}

func (u *emailUsecase) findUser(ctx context.Context, userID string) (*authdomain.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.Wrap(emaildomain.ErrNotFound, "user not found")
	}
	return user, nil
}

func (u *emailUsecase) findEmail(ctx context.Context, emailID string) (*emaildomain.Email, error) {
	email, err := u.repos.Emails.FindByID(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, errors.Wrap(emaildomain.ErrNotFound, "email not found")
	}
	return email, nil
}

func (u *emailUsecase) ListEmails(ctx context.Context) ([]emaildomain.Email, error) {
	return u.repos.Emails.ListAllWithLabels(ctx)
}

// GetInbox reads the newest provider inbox messages without storing them
func (u *emailUsecase) GetInbox(ctx context.Context, userID string) ([]emaildomain.InboxItem, error) {
	_, creds, err := u.creds.ResolveCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids, err := u.provider.ListMessageIDs(ctx, creds, emaildomain.LabelInbox, u.opts.InboxPreview)
	if err != nil {
		return nil, err
	}

	items := make([]emaildomain.InboxItem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.FetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			msg, err := u.provider.GetMessage(gctx, creds, id)
			if err != nil {
				return err
			}
			items[i] = emaildomain.InboxItem{
				ID:       msg.ID,
				ThreadID: msg.ThreadID,
				Snippet:  msg.Snippet,
				Subject:  msg.Header("Subject"),
				From:     msg.Header("From"),
				Date:     msg.Header("Date"),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (u *emailUsecase) ListSent(ctx context.Context, userID string) ([]emaildomain.Email, error) {
	user, err := u.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.repos.Emails.ListSentBy(ctx, user.Email)
}

func (u *emailUsecase) GetThread(ctx context.Context, emailID string) (*emaildomain.Email, []emaildomain.Email, error) {
	email, err := u.findEmail(ctx, emailID)
	if err != nil {
		return nil, nil, err
	}
	replies, err := u.repos.Emails.ListReplies(ctx, emailID)
	if err != nil {
		return nil, nil, err
	}
	return email, replies, nil
}

func (u *emailUsecase) Search(ctx context.Context, user *authdomain.User, query string) ([]emaildomain.Email, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Wrap(emaildomain.ErrValidation, "query is required")
	}
	return u.repos.Emails.Search(ctx, user.Email, query)
}

// SendEmail sends through the provider and keeps a local copy
func (u *emailUsecase) SendEmail(ctx context.Context, userID, to, subject, body string) (*emaildomain.Email, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.Wrap(emaildomain.ErrValidation, "recipient is required")
	}

	user, creds, err := u.creds.ResolveCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	sent, err := u.provider.SendMessage(ctx, creds, &emaildomain.OutgoingMessage{
		From:    user.Email,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	email := &emaildomain.Email{
		Subject:   subject,
		Body:      body,
		FromEmail: user.Email,
		ToEmail:   to,
		SentAt:    &now,
		UserID:    user.ID,
		ThreadID:  sent.ThreadID,
	}
	if sent.ID != "" {
		email.GmailMessageID = &sent.ID
	}
	if err := u.repos.Emails.Create(ctx, email); err != nil {
		return nil, err
	}

	u.log.Infof("[Email] user %s sent message %s", user.ID, sent.ID)
	return email, nil
}

func (u *emailUsecase) MarkAsRead(ctx context.Context, emailID string) error {
	return u.repos.Emails.MarkRead(ctx, emailID, time.Now())
}

func (u *emailUsecase) Reply(ctx context.Context, emailID string, reply *emaildomain.Email) (*emaildomain.Email, error) {
	original, err := u.findEmail(ctx, emailID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	reply.ID = ""
	reply.ReplyToID = &original.ID
	reply.SentAt = &now
	reply.ThreadID = original.ThreadID
	reply.GmailMessageID = nil
	if err := u.repos.Emails.Create(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (u *emailUsecase) DeleteEmail(ctx context.Context, emailID, userID string) (bool, error) {
	email, err := u.findEmail(ctx, emailID)
	if err != nil {
		return false, err
	}
	user, err := u.findUser(ctx, userID)
	if err != nil {
		return false, err
	}

	bySender := email.FromEmail == user.Email
	byReceiver := email.ToEmail == user.Email
	if !bySender && !byReceiver {
		return false, errors.Wrap(emaildomain.ErrForbidden, "user is neither sender nor receiver")
	}

	return u.repos.Emails.MarkDeleted(ctx, emailID, bySender, byReceiver)
}

func (u *emailUsecase) ListLabels(ctx context.Context, userID string) ([]emaildomain.Label, error) {
	return u.repos.Labels.ListVisible(ctx, emaildomain.LabelOwner(u.opts.LabelScope, userID))
}

func (u *emailUsecase) CreateLabel(ctx context.Context, userID, name string) (*emaildomain.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(emaildomain.ErrValidation, "label name is required")
	}
	if u.opts.LabelScope == emaildomain.LabelScopeUser {
		if _, err := u.findUser(ctx, userID); err != nil {
			return nil, err
		}
	}

	label := &emaildomain.Label{OwnerID: emaildomain.LabelOwner(u.opts.LabelScope, userID), Name: name}
	if err := u.repos.Labels.Create(ctx, label); err != nil {
		if errors.Is(err, emaildomain.ErrConflict) {
			return nil, errors.Wrapf(err, "label %q", name)
		}
		return nil, err
	}
	return label, nil
}

func (u *emailUsecase) AddLabelToEmail(ctx context.Context, emailID, labelID string) error {
	if _, err := u.findEmail(ctx, emailID); err != nil {
		return err
	}
	label, err := u.repos.Labels.FindByID(ctx, labelID)
	if err != nil {
		return err
	}
	if label == nil {
		return errors.Wrap(emaildomain.ErrNotFound, "label not found")
	}

	if err := u.repos.Labels.Attach(ctx, emailID, labelID); err != nil {
		if errors.Is(err, emaildomain.ErrConflict) {
			return errors.Wrap(err, "label already assigned to email")
		}
		return err
	}
	return nil
}

func (u *emailUsecase) RemoveLabelFromEmail(ctx context.Context, emailID, labelID string) error {
	if err := u.repos.Labels.Detach(ctx, emailID, labelID); err != nil {
		if errors.Is(err, emaildomain.ErrNotFound) {
			return errors.Wrap(err, "label not assigned to email")
		}
		return err
	}
	return nil
}

// ListStoredDrafts returns the drafts mirrored by sync, most recently edited
// first.
func (u *emailUsecase) ListStoredDrafts(ctx context.Context, userID string) ([]emaildomain.Draft, error) {
	user, err := u.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	drafts, err := u.repos.Drafts.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list stored drafts")
	}
	return drafts, nil
}

// GetDrafts reads the provider's drafts without storing them
func (u *emailUsecase) GetDrafts(ctx context.Context, userID string) ([]emaildomain.DraftItem, error) {
	_, creds, err := u.creds.ResolveCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids, err := u.provider.ListDraftIDs(ctx, creds, u.opts.DraftPreview)
	if err != nil {
		return nil, err
	}

	items := make([]emaildomain.DraftItem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.FetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			d, err := u.provider.GetDraft(gctx, creds, id)
			if err != nil {
				return err
			}
			item := emaildomain.DraftItem{ID: d.ID}
			if d.Message != nil {
				item.Subject = d.Message.Header("subject")
				item.Body = d.Message.Payload.PlainText()
				item.CreatedAt = d.Message.ReceivedAt()
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// receivedEmail loads emailID if userID received it and it is still in the inbox
func (u *emailUsecase) receivedEmail(ctx context.Context, userID, emailID string) (*authdomain.User, *emaildomain.Email, error) {
	user, err := u.findUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	email, err := u.repos.Emails.FindByID(ctx, emailID)
	if err != nil {
		return nil, nil, err
	}
	if email == nil || email.ToEmail != user.Email || email.DeletedByReceiver || email.IsDraft {
		return nil, nil, errors.Wrap(emaildomain.ErrNotFound, "email not found in inbox")
	}
	return user, email, nil
}

func (u *emailUsecase) MoveToSpam(ctx context.Context, userID, emailID string) error {
	_, email, err := u.receivedEmail(ctx, userID, emailID)
	if err != nil {
		return err
	}
	if err := u.mirrorLabels(ctx, userID, email, []string{emaildomain.LabelSpam}, []string{emaildomain.LabelInbox}); err != nil {
		return err
	}
	return u.repos.Spam.Mark(ctx, userID, emailID)
}

func (u *emailUsecase) RemoveFromSpam(ctx context.Context, userID, emailID string) error {
	if _, err := u.findUser(ctx, userID); err != nil {
		return err
	}
	removed, err := u.repos.Spam.Unmark(ctx, userID, emailID)
	if err != nil {
		return err
	}
	if !removed {
		return errors.Wrap(emaildomain.ErrNotFound, "email not found in spam")
	}

	if email, err := u.repos.Emails.FindByID(ctx, emailID); err == nil && email != nil {
		if err := u.mirrorLabels(ctx, userID, email, []string{emaildomain.LabelInbox}, []string{emaildomain.LabelSpam}); err != nil {
			u.log.Warnf("[Email] spam removal of %s not mirrored to provider: %v", emailID, err)
		}
	}
	return nil
}

// mirrorLabels applies a label change to the provider copy of a synced
// message. Local-only messages and users without credentials are skipped.
func (u *emailUsecase) mirrorLabels(ctx context.Context, userID string, email *emaildomain.Email, add, remove []string) error {
	if email.ProviderID() == "" {
		return nil
	}
	_, creds, err := u.creds.ResolveCredentials(ctx, userID)
	if err != nil {
		if errors.Is(err, emaildomain.ErrMissingCredentials) {
			return nil
		}
		return err
	}
	return u.provider.ModifyLabels(ctx, creds, email.ProviderID(), add, remove)
}

func (u *emailUsecase) GetTrash(ctx context.Context, userID string) ([]emaildomain.Email, error) {
	user, err := u.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.repos.Trash.ListForReceiver(ctx, user.Email)
}

func (u *emailUsecase) MoveToTrash(ctx context.Context, emailID, userID string) (*emaildomain.TrashEmail, error) {
	user, email, err := u.receivedEmail(ctx, userID, emailID)
	if err != nil {
		return nil, err
	}
	return u.repos.Trash.MoveToTrash(ctx, user.ID, email.ID)
}

func (u *emailUsecase) DeleteFromTrash(ctx context.Context, trashID string) error {
	deleted, err := u.repos.Trash.DeleteByID(ctx, trashID)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.Wrap(emaildomain.ErrNotFound, "email not found in trash")
	}
	return nil
}

// DeleteSentEmail removes the provider message and the local mirror row
func (u *emailUsecase) DeleteSentEmail(ctx context.Context, sentID string) error {
	sent, err := u.repos.Sent.FindByID(ctx, sentID)
	if err != nil {
		return err
	}
	if sent == nil {
		return errors.Wrap(emaildomain.ErrNotFound, "sent email not found")
	}

	if sent.GmailMessageID != nil {
		_, creds, err := u.creds.ResolveCredentials(ctx, sent.UserID)
		if err != nil {
			return err
		}
		err = u.provider.DeleteMessage(ctx, creds, *sent.GmailMessageID)
		var pe *emaildomain.ProviderError
		if err != nil && !(errors.As(err, &pe) && pe.Class == emaildomain.ProviderNotFound) {
			return err
		}
	}

	return u.repos.Sent.Delete(ctx, sentID)
}
