package usecase

import (
	"context"
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"
	emaildomain "mailmirror-backend/internal/email/domain"
	emailrepo "mailmirror-backend/internal/email/repository"
	syncdomain "mailmirror-backend/internal/mailsync/domain"
	"mailmirror-backend/pkg/logger"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// labelLinkBatch bounds how many messages are held in memory while linking labels.
const labelLinkBatch = 50

type Repositories struct {
	Emails emailrepo.EmailRepository
	Spam   emailrepo.SpamRepository
	Drafts emailrepo.DraftRepository
	Labels emailrepo.LabelRepository
	Sent   emailrepo.SentEmailRepository
}

type importer struct {
	creds    CredentialResolver
	provider emaildomain.MailProvider
	repos    Repositories
	opts     Options
	log      logger.Logger
	now      func() time.Time
}

func NewImporter(creds CredentialResolver, provider emaildomain.MailProvider, repos Repositories, opts Options, log logger.Logger) Importer {
	opts = opts.normalize()
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = func(op string, attempt int, wait time.Duration, err error) {
			log.Warnf("[Importer] %s failed (attempt %d), retrying in %s: %v", op, attempt, wait, err)
		}
	}
	return &importer{
		creds:    creds,
		provider: provider,
		repos:    repos,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// userRun carries what the steps of one user share.
type userRun struct {
	user  *authdomain.User
	creds emaildomain.Credentials
	// labelNames maps provider label ids to names; filled by the labels step.
	labelNames map[string]string
}

type stepFunc func(ctx context.Context, run *userRun) (syncdomain.StepResult, error)

func (im *importer) steps() []struct {
	name syncdomain.Step
	fn   stepFunc
} {
	return []struct {
		name syncdomain.Step
		fn   stepFunc
	}{
		{syncdomain.StepInbox, im.syncInbox},
		{syncdomain.StepSpam, im.syncSpam},
		{syncdomain.StepDrafts, im.syncDrafts},
		{syncdomain.StepLabels, im.syncLabels},
		{syncdomain.StepEmailLabels, im.syncEmailLabels},
		{syncdomain.StepSent, im.syncSent},
	}
}

func (im *importer) begin(ctx context.Context, userID string) (*userRun, error) {
	user, creds, err := im.creds.ResolveCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &userRun{user: user, creds: creds}, nil
}

func (im *importer) runStep(ctx context.Context, run *userRun, name syncdomain.Step, fn stepFunc) (syncdomain.StepResult, error) {
	start := time.Now()
	im.log.Debugf("[Importer] user %s: %s started", run.user.ID, name)

	res, err := fn(ctx, run)
	res.Step = name
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		im.log.Errorf("[Importer] user %s: %s failed (%s): %v", run.user.ID, name, emaildomain.KindOf(err), err)
		return res, errors.Wrapf(err, "%s", name)
	}

	im.log.Infof("[Importer] user %s: %s done listed=%d created=%d skipped=%d updated=%d linked=%d",
		run.user.ID, name, res.Listed, res.Created, res.Skipped, res.Updated, res.Linked)
	return res, nil
}

func (im *importer) single(ctx context.Context, userID string, name syncdomain.Step, fn stepFunc) (syncdomain.StepResult, error) {
	run, err := im.begin(ctx, userID)
	if err != nil {
		return syncdomain.StepResult{Step: name}, err
	}
	return im.runStep(ctx, run, name, fn)
}

func (im *importer) SyncInbox(ctx context.Context, userID string) (syncdomain.StepResult, error) {
	return im.single(ctx, userID, syncdomain.StepInbox, im.syncInbox)
}

func (im *importer) SyncSpam(ctx context.Context, userID string) (syncdomain.StepResult, error) {
	return im.single(ctx, userID, syncdomain.StepSpam, im.syncSpam)
}

func (im *importer) SyncDrafts(ctx context.Context, userID string) (syncdomain.StepResult, error) {
	return im.single(ctx, userID, syncdomain.StepDrafts, im.syncDrafts)
}

func (im *importer) SyncLabels(ctx context.Context, userID string) (syncdomain.StepResult, error) {
	return im.single(ctx, userID, syncdomain.StepLabels, im.syncLabels)
}

func (im *importer) SyncEmailLabels(ctx context.Context, userID string) (syncdomain.StepResult, error) {
	return im.single(ctx, userID, syncdomain.StepEmailLabels, im.syncEmailLabels)
}

func (im *importer) SyncSent(ctx context.Context, userID string) (syncdomain.StepResult, error) {
	return im.single(ctx, userID, syncdomain.StepSent, im.syncSent)
}

func (im *importer) SyncUser(ctx context.Context, userID string) ([]syncdomain.StepResult, error) {
	run, err := im.begin(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]syncdomain.StepResult, 0, 6)
	for _, step := range im.steps() {
		res, err := im.runStep(ctx, run, step.name, step.fn)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (im *importer) listMessageIDs(ctx context.Context, run *userRun, labelID string, max int64) ([]string, error) {
	var ids []string
	err := im.opts.Retry.Do(ctx, "list "+labelID, func(ctx context.Context) error {
		var err error
		ids, err = im.provider.ListMessageIDs(ctx, run.creds, labelID, max)
		return err
	})
	return ids, err
}

// fetchOrdered fetches ids with bounded concurrency and returns the kept
// results in the order of ids. The first error cancels the rest.
func fetchOrdered[T any](ctx context.Context, limit int, ids []string, fetch func(ctx context.Context, id string) (T, bool, error)) ([]T, error) {
	got := make([]T, len(ids))
	keep := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			v, ok, err := fetch(gctx, id)
			if err != nil {
				return err
			}
			got[i], keep[i] = v, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for i := range got {
		if keep[i] {
			out = append(out, got[i])
		}
	}
	return out, nil
}

// fetchMessages gets message details. With skipMissing, messages the provider
// no longer has are dropped instead of failing the step.
func (im *importer) fetchMessages(ctx context.Context, run *userRun, ids []string, skipMissing bool) ([]*emaildomain.ProviderMessage, error) {
	return fetchOrdered(ctx, im.opts.FetchConcurrency, ids, func(ctx context.Context, id string) (*emaildomain.ProviderMessage, bool, error) {
		var msg *emaildomain.ProviderMessage
		err := im.opts.Retry.Do(ctx, "get message "+id, func(ctx context.Context) error {
			var err error
			msg, err = im.provider.GetMessage(ctx, run.creds, id)
			return err
		})
		if err != nil {
			if skipMissing && isProviderNotFound(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return msg, true, nil
	})
}

func isProviderNotFound(err error) bool {
	var pe *emaildomain.ProviderError
	return errors.As(err, &pe) && pe.Class == emaildomain.ProviderNotFound
}

func (im *importer) syncInbox(ctx context.Context, run *userRun) (syncdomain.StepResult, error) {
	var res syncdomain.StepResult

	ids, err := im.listMessageIDs(ctx, run, emaildomain.LabelInbox, im.opts.InboxLimit)
	if err != nil {
		return res, err
	}
	res.Listed = len(ids)

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		exists, err := im.repos.Emails.ExistsByGmailMessageID(ctx, id)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped++
			continue
		}
		missing = append(missing, id)
	}

	msgs, err := im.fetchMessages(ctx, run, missing, false)
	if err != nil {
		return res, err
	}

	for _, msg := range msgs {
		created, err := im.repos.Emails.CreateIfAbsent(ctx, messageToEmail(run.user, msg))
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

func (im *importer) syncSpam(ctx context.Context, run *userRun) (syncdomain.StepResult, error) {
	var res syncdomain.StepResult

	ids, err := im.listMessageIDs(ctx, run, emaildomain.LabelSpam, im.opts.SpamLimit)
	if err != nil {
		return res, err
	}
	res.Listed = len(ids)

	// Known messages only need their flag and link; fetch the rest.
	known := make(map[string]bool, len(ids))
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		exists, err := im.repos.Emails.ExistsByGmailMessageID(ctx, id)
		if err != nil {
			return res, err
		}
		if exists {
			known[id] = true
		} else {
			missing = append(missing, id)
		}
	}

	msgs, err := im.fetchMessages(ctx, run, missing, false)
	if err != nil {
		return res, err
	}
	fetched := make(map[string]*emaildomain.ProviderMessage, len(msgs))
	for _, msg := range msgs {
		fetched[msg.ID] = msg
	}

	for _, id := range ids {
		var email *emaildomain.Email
		switch {
		case known[id]:
			providerID := id
			email = &emaildomain.Email{UserID: run.user.ID, GmailMessageID: &providerID}
		case fetched[id] != nil:
			email = messageToEmail(run.user, fetched[id])
		default:
			continue
		}

		out, err := im.repos.Spam.UpsertFromProvider(ctx, run.user.ID, email)
		if err != nil {
			return res, err
		}
		if out.EmailCreated {
			res.Created++
		}
		if out.Flagged {
			res.Updated++
		}
		if out.LinkCreated {
			res.Linked++
		}
		if !out.EmailCreated && !out.Flagged && !out.LinkCreated {
			res.Skipped++
		}
	}
	return res, nil
}

func (im *importer) syncDrafts(ctx context.Context, run *userRun) (syncdomain.StepResult, error) {
	var res syncdomain.StepResult

	var ids []string
	err := im.opts.Retry.Do(ctx, "list drafts", func(ctx context.Context) error {
		var err error
		ids, err = im.provider.ListDraftIDs(ctx, run.creds, im.opts.DraftLimit)
		return err
	})
	if err != nil {
		return res, err
	}
	res.Listed = len(ids)

	drafts, err := fetchOrdered(ctx, im.opts.FetchConcurrency, ids, func(ctx context.Context, id string) (*emaildomain.ProviderDraft, bool, error) {
		var d *emaildomain.ProviderDraft
		err := im.opts.Retry.Do(ctx, "get draft "+id, func(ctx context.Context) error {
			var err error
			d, err = im.provider.GetDraft(ctx, run.creds, id)
			return err
		})
		return d, err == nil, err
	})
	if err != nil {
		return res, err
	}

	now := im.now()
	for _, d := range drafts {
		outcome, err := im.repos.Drafts.UpsertFromProvider(ctx, providerDraftToDraft(run.user, d, now))
		if err != nil {
			return res, err
		}
		switch outcome {
		case emailrepo.DraftCreated:
			res.Created++
		case emailrepo.DraftAdopted:
			res.Updated++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func (im *importer) loadLabelNames(ctx context.Context, run *userRun) ([]emaildomain.ProviderLabel, error) {
	var labels []emaildomain.ProviderLabel
	err := im.opts.Retry.Do(ctx, "list labels", func(ctx context.Context) error {
		var err error
		labels, err = im.provider.ListLabels(ctx, run.creds)
		return err
	})
	if err != nil {
		return nil, err
	}

	run.labelNames = make(map[string]string, len(labels))
	for _, l := range labels {
		run.labelNames[l.ID] = l.Name
	}
	return labels, nil
}

func (im *importer) syncLabels(ctx context.Context, run *userRun) (syncdomain.StepResult, error) {
	var res syncdomain.StepResult

	labels, err := im.loadLabelNames(ctx, run)
	if err != nil {
		return res, err
	}
	res.Listed = len(labels)

	owner := emaildomain.LabelOwner(im.opts.LabelScope, run.user.ID)
	for _, l := range labels {
		if l.Name == "" {
			res.Skipped++
			continue
		}
		_, created, err := im.repos.Labels.Ensure(ctx, owner, l.Name)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

// labelNamesFor resolves provider label ids; unknown ids are used verbatim,
// which matches system labels whose id is their name.
func (run *userRun) labelNamesFor(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := run.labelNames[id]; ok && name != "" {
			names = append(names, name)
		} else if id != "" {
			names = append(names, id)
		}
	}
	return names
}

func (im *importer) syncEmailLabels(ctx context.Context, run *userRun) (syncdomain.StepResult, error) {
	var res syncdomain.StepResult

	if run.labelNames == nil {
		if _, err := im.loadLabelNames(ctx, run); err != nil {
			return res, err
		}
	}

	emails, err := im.repos.Emails.ListSyncedByUser(ctx, run.user.ID)
	if err != nil {
		return res, err
	}
	res.Listed = len(emails)

	owner := emaildomain.LabelOwner(im.opts.LabelScope, run.user.ID)
	for start := 0; start < len(emails); start += labelLinkBatch {
		end := min(start+labelLinkBatch, len(emails))
		batch := emails[start:end]

		byProviderID := make(map[string]string, len(batch))
		ids := make([]string, 0, len(batch))
		for _, e := range batch {
			byProviderID[e.ProviderID()] = e.ID
			ids = append(ids, e.ProviderID())
		}

		msgs, err := im.fetchMessages(ctx, run, ids, true)
		if err != nil {
			return res, err
		}
		res.Skipped += len(ids) - len(msgs)

		for _, msg := range msgs {
			linked, err := im.repos.Labels.LinkEmail(ctx, byProviderID[msg.ID], owner, run.labelNamesFor(msg.LabelIDs))
			if err != nil {
				return res, err
			}
			res.Linked += linked
		}
	}
	return res, nil
}

func (im *importer) syncSent(ctx context.Context, run *userRun) (syncdomain.StepResult, error) {
	var res syncdomain.StepResult

	ids, err := im.listMessageIDs(ctx, run, emaildomain.LabelSent, im.opts.SentLimit)
	if err != nil {
		return res, err
	}
	res.Listed = len(ids)

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		exists, err := im.repos.Sent.ExistsByGmailMessageID(ctx, id)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped++
			continue
		}
		missing = append(missing, id)
	}

	msgs, err := im.fetchMessages(ctx, run, missing, false)
	if err != nil {
		return res, err
	}

	for _, msg := range msgs {
		created, err := im.repos.Sent.CreateIfAbsent(ctx, messageToSentEmail(run.user, msg))
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}
