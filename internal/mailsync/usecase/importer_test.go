package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	authrepo "mailmirror-backend/internal/auth/repository"
	authusecase "mailmirror-backend/internal/auth/usecase"
	emaildomain "mailmirror-backend/internal/email/domain"
	emailrepo "mailmirror-backend/internal/email/repository"
	syncdomain "mailmirror-backend/internal/mailsync/domain"
	"mailmirror-backend/internal/testutil"
	"mailmirror-backend/pkg/config"
	"mailmirror-backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const firstJan = "Mon, 1 Jan 2024 10:00:00 GMT"

type importerFixture struct {
	db       *gorm.DB
	provider *testutil.FakeProvider
	auth     authusecase.AuthUsecase
	importer Importer
	users    authrepo.UserRepository
}

func newImporterFixture(t *testing.T, mutate func(*Options)) *importerFixture {
	t.Helper()

	db := testutil.NewDB(t)
	users := authrepo.NewUserRepository(db)
	auth := authusecase.NewAuthUsecase(users, authrepo.NewCredentialRepository(db), &config.Config{JWTSecret: "test", JWTAccessExpiry: time.Hour}, logger.NewNop())
	provider := testutil.NewFakeProvider()

	opts := DefaultOptions()
	opts.Retry.MinDelay = time.Millisecond
	opts.Retry.MaxDelay = 2 * time.Millisecond
	if mutate != nil {
		mutate(&opts)
	}

	imp := NewImporter(auth, provider, Repositories{
		Emails: emailrepo.NewEmailRepository(db),
		Spam:   emailrepo.NewSpamRepository(db),
		Drafts: emailrepo.NewDraftRepository(db),
		Labels: emailrepo.NewLabelRepository(db),
		Sent:   emailrepo.NewSentEmailRepository(db),
	}, opts, logger.NewNop())

	return &importerFixture{db: db, provider: provider, auth: auth, importer: imp, users: users}
}

func (f *importerFixture) userWithCredentials(t *testing.T, email string) string {
	t.Helper()
	user := testutil.CreateUser(t, f.db, email)
	testutil.CreateCredential(t, f.db, user.ID, "access", "refresh")
	return user.ID
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestSyncInbox_StoresMessage(t *testing.T) {
	f := newImporterFixture(t, nil)
	userID := f.userWithCredentials(t, "owner@x.com")
	f.provider.AddMessage(testutil.Message("m1", "Hi", "a@x.com", "b@x.com", firstJan, "hello", emaildomain.LabelInbox))

	res, err := f.importer.SyncInbox(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, syncdomain.StepInbox, res.Step)
	assert.Equal(t, 1, res.Listed)
	assert.Equal(t, 1, res.Created)

	var email emaildomain.Email
	require.NoError(t, f.db.Where("gmail_message_id = ?", "m1").First(&email).Error)
	assert.Equal(t, "Hi", email.Subject)
	assert.Equal(t, "a@x.com", email.FromEmail)
	assert.Equal(t, "b@x.com", email.ToEmail)
	assert.Equal(t, "hello", email.Body)
	assert.Equal(t, userID, email.UserID)
	assert.False(t, email.IsDraft)
	assert.False(t, email.IsSpam)
	require.NotNil(t, email.GmailMessageID)
	assert.Equal(t, "m1", *email.GmailMessageID)
	assert.Equal(t, "t-m1", email.ThreadID)
	require.NotNil(t, email.SentAt)
	assert.True(t, email.SentAt.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
}

func TestSyncInbox_DecodesDeclaredCharset(t *testing.T) {
	f := newImporterFixture(t, nil)
	userID := f.userWithCredentials(t, "owner@x.com")

	latin1 := testutil.Message("m1", "Hi", "a@x.com", "b@x.com", firstJan, "", emaildomain.LabelInbox)
	latin1.Headers[0].Value = "Hi\x00 there"
	latin1.Payload.Charset = "iso-8859-1"
	latin1.Payload.Data = base64.URLEncoding.EncodeToString([]byte("caf\xe9 \x00ol\xe9"))
	f.provider.AddMessage(latin1)

	undeclared := testutil.Message("m2", "Hi", "a@x.com", "b@x.com", firstJan, "", emaildomain.LabelInbox)
	undeclared.Payload.Data = base64.URLEncoding.EncodeToString([]byte("bad \xff\xfe byte\x00"))
	f.provider.AddMessage(undeclared)

	res, err := f.importer.SyncInbox(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	var first, second emaildomain.Email
	require.NoError(t, f.db.Where("gmail_message_id = ?", "m1").First(&first).Error)
	assert.Equal(t, "café olé", first.Body)
	assert.Equal(t, "Hi there", first.Subject)

	require.NoError(t, f.db.Where("gmail_message_id = ?", "m2").First(&second).Error)
	assert.True(t, utf8.ValidString(second.Body))
	assert.NotContains(t, second.Body, "\x00")
	assert.Equal(t, "bad \uFFFD byte", second.Body)
}

func TestSyncInbox_MissingToFallsBackToOwner(t *testing.T) {
	f := newImporterFixture(t, nil)
	userID := f.userWithCredentials(t, "owner@x.com")
	f.provider.AddMessage(testutil.Message("m1", "Hi", "a@x.com", "", "not a date", "hello", emaildomain.LabelInbox))

	_, err := f.importer.SyncInbox(context.Background(), userID)
	require.NoError(t, err)

	var email emaildomain.Email
	require.NoError(t, f.db.Where("gmail_message_id = ?", "m1").First(&email).Error)
	assert.Equal(t, "owner@x.com", email.ToEmail)
	assert.Nil(t, email.SentAt)
}

func TestSyncUser_IsIdempotent(t *testing.T) {
	f := newImporterFixture(t, nil)
	userID := f.userWithCredentials(t, "owner@x.com")
	f.provider.AddMessage(testutil.Message("m1", "Hi", "a@x.com", "owner@x.com", firstJan, "hello", emaildomain.LabelInbox, "Label_1"))
	f.provider.AddMessage(testutil.Message("m2", "Win", "spam@x.com", "owner@x.com", firstJan, "prize", emaildomain.LabelSpam))
	f.provider.AddMessage(testutil.Message("m3", "Out", "owner@x.com", "c@x.com", firstJan, "bye", emaildomain.LabelSent))
	f.provider.AddDraft(&emaildomain.ProviderDraft{ID: "d1", Message: testutil.Message("dm1", "Plan", "owner@x.com", "c@x.com", "", "todo")})
	f.provider.SetLabels(
		emaildomain.ProviderLabel{ID: emaildomain.LabelInbox, Name: "INBOX", Type: "system"},
		emaildomain.ProviderLabel{ID: "Label_1", Name: "Work", Type: "user"},
	)

	ctx := context.Background()
	steps, err := f.importer.SyncUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, steps, 6)

	emails := count(t, f.db, &emaildomain.Email{})
	spam := count(t, f.db, &emaildomain.SpamEmail{})
	drafts := count(t, f.db, &emaildomain.Draft{})
	labels := count(t, f.db, &emaildomain.Label{})
	links := count(t, f.db, &emaildomain.EmailLabel{})
	sent := count(t, f.db, &emaildomain.SentEmail{})

	assert.Equal(t, int64(2), emails)
	assert.Equal(t, int64(1), spam)
	assert.Equal(t, int64(1), drafts)
	assert.Equal(t, int64(3), labels) // INBOX, Work and SPAM from linking m2
	assert.Equal(t, int64(3), links)
	assert.Equal(t, int64(1), sent)

	steps, err = f.importer.SyncUser(ctx, userID)
	require.NoError(t, err)
	for _, s := range steps {
		assert.Zero(t, s.Created, s.Step)
		assert.Zero(t, s.Linked, s.Step)
		assert.Zero(t, s.Updated, s.Step)
	}

	assert.Equal(t, emails, count(t, f.db, &emaildomain.Email{}))
	assert.Equal(t, spam, count(t, f.db, &emaildomain.SpamEmail{}))
	assert.Equal(t, drafts, count(t, f.db, &emaildomain.Draft{}))
	assert.Equal(t, labels, count(t, f.db, &emaildomain.Label{}))
	assert.Equal(t, links, count(t, f.db, &emaildomain.EmailLabel{}))
	assert.Equal(t, sent, count(t, f.db, &emaildomain.SentEmail{}))
}

func TestSyncSpam_FlagsInboxMessageWithSingleLink(t *testing.T) {
	f := newImporterFixture(t, nil)
	userID := f.userWithCredentials(t, "owner@x.com")
	f.provider.AddMessage(testutil.Message("m1", "Hi", "a@x.com", "owner@x.com", firstJan, "hello", emaildomain.LabelInbox, emaildomain.LabelSpam))

	ctx := context.Background()
	_, err := f.importer.SyncInbox(ctx, userID)
	require.NoError(t, err)

	res, err := f.importer.SyncSpam(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Linked)
	assert.Equal(t, 1, f.provider.CallCount("get:m1"), "known spam message is not fetched again")

	res, err = f.importer.SyncSpam(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	var email emaildomain.Email
	require.NoError(t, f.db.Where("gmail_message_id = ?", "m1").First(&email).Error)
	assert.True(t, email.IsSpam)
	assert.Equal(t, int64(1), count(t, f.db, &emaildomain.Email{}))
	assert.Equal(t, int64(1), count(t, f.db, &emaildomain.SpamEmail{}))
}

func TestSyncLabels_SharedAcrossUsersInGlobalScope(t *testing.T) {
	f := newImporterFixture(t, nil)
	alice := f.userWithCredentials(t, "alice@x.com")
	bob := f.userWithCredentials(t, "bob@x.com")
	f.provider.SetLabels(
		emaildomain.ProviderLabel{ID: "Label_1", Name: "Work"},
		emaildomain.ProviderLabel{ID: "Label_2", Name: ""},
	)

	ctx := context.Background()
	res, err := f.importer.SyncLabels(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)

	res, err = f.importer.SyncLabels(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)

	assert.Equal(t, int64(1), count(t, f.db, &emaildomain.Label{}))
}

func TestSyncLabels_PerUserScope(t *testing.T) {
	f := newImporterFixture(t, func(o *Options) { o.LabelScope = emaildomain.LabelScopeUser })
	alice := f.userWithCredentials(t, "alice@x.com")
	bob := f.userWithCredentials(t, "bob@x.com")
	f.provider.SetLabels(emaildomain.ProviderLabel{ID: "Label_1", Name: "Work"})

	ctx := context.Background()
	_, err := f.importer.SyncLabels(ctx, alice)
	require.NoError(t, err)
	_, err = f.importer.SyncLabels(ctx, bob)
	require.NoError(t, err)

	assert.Equal(t, int64(2), count(t, f.db, &emaildomain.Label{}))
}

func TestSyncEmailLabels_SkipsMessagesGoneFromProvider(t *testing.T) {
	f := newImporterFixture(t, nil)
	userID := f.userWithCredentials(t, "owner@x.com")
	f.provider.AddMessage(testutil.Message("m1", "Hi", "a@x.com", "owner@x.com", firstJan, "hello", emaildomain.LabelInbox))
	f.provider.AddMessage(testutil.Message("m2", "Yo", "a@x.com", "owner@x.com", firstJan, "hey", emaildomain.LabelInbox, "Label_9"))

	ctx := context.Background()
	_, err := f.importer.SyncInbox(ctx, userID)
	require.NoError(t, err)
	f.provider.RemoveMessage("m1")

	res, err := f.importer.SyncEmailLabels(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Listed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Linked)

	// unknown label ids are stored under their id
	var label emaildomain.Label
	require.NoError(t, f.db.Where("name = ?", "Label_9").First(&label).Error)
}

func TestSyncDrafts_UsesProviderDraftID(t *testing.T) {
	f := newImporterFixture(t, nil)
	userID := f.userWithCredentials(t, "owner@x.com")
	f.provider.AddDraft(&emaildomain.ProviderDraft{ID: "d1", Message: testutil.Message("dm1", "Plan", "owner@x.com", "c@x.com", "", "todo")})
	f.provider.AddDraft(&emaildomain.ProviderDraft{ID: "d2", Message: testutil.Message("dm2", "Plan", "owner@x.com", "c@x.com", "", "todo")})

	res, err := f.importer.SyncDrafts(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	var drafts []emaildomain.Draft
	require.NoError(t, f.db.Order("gmail_draft_id").Find(&drafts).Error)
	require.Len(t, drafts, 2)
	assert.Equal(t, "Plan", drafts[0].Subject)
	assert.Equal(t, "c@x.com", drafts[0].ToEmail)
	assert.Equal(t, "todo", drafts[0].Body)
}

func TestSyncUser_MissingCredentials(t *testing.T) {
	f := newImporterFixture(t, nil)
	user := testutil.CreateUser(t, f.db, "nocreds@x.com")

	_, err := f.importer.SyncUser(context.Background(), user.ID)
	require.Error(t, err)
	assert.Equal(t, emaildomain.KindMissingCredentials, emaildomain.KindOf(err))
	assert.Zero(t, f.provider.CallCount("list:"+emaildomain.LabelInbox))
}

func TestSyncUser_UnknownUser(t *testing.T) {
	f := newImporterFixture(t, nil)

	_, err := f.importer.SyncUser(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, emaildomain.KindNotFound, emaildomain.KindOf(err))
}

func TestSyncInbox_RetriesTransientErrors(t *testing.T) {
	f := newImporterFixture(t, nil)
	userID := f.userWithCredentials(t, "owner@x.com")
	f.provider.AddMessage(testutil.Message("m1", "Hi", "a@x.com", "owner@x.com", firstJan, "hello", emaildomain.LabelInbox))
	f.provider.Fail("list:"+emaildomain.LabelInbox, &emaildomain.ProviderError{
		Op: "messages.list", Code: 503, Class: emaildomain.ProviderTransient, Retryable: true, Err: errors.New("unavailable"),
	}, 2)

	res, err := f.importer.SyncInbox(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 3, f.provider.CallCount("list:"+emaildomain.LabelInbox))
}

func TestSyncUser_StopsAtFailingStep(t *testing.T) {
	f := newImporterFixture(t, nil)
	userID := f.userWithCredentials(t, "owner@x.com")
	f.provider.Fail("list:"+emaildomain.LabelSpam, &emaildomain.ProviderError{
		Op: "messages.list", Code: 401, Class: emaildomain.ProviderAuth, Err: errors.New("invalid_grant"),
	}, -1)

	steps, err := f.importer.SyncUser(context.Background(), userID)
	require.Error(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, syncdomain.StepSpam, steps[1].Step)
	assert.Equal(t, 1, f.provider.CallCount("list:"+emaildomain.LabelSpam), "auth errors are not retried")
	assert.Zero(t, f.provider.CallCount("drafts"))
}
