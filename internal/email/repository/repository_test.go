package repository

import (
	"context"
	"testing"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestEmailRepository_CreateIfAbsent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEmailRepository(db)
	ctx := context.Background()

	created, err := repo.CreateIfAbsent(ctx, &emaildomain.Email{Subject: "Hi", GmailMessageID: strPtr("m1")})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, &emaildomain.Email{Subject: "Hi again", GmailMessageID: strPtr("m1")})
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := repo.ExistsByGmailMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, exists)

	var count int64
	require.NoError(t, db.Model(&emaildomain.Email{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEmailRepository_LocalRowsWithoutProviderID(t *testing.T) {
	repo := NewEmailRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &emaildomain.Email{Subject: "a"}))
	require.NoError(t, repo.Create(ctx, &emaildomain.Email{Subject: "b"}))

	emails, err := repo.ListAllWithLabels(ctx)
	require.NoError(t, err)
	assert.Len(t, emails, 2)
}

func TestEmailRepository_SentRepliesAndSearch(t *testing.T) {
	repo := NewEmailRepository(testutil.NewDB(t))
	ctx := context.Background()

	root := &emaildomain.Email{Subject: "Quarterly report", FromEmail: "a@x.com", ToEmail: "b@x.com"}
	require.NoError(t, repo.Create(ctx, root))
	reply := &emaildomain.Email{Subject: "Re: Quarterly report", FromEmail: "a@x.com", ToEmail: "b@x.com", ReplyToID: &root.ID}
	require.NoError(t, repo.Create(ctx, reply))
	require.NoError(t, repo.Create(ctx, &emaildomain.Email{Subject: "Quarterly draft", FromEmail: "a@x.com", IsDraft: true}))
	require.NoError(t, repo.Create(ctx, &emaildomain.Email{Subject: "Quarterly other", FromEmail: "c@x.com", ToEmail: "d@x.com"}))

	sent, err := repo.ListSentBy(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, sent, 2)
	for _, e := range sent {
		assert.Nil(t, e.ReplyToID)
	}

	replies, err := repo.ListReplies(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, reply.ID, replies[0].ID)

	found, err := repo.Search(ctx, "b@x.com", "Quarterly")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestEmailRepository_MarkRead(t *testing.T) {
	repo := NewEmailRepository(testutil.NewDB(t))
	ctx := context.Background()

	email := &emaildomain.Email{Subject: "x"}
	require.NoError(t, repo.Create(ctx, email))

	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkRead(ctx, email.ID, at))

	stored, err := repo.FindByID(ctx, email.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReadAt)
	assert.True(t, stored.ReadAt.Equal(at))

	assert.ErrorIs(t, repo.MarkRead(ctx, "missing", at), emaildomain.ErrNotFound)
}

func TestEmailRepository_MarkDeletedPurgesWhenBothPartiesDelete(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEmailRepository(db)
	labels := NewLabelRepository(db)
	spam := NewSpamRepository(db)
	ctx := context.Background()

	email := &emaildomain.Email{Subject: "x", FromEmail: "a@x.com", ToEmail: "b@x.com"}
	require.NoError(t, repo.Create(ctx, email))
	_, err := labels.LinkEmail(ctx, email.ID, "", []string{"Work"})
	require.NoError(t, err)
	require.NoError(t, spam.Mark(ctx, "u1", email.ID))

	purged, err := repo.MarkDeleted(ctx, email.ID, true, false)
	require.NoError(t, err)
	assert.False(t, purged)

	stored, err := repo.FindByID(ctx, email.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.DeletedBySender)
	assert.False(t, stored.DeletedByReceiver)

	purged, err = repo.MarkDeleted(ctx, email.ID, false, true)
	require.NoError(t, err)
	assert.True(t, purged)

	stored, err = repo.FindByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	var links, spamLinks int64
	require.NoError(t, db.Model(&emaildomain.EmailLabel{}).Count(&links).Error)
	require.NoError(t, db.Model(&emaildomain.SpamEmail{}).Count(&spamLinks).Error)
	assert.Zero(t, links)
	assert.Zero(t, spamLinks)

	_, err = repo.MarkDeleted(ctx, email.ID, true, true)
	assert.ErrorIs(t, err, emaildomain.ErrNotFound)
}

func TestSpamRepository_UpsertFromProvider(t *testing.T) {
	db := testutil.NewDB(t)
	emails := NewEmailRepository(db)
	repo := NewSpamRepository(db)
	ctx := context.Background()

	res, err := repo.UpsertFromProvider(ctx, "u1", &emaildomain.Email{Subject: "win", GmailMessageID: strPtr("s1")})
	require.NoError(t, err)
	assert.Equal(t, SpamUpsertResult{EmailCreated: true, LinkCreated: true}, res)

	res, err = repo.UpsertFromProvider(ctx, "u1", &emaildomain.Email{Subject: "win", GmailMessageID: strPtr("s1")})
	require.NoError(t, err)
	assert.Equal(t, SpamUpsertResult{}, res)

	// a message first imported from the inbox gets flagged
	inbox := &emaildomain.Email{Subject: "hello", GmailMessageID: strPtr("i1")}
	_, err = emails.CreateIfAbsent(ctx, inbox)
	require.NoError(t, err)

	res, err = repo.UpsertFromProvider(ctx, "u1", &emaildomain.Email{GmailMessageID: strPtr("i1")})
	require.NoError(t, err)
	assert.Equal(t, SpamUpsertResult{Flagged: true, LinkCreated: true}, res)

	stored, err := emails.FindByID(ctx, inbox.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsSpam)
	assert.Equal(t, "hello", stored.Subject)

	var links int64
	require.NoError(t, db.Model(&emaildomain.SpamEmail{}).Count(&links).Error)
	assert.Equal(t, int64(2), links)
}

func TestSpamRepository_MarkAndUnmark(t *testing.T) {
	db := testutil.NewDB(t)
	emails := NewEmailRepository(db)
	repo := NewSpamRepository(db)
	ctx := context.Background()

	email := &emaildomain.Email{Subject: "x"}
	require.NoError(t, emails.Create(ctx, email))

	require.NoError(t, repo.Mark(ctx, "u1", email.ID))
	require.NoError(t, repo.Mark(ctx, "u1", email.ID))

	var links int64
	require.NoError(t, db.Model(&emaildomain.SpamEmail{}).Count(&links).Error)
	assert.Equal(t, int64(1), links)

	assert.ErrorIs(t, repo.Mark(ctx, "u1", "missing"), emaildomain.ErrNotFound)

	removed, err := repo.Unmark(ctx, "u1", email.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	stored, err := emails.FindByID(ctx, email.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsSpam)

	removed, err = repo.Unmark(ctx, "u1", email.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestLabelRepository_EnsureAndLink(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewLabelRepository(db)
	ctx := context.Background()

	first, created, err := repo.Ensure(ctx, "", "Work")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.Ensure(ctx, "", "Work")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	// per-user namespace is separate from the shared one
	owned, created, err := repo.Ensure(ctx, "u1", "Work")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, owned.ID)

	linked, err := repo.LinkEmail(ctx, "e1", "", []string{"Work", "Travel"})
	require.NoError(t, err)
	assert.Equal(t, 2, linked)

	linked, err = repo.LinkEmail(ctx, "e1", "", []string{"Work", "Travel"})
	require.NoError(t, err)
	assert.Zero(t, linked)

	visible, err := repo.ListVisible(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	visible, err = repo.ListVisible(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, visible, 3)
}

func TestLabelRepository_CreateAttachDetach(t *testing.T) {
	repo := NewLabelRepository(testutil.NewDB(t))
	ctx := context.Background()

	label := &emaildomain.Label{Name: "Important"}
	require.NoError(t, repo.Create(ctx, label))
	assert.ErrorIs(t, repo.Create(ctx, &emaildomain.Label{Name: "Important"}), emaildomain.ErrConflict)

	found, err := repo.FindByID(ctx, label.ID)
	require.NoError(t, err)
	assert.Equal(t, "Important", found.Name)

	require.NoError(t, repo.Attach(ctx, "e1", label.ID))
	assert.ErrorIs(t, repo.Attach(ctx, "e1", label.ID), emaildomain.ErrConflict)

	require.NoError(t, repo.Detach(ctx, "e1", label.ID))
	assert.ErrorIs(t, repo.Detach(ctx, "e1", label.ID), emaildomain.ErrNotFound)
}

func TestDraftRepository_UpsertFromProvider(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewDraftRepository(db)
	ctx := context.Background()

	legacy := &emaildomain.Draft{UserID: "u1", Subject: "plan", Body: "body", ToEmail: ""}
	require.NoError(t, db.Create(legacy).Error)

	outcome, err := repo.UpsertFromProvider(ctx, &emaildomain.Draft{UserID: "u1", Subject: "plan", Body: "body", GmailDraftID: strPtr("d1")})
	require.NoError(t, err)
	assert.Equal(t, DraftAdopted, outcome)

	outcome, err = repo.UpsertFromProvider(ctx, &emaildomain.Draft{UserID: "u1", Subject: "plan", Body: "body", GmailDraftID: strPtr("d1")})
	require.NoError(t, err)
	assert.Equal(t, DraftSkipped, outcome)

	outcome, err = repo.UpsertFromProvider(ctx, &emaildomain.Draft{UserID: "u1", Subject: "plan", Body: "body", GmailDraftID: strPtr("d2")})
	require.NoError(t, err)
	assert.Equal(t, DraftCreated, outcome)

	drafts, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, drafts, 2)
}

func TestTrashRepository(t *testing.T) {
	db := testutil.NewDB(t)
	emails := NewEmailRepository(db)
	repo := NewTrashRepository(db)
	ctx := context.Background()

	email := &emaildomain.Email{Subject: "x", FromEmail: "a@x.com", ToEmail: "b@x.com"}
	require.NoError(t, emails.Create(ctx, email))

	trash, err := repo.MoveToTrash(ctx, "u1", email.ID)
	require.NoError(t, err)
	assert.Equal(t, email.ID, trash.EmailID)

	listed, err := repo.ListForReceiver(ctx, "b@x.com")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, email.ID, listed[0].ID)

	_, err = repo.MoveToTrash(ctx, "u1", "missing")
	assert.ErrorIs(t, err, emaildomain.ErrNotFound)

	deleted, err := repo.DeleteByID(ctx, trash.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteByID(ctx, trash.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSentEmailRepository(t *testing.T) {
	repo := NewSentEmailRepository(testutil.NewDB(t))
	ctx := context.Background()

	sent := &emaildomain.SentEmail{UserID: "u1", Subject: "x", GmailMessageID: strPtr("s1")}
	created, err := repo.CreateIfAbsent(ctx, sent)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, &emaildomain.SentEmail{UserID: "u1", GmailMessageID: strPtr("s1")})
	require.NoError(t, err)
	assert.False(t, created)

	found, err := repo.FindByID(ctx, sent.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	require.NoError(t, repo.Delete(ctx, sent.ID))
	exists, err := repo.ExistsByGmailMessageID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, exists)
}
