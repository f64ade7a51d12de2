package usecase

import (
	"net/mail"
	"strings"
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"
	emaildomain "mailmirror-backend/internal/email/domain"
)

// parseDate parses an RFC 5322 Date header. Absent or unparseable gives nil.
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := mail.ParseDate(value)
	if err != nil {
		// "... +0000 (UTC)"
		if i := strings.LastIndex(value, " ("); i > 0 {
			t, err = mail.ParseDate(value[:i])
		}
		if err != nil {
			return nil
		}
	}
	t = t.UTC()
	return &t
}

// messageToEmail maps an inbox or spam message. A missing To header falls
// back to the owner's address.
func messageToEmail(user *authdomain.User, msg *emaildomain.ProviderMessage) *emaildomain.Email {
	to := msg.Header("To")
	if to == "" {
		to = user.Email
	}
	id := msg.ID
	return &emaildomain.Email{
		Subject:        msg.Header("Subject"),
		Body:           msg.Payload.PlainText(),
		FromEmail:      msg.Header("From"),
		ToEmail:        to,
		SentAt:         parseDate(msg.Header("Date")),
		UserID:         user.ID,
		GmailMessageID: &id,
		ThreadID:       msg.ThreadID,
	}
}

func messageToSentEmail(user *authdomain.User, msg *emaildomain.ProviderMessage) *emaildomain.SentEmail {
	id := msg.ID
	return &emaildomain.SentEmail{
		UserID:         user.ID,
		Subject:        msg.Header("Subject"),
		Body:           msg.Payload.PlainText(),
		FromEmail:      msg.Header("From"),
		ToEmail:        msg.Header("To"),
		SentAt:         parseDate(msg.Header("Date")),
		GmailMessageID: &id,
		ThreadID:       msg.ThreadID,
	}
}

func providerDraftToDraft(user *authdomain.User, d *emaildomain.ProviderDraft, now time.Time) *emaildomain.Draft {
	id := d.ID
	draft := &emaildomain.Draft{
		UserID:       user.ID,
		LastEditedAt: now,
		GmailDraftID: &id,
	}
	if d.Message != nil {
		draft.Subject = d.Message.Header("Subject")
		draft.ToEmail = d.Message.Header("To")
		draft.Body = d.Message.Payload.PlainText()
	}
	return draft
}
