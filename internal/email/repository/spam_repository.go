package repository

import (
	"context"
	"errors"

	emaildomain "mailmirror-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type spamRepository struct {
	db *gorm.DB
}

func NewSpamRepository(db *gorm.DB) SpamRepository {
	return &spamRepository{db: db}
}

var onSpamLinkConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "user_id"}, {Name: "email_id"}},
	DoNothing: true,
}

func (r *spamRepository) UpsertFromProvider(ctx context.Context, userID string, email *emaildomain.Email) (SpamUpsertResult, error) {
	var out SpamUpsertResult
	if email.GmailMessageID == nil {
		return out, errors.New("spam upsert needs a provider message id")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		email.IsSpam = true
		res := tx.Clauses(onGmailMessageIDConflict).Create(email)
		if res.Error != nil {
			return res.Error
		}
		out.EmailCreated = res.RowsAffected > 0

		var stored emaildomain.Email
		if err := tx.Where("gmail_message_id = ?", *email.GmailMessageID).First(&stored).Error; err != nil {
			return err
		}

		if !stored.IsSpam {
			if err := tx.Model(&emaildomain.Email{}).Where("id = ?", stored.ID).Update("is_spam", true).Error; err != nil {
				return err
			}
			stored.IsSpam = true
			out.Flagged = true
		}

		res = tx.Clauses(onSpamLinkConflict).Create(&emaildomain.SpamEmail{UserID: userID, EmailID: stored.ID})
		if res.Error != nil {
			return res.Error
		}
		out.LinkCreated = res.RowsAffected > 0

		*email = stored
		return nil
	})
	return out, err
}

// Mark flags emailID as spam for userID. Marking twice keeps a single link.
func (r *spamRepository) Mark(ctx context.Context, userID, emailID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&emaildomain.Email{}).Where("id = ?", emailID).Update("is_spam", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return emaildomain.ErrNotFound
		}
		return tx.Clauses(onSpamLinkConflict).Create(&emaildomain.SpamEmail{UserID: userID, EmailID: emailID}).Error
	})
}

// Unmark removes the spam link and clears the flag. It reports whether a link existed.
func (r *spamRepository) Unmark(ctx context.Context, userID, emailID string) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND email_id = ?", userID, emailID).Delete(&emaildomain.SpamEmail{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&emaildomain.Email{}).Where("id = ?", emailID).Update("is_spam", false).Error
	})
	return removed, err
}
