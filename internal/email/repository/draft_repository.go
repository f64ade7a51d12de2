package repository

import (
	"context"
	"errors"

	emaildomain "mailmirror-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type draftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

// UpsertFromProvider keys drafts on the provider draft id. A legacy row with no
// provider id and identical (user, subject, to, body) is adopted instead of
// duplicated.
func (r *draftRepository) UpsertFromProvider(ctx context.Context, draft *emaildomain.Draft) (DraftOutcome, error) {
	if draft.GmailDraftID == nil {
		return "", errors.New("draft upsert needs a provider draft id")
	}

	var outcome DraftOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&emaildomain.Draft{}).Where("gmail_draft_id = ?", *draft.GmailDraftID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			outcome = DraftSkipped
			return nil
		}

		var legacy emaildomain.Draft
		err := tx.Where("user_id = ? AND subject = ? AND to_email = ? AND body = ? AND gmail_draft_id IS NULL",
			draft.UserID, draft.Subject, draft.ToEmail, draft.Body).
			First(&legacy).Error
		if err == nil {
			outcome = DraftAdopted
			return tx.Model(&legacy).Update("gmail_draft_id", *draft.GmailDraftID).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gmail_draft_id"}},
			DoNothing: true,
		}).Create(draft)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			outcome = DraftCreated
		} else {
			outcome = DraftSkipped
		}
		return nil
	})
	return outcome, err
}

func (r *draftRepository) ListByUser(ctx context.Context, userID string) ([]emaildomain.Draft, error) {
	var drafts []emaildomain.Draft
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_edited_at DESC").Find(&drafts).Error
	return drafts, err
}
