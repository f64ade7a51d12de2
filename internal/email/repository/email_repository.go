package repository

import (
	"context"
	"errors"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{db: db}
}

var onGmailMessageIDConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "gmail_message_id"}},
	DoNothing: true,
}

func (r *emailRepository) Create(ctx context.Context, email *emaildomain.Email) error {
	return r.db.WithContext(ctx).Create(email).Error
}

func (r *emailRepository) CreateIfAbsent(ctx context.Context, email *emaildomain.Email) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(onGmailMessageIDConflict).Create(email)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *emailRepository) FindByID(ctx context.Context, id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) ExistsByGmailMessageID(ctx context.Context, gmailMessageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&emaildomain.Email{}).
		Where("gmail_message_id = ?", gmailMessageID).
		Count(&count).Error
	return count > 0, err
}

// ListSyncedByUser returns the user's rows that came from the provider
func (r *emailRepository) ListSyncedByUser(ctx context.Context, userID string) ([]emaildomain.Email, error) {
	var emails []emaildomain.Email
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND gmail_message_id IS NOT NULL", userID).
		Order("created_at ASC").
		Find(&emails).Error
	return emails, err
}

func (r *emailRepository) ListAllWithLabels(ctx context.Context) ([]emaildomain.Email, error) {
	var emails []emaildomain.Email
	err := r.db.WithContext(ctx).Preload("Labels").Order("created_at DESC").Find(&emails).Error
	return emails, err
}

// ListSentBy returns top-level messages sent from fromEmail that the sender has not deleted
func (r *emailRepository) ListSentBy(ctx context.Context, fromEmail string) ([]emaildomain.Email, error) {
	var emails []emaildomain.Email
	err := r.db.WithContext(ctx).
		Where("from_email = ? AND deleted_by_sender = ? AND reply_to_id IS NULL", fromEmail, false).
		Order("created_at DESC").
		Find(&emails).Error
	return emails, err
}

func (r *emailRepository) ListReplies(ctx context.Context, emailID string) ([]emaildomain.Email, error) {
	var emails []emaildomain.Email
	err := r.db.WithContext(ctx).
		Where("reply_to_id = ?", emailID).
		Order("created_at ASC").
		Find(&emails).Error
	return emails, err
}

// Search matches the subject of non-draft messages the user sent or received
func (r *emailRepository) Search(ctx context.Context, userEmail, query string) ([]emaildomain.Email, error) {
	var emails []emaildomain.Email
	err := r.db.WithContext(ctx).
		Where("subject LIKE ?", "%"+query+"%").
		Where("to_email = ? OR from_email = ?", userEmail, userEmail).
		Where("is_draft = ?", false).
		Order("created_at DESC").
		Find(&emails).Error
	return emails, err
}

func (r *emailRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&emaildomain.Email{}).Where("id = ?", id).Update("read_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return emaildomain.ErrNotFound
	}
	return nil
}

func (r *emailRepository) MarkDeleted(ctx context.Context, id string, bySender, byReceiver bool) (bool, error) {
	purged := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var email emaildomain.Email
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&email).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return emaildomain.ErrNotFound
			}
			return err
		}

		email.DeletedBySender = email.DeletedBySender || bySender
		email.DeletedByReceiver = email.DeletedByReceiver || byReceiver

		if !email.DeletedBySender || !email.DeletedByReceiver {
			return tx.Model(&emaildomain.Email{}).Where("id = ?", id).Updates(map[string]interface{}{
				"deleted_by_sender":   email.DeletedBySender,
				"deleted_by_receiver": email.DeletedByReceiver,
			}).Error
		}

		// Both parties gone: drop the row and everything pointing at it.
		for _, model := range []interface{}{&emaildomain.EmailLabel{}, &emaildomain.SpamEmail{}, &emaildomain.TrashEmail{}} {
			if err := tx.Where("email_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&emaildomain.Email{}, "id = ?", id).Error; err != nil {
			return err
		}
		purged = true
		return nil
	})
	return purged, err
}
