package repository

import (
	"context"
	"errors"

	emaildomain "mailmirror-backend/internal/email/domain"

	"gorm.io/gorm"
)

type sentEmailRepository struct {
	db *gorm.DB
}

func NewSentEmailRepository(db *gorm.DB) SentEmailRepository {
	return &sentEmailRepository{db: db}
}

func (r *sentEmailRepository) CreateIfAbsent(ctx context.Context, sent *emaildomain.SentEmail) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(onGmailMessageIDConflict).Create(sent)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sentEmailRepository) ExistsByGmailMessageID(ctx context.Context, gmailMessageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&emaildomain.SentEmail{}).
		Where("gmail_message_id = ?", gmailMessageID).
		Count(&count).Error
	return count > 0, err
}

func (r *sentEmailRepository) FindByID(ctx context.Context, id string) (*emaildomain.SentEmail, error) {
	var sent emaildomain.SentEmail
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sent, nil
}

func (r *sentEmailRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&emaildomain.SentEmail{}, "id = ?", id).Error
}
