package repository

import (
	"context"
	"errors"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"

	"gorm.io/gorm"
)

type trashRepository struct {
	db *gorm.DB
}

func NewTrashRepository(db *gorm.DB) TrashRepository {
	return &trashRepository{db: db}
}

// ListForReceiver returns received messages the receiver moved to trash
func (r *trashRepository) ListForReceiver(ctx context.Context, userEmail string) ([]emaildomain.Email, error) {
	var emails []emaildomain.Email
	err := r.db.WithContext(ctx).
		Where("to_email = ? AND deleted_by_receiver = ? AND is_draft = ?", userEmail, true, false).
		Order("updated_at DESC").
		Find(&emails).Error
	return emails, err
}

func (r *trashRepository) MoveToTrash(ctx context.Context, userID, emailID string) (*emaildomain.TrashEmail, error) {
	trash := &emaildomain.TrashEmail{
		UserID:    userID,
		EmailID:   emailID,
		DeletedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&emaildomain.Email{}).Where("id = ?", emailID).Update("deleted_by_receiver", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return emaildomain.ErrNotFound
		}
		return tx.Create(trash).Error
	})
	if err != nil {
		return nil, err
	}
	return trash, nil
}

func (r *trashRepository) DeleteByID(ctx context.Context, trashID string) (bool, error) {
	var trash emaildomain.TrashEmail
	err := r.db.WithContext(ctx).Where("id = ?", trashID).First(&trash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := r.db.WithContext(ctx).Delete(&trash).Error; err != nil {
		return false, err
	}
	return true, nil
}
