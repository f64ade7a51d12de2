package repository

import (
	"context"
	"errors"
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type credentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{
		db: db,
	}
}

func (r *credentialRepository) FindByUserID(ctx context.Context, userID string) (*authdomain.GoogleCredential, error) {
	var cred authdomain.GoogleCredential
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

// Upsert saves the token pair of a user (atomic upsert on user_id)
func (r *credentialRepository) Upsert(ctx context.Context, cred *authdomain.GoogleCredential) error {
	now := time.Now()
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	cred.CreatedAt = now
	cred.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "token_expiry", "updated_at"}),
	}).Create(cred).Error
}

// UpdateTokens persists a refreshed token. An empty refresh token keeps the stored one.
func (r *credentialRepository) UpdateTokens(ctx context.Context, userID string, token *oauth2.Token) error {
	updates := map[string]interface{}{
		"access_token": token.AccessToken,
		"token_expiry": token.Expiry,
		"updated_at":   time.Now(),
	}
	if token.RefreshToken != "" {
		updates["refresh_token"] = token.RefreshToken
	}
	return r.db.WithContext(ctx).Model(&authdomain.GoogleCredential{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}
