package repository

import (
	"context"

	authdomain "mailmirror-backend/internal/auth/domain"

	"golang.org/x/oauth2"
)

// UserRepository defines the interface for user persistence
type UserRepository interface {
	Create(ctx context.Context, user *authdomain.User) error
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
	FindByEmail(ctx context.Context, email string) (*authdomain.User, error)
	FindAll(ctx context.Context) ([]authdomain.User, error)
}

// CredentialRepository stores the OAuth token pair of each user
type CredentialRepository interface {
	FindByUserID(ctx context.Context, userID string) (*authdomain.GoogleCredential, error)
	Upsert(ctx context.Context, cred *authdomain.GoogleCredential) error
	UpdateTokens(ctx context.Context, userID string, token *oauth2.Token) error
}
