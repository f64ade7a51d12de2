package usecase

import (
	"context"
	"strings"
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"
	authdto "mailmirror-backend/internal/auth/dto"
	"mailmirror-backend/internal/auth/repository"
	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/pkg/config"
	"mailmirror-backend/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// AuthUsecase covers user accounts, bearer tokens and the stored provider
// credentials.
type AuthUsecase interface {
	Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	ListUsers(ctx context.Context) ([]authdomain.User, error)
	ValidateToken(tokenString string) (*authdomain.User, error)
	GenerateAccessToken(user *authdomain.User) (string, error)
	// ResolveCredentials loads the user and a provider credential set whose
	// refreshes are written back to the store.
	ResolveCredentials(ctx context.Context, userID string) (*authdomain.User, emaildomain.Credentials, error)
	SaveCredentials(ctx context.Context, userID, accessToken, refreshToken string) (*authdomain.GoogleCredential, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo repository.UserRepository
	credRepo repository.CredentialRepository
	config   *config.Config
	log      logger.Logger
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, credRepo repository.CredentialRepository, cfg *config.Config, log logger.Logger) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		credRepo: credRepo,
		config:   cfg,
		log:      log,
	}
}

func (u *authUsecase) Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := u.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Wrap(emaildomain.ErrConflict, "email already registered")
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &authdomain.User{
		Email:    email,
		Password: hashedPassword,
		Name:     req.Name,
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	u.log.Infof("[Auth] registered user %s", user.ID)

	return u.tokenResponse(user)
}

func (u *authUsecase) Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	user, err := u.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, err
	}
	// Same answer for an unknown email and a wrong password.
	if user == nil || user.Password == "" || !repository.CheckPasswordHash(req.Password, user.Password) {
		return nil, errors.Wrap(emaildomain.ErrUnauthorized, "invalid email or password")
	}

	return u.tokenResponse(user)
}

func (u *authUsecase) ListUsers(ctx context.Context) ([]authdomain.User, error) {
	return u.userRepo.FindAll(ctx)
}

func (u *authUsecase) tokenResponse(user *authdomain.User) (*authdto.TokenResponse, error) {
	accessToken, err := u.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &authdto.TokenResponse{AccessToken: accessToken, User: user}, nil
}

func (u *authUsecase) GenerateAccessToken(user *authdomain.User) (string, error) {
	claims := jwt.MapClaims{
		"id":    user.ID,
		"email": user.Email,
		"exp":   time.Now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(context.Background(), userID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, errors.New("user not found")
	}

	return user, nil
}

func (u *authUsecase) ResolveCredentials(ctx context.Context, userID string) (*authdomain.User, emaildomain.Credentials, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, emaildomain.Credentials{}, errors.Wrap(err, "find user")
	}
	if user == nil {
		return nil, emaildomain.Credentials{}, errors.Wrapf(emaildomain.ErrNotFound, "user %s", userID)
	}

	cred, err := u.credRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, emaildomain.Credentials{}, errors.Wrap(err, "find credentials")
	}
	if !cred.HasTokens() {
		return nil, emaildomain.Credentials{}, errors.Wrapf(emaildomain.ErrMissingCredentials, "user %s", userID)
	}

	return user, emaildomain.Credentials{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.TokenExpiry,
		OnRefresh:    u.makeTokenUpdateCallback(userID),
	}, nil
}

func (u *authUsecase) makeTokenUpdateCallback(userID string) emaildomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		if err := u.credRepo.UpdateTokens(context.Background(), userID, token); err != nil {
			u.log.Errorf("[Auth] failed to persist refreshed token for user %s: %v", userID, err)
			return err
		}
		u.log.Debugf("[Auth] stored refreshed token for user %s", userID)
		return nil
	}
}

func (u *authUsecase) SaveCredentials(ctx context.Context, userID, accessToken, refreshToken string) (*authdomain.GoogleCredential, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, errors.Wrap(emaildomain.ErrValidation, "access_token or refresh_token is required")
	}

	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.Wrapf(emaildomain.ErrNotFound, "user %s", userID)
	}

	cred := &authdomain.GoogleCredential{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if err := u.credRepo.Upsert(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}
