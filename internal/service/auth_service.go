package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/ticketflow/internal/auth"
	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/repository"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	accounts *accountFactory
	users    repository.UserRepository
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(store repository.Store, tokens *auth.TokenManager, bcryptCost int, now func() time.Time) *AuthService {
	return &AuthService{
		accounts: newAccountFactory(store, bcryptCost, now),
		users:    store.Users(),
		tokenMgr: tokens,
	}
}

// RegisterInput carries self-service sign-up fields.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// Session is an issued access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates an enabled USER account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	user, err := s.accounts.create(ctx, AccountInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		FullName: input.FullName,
		Role:     domain.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login authenticates by username and password. Unknown users, wrong
// passwords and disabled accounts are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthenticated("invalid credentials")
		}
		return nil, storeErr(err, "user", nil)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthenticated("invalid credentials")
	}
	if !user.Enabled {
		return nil, apperrors.NewUnauthenticated("invalid credentials")
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
