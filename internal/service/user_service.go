package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/spec-kit/ticketflow/internal/auth"
	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/policy"
	"github.com/spec-kit/ticketflow/internal/repository"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

const minPasswordLength = 6

// AccountInput describes a new account.
type AccountInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     domain.Role
}

// accountFactory validates and persists new accounts for both self sign-up
// and administrator-created users.
type accountFactory struct {
	store      repository.Store
	bcryptCost int
	now        func() time.Time
}

func newAccountFactory(store repository.Store, bcryptCost int, now func() time.Time) *accountFactory {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &accountFactory{store: store, bcryptCost: bcryptCost, now: now}
}

func (f *accountFactory) create(ctx context.Context, input AccountInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	invalid := map[string]any{}
	if username == "" {
		invalid["username"] = "required"
	}
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		invalid["email"] = "must be a valid address"
	}
	if len(input.Password) < minPasswordLength {
		invalid["password"] = "must be at least 6 characters"
	}
	if !input.Role.Valid() {
		invalid["role"] = "must be one of USER, SUPPORT_AGENT, ADMIN"
	}
	if len(invalid) > 0 {
		return nil, apperrors.NewValidationError("invalid account", invalid)
	}

	hash, err := auth.HashPassword(input.Password, f.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := f.now()
	user := &domain.User{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: hash,
		Role:         input.Role,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = f.store.WithTx(ctx, func(stores repository.StoreProvider) error {
		if _, err := stores.Users().GetByUsername(ctx, username); err == nil {
			return apperrors.NewConflict("username already exists", map[string]any{"username": username})
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if _, err := stores.Users().GetByEmail(ctx, email); err == nil {
			return apperrors.NewConflict("email already exists", map[string]any{"email": email})
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return stores.Users().Create(ctx, user)
	})
	if err != nil {
		return nil, storeErr(err, "user", nil)
	}
	return user, nil
}

// UserService exposes account administration.
type UserService struct {
	store    repository.Store
	accounts *accountFactory
	now      func() time.Time
}

// NewUserService constructs the service.
func NewUserService(store repository.Store, bcryptCost int, now func() time.Time) *UserService {
	accounts := newAccountFactory(store, bcryptCost, now)
	return &UserService{store: store, accounts: accounts, now: accounts.now}
}

// ListUsers returns every account.
func (s *UserService) ListUsers(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if err := policy.RequireAdministerUsers(p); err != nil {
		return nil, err
	}
	users, err := s.store.Users().List(ctx, repository.UserFilter{})
	if err != nil {
		return nil, storeErr(err, "user", nil)
	}
	return users, nil
}

// GetUser returns one account.
func (s *UserService) GetUser(ctx context.Context, p domain.Principal, userID string) (*domain.User, error) {
	if err := policy.RequireAdministerUsers(p); err != nil {
		return nil, err
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "user", idDetails("user_id", userID))
	}
	return user, nil
}

// CreateUser creates an account with any role.
func (s *UserService) CreateUser(ctx context.Context, p domain.Principal, input AccountInput) (*domain.User, error) {
	if err := policy.RequireAdministerUsers(p); err != nil {
		return nil, err
	}
	return s.accounts.create(ctx, input)
}

// UpdateRole changes an account's role.
func (s *UserService) UpdateRole(ctx context.Context, p domain.Principal, userID string, role domain.Role) (*domain.User, error) {
	if err := policy.RequireAdministerUsers(p); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	return s.mutate(ctx, userID, func(u *domain.User) { u.Role = role })
}

// ToggleEnabled flips the enabled flag. Disabled accounts can no longer
// authenticate.
func (s *UserService) ToggleEnabled(ctx context.Context, p domain.Principal, userID string) (*domain.User, error) {
	if err := policy.RequireAdministerUsers(p); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, func(u *domain.User) { u.Enabled = !u.Enabled })
}

// Bootstrap creates the given accounts when the user table is empty and
// reports how many were created. It bypasses the admin check and is meant
// for startup and CLI seeding only.
func (s *UserService) Bootstrap(ctx context.Context, inputs []AccountInput) (int, error) {
	count, err := s.store.Users().Count(ctx)
	if err != nil {
		return 0, storeErr(err, "user", nil)
	}
	if count > 0 {
		return 0, nil
	}
	for i, input := range inputs {
		if _, err := s.accounts.create(ctx, input); err != nil {
			return i, err
		}
	}
	return len(inputs), nil
}

// ListSupportAgents lists SUPPORT_AGENT accounts for assignment pickers.
func (s *UserService) ListSupportAgents(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if err := policy.RequireTriage(p); err != nil {
		return nil, err
	}
	role := domain.RoleSupportAgent
	users, err := s.store.Users().List(ctx, repository.UserFilter{Role: &role})
	if err != nil {
		return nil, storeErr(err, "user", nil)
	}
	return users, nil
}

// Lookup resolves ids to accounts for response shaping. Unknown ids are
// omitted from the result.
func (s *UserService) Lookup(ctx context.Context, ids ...string) (map[string]*domain.User, error) {
	result := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, seen := result[id]; seen {
			continue
		}
		user, err := s.store.Users().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, storeErr(err, "user", nil)
		}
		result[id] = user
	}
	return result, nil
}

func (s *UserService) mutate(ctx context.Context, userID string, apply func(*domain.User)) (*domain.User, error) {
	var user *domain.User
	err := s.store.WithTx(ctx, func(stores repository.StoreProvider) error {
		var err error
		user, err = stores.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		apply(user)
		user.UpdatedAt = s.now()
		return stores.Users().Update(ctx, user)
	})
	if err != nil {
		return nil, storeErr(err, "user", idDetails("user_id", userID))
	}
	return user, nil
}
