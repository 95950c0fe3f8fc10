package dto

import (
	"time"

	"github.com/spec-kit/ticketflow/internal/domain"
)

// UserRegisterRequest payload for self sign-up.
type UserRegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// CreateUserRequest payload for administrator-created accounts.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserResponse is the account view. The password hash is never rendered.
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FullName  string      `json:"fullName"`
	Role      domain.Role `json:"role"`
	Enabled   bool        `json:"enabled"`
	CreatedAt time.Time   `json:"createdAt"`
}

// UserSummary is the compact reference embedded in tickets and comments.
type UserSummary struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	FullName string      `json:"fullName"`
	Role     domain.Role `json:"role"`
}

// NewUserResponse shapes u.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
	}
}

// NewUserResponses shapes a listing.
func NewUserResponses(users []domain.User) []UserResponse {
	items := make([]UserResponse, 0, len(users))
	for i := range users {
		items = append(items, NewUserResponse(&users[i]))
	}
	return items
}

func summaryOf(users map[string]*domain.User, id string) *UserSummary {
	u, ok := users[id]
	if !ok || u == nil {
		return &UserSummary{ID: id}
	}
	return &UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role}
}
