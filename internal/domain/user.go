package domain

import "context"

// Role is derived from Supabase identity metadata on every resolution.
// It is never persisted or mutated by this service.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleEditor   Role = "editor"
	RoleNone     Role = ""
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleEditor:
		return true
	}
	return false
}

// User is the application's view of a Supabase auth user.
type User struct {
	ID       string            `json:"id"` // Supabase UUID
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"` // app_metadata, flattened
}

type AuthUsecase interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Logout(ctx context.Context, userID, accessToken string) error
	ForgotPassword(ctx context.Context, email string) error
	CurrentUser(ctx context.Context, userID string) (*User, error)
}

// LoginResult carries the GoTrue session back to the frontend together
// with the derived role so the client can route immediately.
type LoginResult struct {
	User         *User  `json:"user"`
	Role         Role   `json:"role"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}
