package domain

import (
	"context"
	"time"
)

// Client is the business-profile record linked to an authenticated user.
// A freshly registered user legitimately has no Client yet; that is not
// an error condition anywhere in this codebase.
type Client struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"` // Supabase UUID
	BusinessName    string    `json:"business_name" validate:"required,min=2,valid_name"`
	ContactName     string    `json:"contact_name" validate:"required,valid_name,no_emoji"`
	Email           string    `json:"email" validate:"required,email"`
	Phone           string    `json:"phone" validate:"valid_phone"`
	PackageID       *string   `json:"package_id,omitempty"`
	RemainingPhotos int       `json:"remaining_photos"`
	RemainingDishes int       `json:"remaining_dishes"`
	Status          string    `json:"status"` // active | paused | churned
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ClientRepository interface {
	Create(ctx context.Context, client *Client) error
	GetByID(ctx context.Context, id string) (*Client, error)
	// GetByUserID returns (nil, nil) when the user has no linked record.
	GetByUserID(ctx context.Context, userID string) (*Client, error)
	List(ctx context.Context, limit, offset int) ([]*Client, error)
	Update(ctx context.Context, client *Client) error
	// DecrementDishQuota atomically consumes one dish credit.
	// Returns ErrQuotaExhausted when no credits remain.
	DecrementDishQuota(ctx context.Context, clientID string) error
}

type ClientUsecase interface {
	GetOwnProfile(ctx context.Context) (*Client, error)
	UpdateOwnProfile(ctx context.Context, client *Client) (*Client, error)
	GetClient(ctx context.Context, id string) (*Client, error)
	ListClients(ctx context.Context, limit, offset int) ([]*Client, error)
	UpdateClient(ctx context.Context, client *Client) error
}
