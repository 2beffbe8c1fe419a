package domain

import (
	"context"
	"time"
)

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadConverted LeadStatus = "converted"
	LeadClosed    LeadStatus = "closed"
)

// Lead is a prospective restaurant captured from the marketing site or
// entered manually by sales.
type Lead struct {
	ID           string     `json:"id"`
	BusinessName string     `json:"business_name" validate:"required,min=2,valid_name"`
	ContactName  string     `json:"contact_name" validate:"required,valid_name,no_emoji"`
	Email        string     `json:"email" validate:"required,email"`
	Phone        string     `json:"phone" validate:"valid_phone"`
	Source       string     `json:"source"` // website | referral | affiliate | manual
	Status       LeadStatus `json:"status"`
	Notes        string     `json:"notes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type LeadRepository interface {
	Create(ctx context.Context, lead *Lead) error
	GetByID(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, status LeadStatus, limit, offset int) ([]*Lead, error)
	Update(ctx context.Context, lead *Lead) error
}

type LeadUsecase interface {
	// SubmitPublic is the unauthenticated marketing-site entry point.
	SubmitPublic(ctx context.Context, lead *Lead) error
	Get(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, status LeadStatus, limit, offset int) ([]*Lead, error)
	Update(ctx context.Context, lead *Lead) error
}
