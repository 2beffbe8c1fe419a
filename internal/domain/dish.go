package domain

import (
	"context"
	"time"
)

type DishStatus string

const (
	DishSubmitted  DishStatus = "submitted"
	DishProcessing DishStatus = "processing"
	DishReady      DishStatus = "ready"
	DishRejected   DishStatus = "rejected"
)

// Dish is a single menu item submitted for AI photography.
type Dish struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	Name         string     `json:"name" validate:"required,min=2"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Tags         []string   `json:"tags"`
	PhotoURL     string     `json:"photo_url,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	Status       DishStatus `json:"status"`
	EditorNote   string     `json:"editor_note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type DishRepository interface {
	Create(ctx context.Context, dish *Dish) error
	GetByID(ctx context.Context, id string) (*Dish, error)
	ListByClient(ctx context.Context, clientID string) ([]*Dish, error)
	ListByStatus(ctx context.Context, status DishStatus, limit, offset int) ([]*Dish, error)
	Update(ctx context.Context, dish *Dish) error
}

type DishUsecase interface {
	Submit(ctx context.Context, dish *Dish, photo []byte, filename string) (*Dish, error)
	GetOwn(ctx context.Context, id string) (*Dish, error)
	ListOwn(ctx context.Context) ([]*Dish, error)
	// ListQueue and Transition are editor/admin operations.
	ListQueue(ctx context.Context, status DishStatus, limit, offset int) ([]*Dish, error)
	Transition(ctx context.Context, id string, status DishStatus, note string) (*Dish, error)
}
