package domain

import (
	"context"
	"time"
)

// PackageTier mirrors the iCount amount-threshold table used by the
// payment webhook. "custom" covers amounts below the lowest threshold
// (manual follow-up by sales).
type PackageTier string

const (
	TierTasting  PackageTier = "tasting"
	TierFullMenu PackageTier = "full_menu"
	TierDeluxe   PackageTier = "deluxe"
	TierCustom   PackageTier = "custom"
)

// Amount thresholds (ILS) for detecting the purchased tier from an
// invoice total. Order matters: match from the highest tier down.
const (
	amountDeluxe   = 1650
	amountFullMenu = 950
	amountTasting  = 500
)

// DetectTier maps an invoice amount to a package tier.
func DetectTier(amount float64) PackageTier {
	switch {
	case amount >= amountDeluxe:
		return TierDeluxe
	case amount >= amountFullMenu:
		return TierFullMenu
	case amount >= amountTasting:
		return TierTasting
	default:
		return TierCustom
	}
}

type Package struct {
	ID         string      `json:"id"`
	Name       string      `json:"name" validate:"required"`
	Tier       PackageTier `json:"tier" validate:"required,oneof=tasting full_menu deluxe custom"`
	PhotoLimit int         `json:"photo_limit" validate:"gte=0"`
	DishLimit  int         `json:"dish_limit" validate:"gte=0"`
	PriceILS   float64     `json:"price_ils" validate:"gte=0"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type PackageRepository interface {
	Create(ctx context.Context, pkg *Package) error
	GetByID(ctx context.Context, id string) (*Package, error)
	ListActive(ctx context.Context) ([]*Package, error)
	Update(ctx context.Context, pkg *Package) error
}

type PackageUsecase interface {
	ListActive(ctx context.Context) ([]*Package, error)
	Get(ctx context.Context, id string) (*Package, error)
	Create(ctx context.Context, pkg *Package) error
	Update(ctx context.Context, pkg *Package) error
}
