package usecase

import (
	"context"
	"strings"
	"time"

	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type packageUsecase struct {
	packageRepo domain.PackageRepository
	validate    *validator.Validate
}

func NewPackageUsecase(packageRepo domain.PackageRepository, validate *validator.Validate) domain.PackageUsecase {
	return &packageUsecase{packageRepo: packageRepo, validate: validate}
}

// ListActive is public: the pricing page reads it.
func (u *packageUsecase) ListActive(ctx context.Context) ([]*domain.Package, error) {
	return u.packageRepo.ListActive(ctx)
}

func (u *packageUsecase) Get(ctx context.Context, id string) (*domain.Package, error) {
	pkg, err := u.packageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if pkg == nil {
		return nil, apperror.NotFound("Package not found")
	}
	return pkg, nil
}

func (u *packageUsecase) Create(ctx context.Context, pkg *domain.Package) error {
	if role := roleFromContext(ctx); role != domain.RoleAdmin {
		return apperror.Forbidden("Only admins can manage packages")
	}
	if err := u.validate.Struct(pkg); err != nil {
		return apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; "))
	}
	now := time.Now()
	pkg.ID = uuid.NewString()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now
	return u.packageRepo.Create(ctx, pkg)
}

func (u *packageUsecase) Update(ctx context.Context, pkg *domain.Package) error {
	if role := roleFromContext(ctx); role != domain.RoleAdmin {
		return apperror.Forbidden("Only admins can manage packages")
	}
	if err := u.validate.Struct(pkg); err != nil {
		return apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; "))
	}
	pkg.UpdatedAt = time.Now()
	return u.packageRepo.Update(ctx, pkg)
}
