package usecase

import (
	"context"
	"strings"
	"time"

	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type clientUsecase struct {
	clientRepo domain.ClientRepository
	validate   *validator.Validate
}

func NewClientUsecase(clientRepo domain.ClientRepository, validate *validator.Validate) domain.ClientUsecase {
	return &clientUsecase{clientRepo: clientRepo, validate: validate}
}

func userIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(domain.KeyUserID).(string)
	if !ok || userID == "" {
		return "", apperror.Unauthorized("User not authenticated")
	}
	return userID, nil
}

func roleFromContext(ctx context.Context) domain.Role {
	role, _ := ctx.Value(domain.KeyUserRole).(string)
	return domain.Role(role)
}

// GetOwnProfile returns the caller's client record, or NotFound when
// profile setup has not happened yet.
func (u *clientUsecase) GetOwnProfile(ctx context.Context) (*domain.Client, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	client, err := u.clientRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if client == nil {
		return nil, apperror.NotFound("No client profile yet")
	}
	return client, nil
}

// UpdateOwnProfile updates (or creates) the caller's client record.
// The UserID always comes from the context, never from the payload.
func (u *clientUsecase) UpdateOwnProfile(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	client.UserID = userID

	if err := u.validate.Struct(client); err != nil {
		return nil, apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; "))
	}

	existing, err := u.clientRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	now := time.Now()
	if existing == nil {
		client.Status = "active"
		client.CreatedAt = now
		client.UpdatedAt = now
		if err := u.clientRepo.Create(ctx, client); err != nil {
			return nil, err
		}
		return client, nil
	}

	// Quota and package linkage are webhook/admin territory; don't let
	// a profile update touch them.
	existing.BusinessName = client.BusinessName
	existing.ContactName = client.ContactName
	existing.Email = client.Email
	existing.Phone = client.Phone
	existing.UpdatedAt = now
	if err := u.clientRepo.Update(ctx, existing); err != nil {
		return nil, apperror.Internal(err)
	}
	return existing, nil
}

func (u *clientUsecase) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	if role := roleFromContext(ctx); role != domain.RoleAdmin && role != domain.RoleEditor {
		return nil, apperror.Forbidden("Admin or editor role required")
	}
	client, err := u.clientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if client == nil {
		return nil, apperror.NotFound("Client not found")
	}
	return client, nil
}

func (u *clientUsecase) ListClients(ctx context.Context, limit, offset int) ([]*domain.Client, error) {
	if role := roleFromContext(ctx); role != domain.RoleAdmin && role != domain.RoleEditor {
		return nil, apperror.Forbidden("Admin or editor role required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return u.clientRepo.List(ctx, limit, offset)
}

func (u *clientUsecase) UpdateClient(ctx context.Context, client *domain.Client) error {
	if role := roleFromContext(ctx); role != domain.RoleAdmin {
		return apperror.Forbidden("Only admins can update clients")
	}
	if err := u.validate.Struct(client); err != nil {
		return apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; "))
	}
	client.UpdatedAt = time.Now()
	return u.clientRepo.Update(ctx, client)
}
