package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/imaging"
	"go-dishlens-backend/pkg/logger"
	"go-dishlens-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PhotoStorage is what the dish flow needs from object storage.
type PhotoStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

type dishUsecase struct {
	dishRepo   domain.DishRepository
	clientRepo domain.ClientRepository
	photos     PhotoStorage
	validate   *validator.Validate
}

func NewDishUsecase(dishRepo domain.DishRepository, clientRepo domain.ClientRepository, photos PhotoStorage, validate *validator.Validate) domain.DishUsecase {
	return &dishUsecase{
		dishRepo:   dishRepo,
		clientRepo: clientRepo,
		photos:     photos,
		validate:   validate,
	}
}

// Submit validates the photo, stores it with a thumbnail, consumes one
// dish credit and records the submission. Quota is consumed before the
// row exists so two racing submissions cannot both pass on the last
// credit.
func (u *dishUsecase) Submit(ctx context.Context, dish *domain.Dish, photo []byte, filename string) (*domain.Dish, error) {
	if u.photos == nil {
		return nil, apperror.ServiceUnavailable("Photo storage is not configured")
	}

	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	client, err := u.clientRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if client == nil {
		return nil, apperror.Forbidden("Complete your client profile before submitting dishes")
	}

	dish.ClientID = client.ID
	if err := u.validate.Struct(dish); err != nil {
		return nil, apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; "))
	}

	result, err := imaging.ValidatePhoto(filename, photo)
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrTooLarge):
			return nil, apperror.BadRequest("Photo exceeds the 10MB limit")
		case errors.Is(err, imaging.ErrTooSmall):
			return nil, apperror.BadRequest("Photo must be at least 480x480")
		default:
			return nil, apperror.BadRequest("Unsupported or corrupt image")
		}
	}

	thumb, err := imaging.Thumbnail(photo)
	if err != nil {
		return nil, apperror.BadRequest("Unsupported or corrupt image")
	}

	if err := u.clientRepo.DecrementDishQuota(ctx, client.ID); err != nil {
		if errors.Is(err, apperror.ErrQuotaExhausted) {
			return nil, apperror.PaymentRequired("No dish credits remaining in your package")
		}
		return nil, apperror.Internal(err)
	}

	dish.ID = uuid.NewString()
	key := fmt.Sprintf("dishes/%s/%s%s", client.ID, dish.ID, result.Extension)
	thumbKey := fmt.Sprintf("dishes/%s/%s_thumb.jpg", client.ID, dish.ID)

	photoURL, err := u.photos.Put(ctx, key, "image/"+result.Format, photo)
	if err != nil {
		logger.Log.Error("photo upload failed", "dish_id", dish.ID, "error", err)
		return nil, apperror.Internal(err)
	}
	thumbURL, err := u.photos.Put(ctx, thumbKey, "image/jpeg", thumb)
	if err != nil {
		_ = u.photos.Delete(ctx, key)
		return nil, apperror.Internal(err)
	}

	now := time.Now()
	dish.PhotoURL = photoURL
	dish.ThumbnailURL = thumbURL
	dish.Status = domain.DishSubmitted
	dish.CreatedAt = now
	dish.UpdatedAt = now

	if err := u.dishRepo.Create(ctx, dish); err != nil {
		_ = u.photos.Delete(ctx, key)
		_ = u.photos.Delete(ctx, thumbKey)
		return nil, apperror.Internal(err)
	}
	return dish, nil
}

func (u *dishUsecase) GetOwn(ctx context.Context, id string) (*domain.Dish, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	client, err := u.clientRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if client == nil {
		return nil, apperror.NotFound("Dish not found")
	}

	dish, err := u.dishRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	// Ownership check: a foreign dish looks identical to a missing one.
	if dish == nil || dish.ClientID != client.ID {
		return nil, apperror.NotFound("Dish not found")
	}
	return dish, nil
}

func (u *dishUsecase) ListOwn(ctx context.Context) ([]*domain.Dish, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	client, err := u.clientRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if client == nil {
		return []*domain.Dish{}, nil
	}
	return u.dishRepo.ListByClient(ctx, client.ID)
}

func (u *dishUsecase) ListQueue(ctx context.Context, status domain.DishStatus, limit, offset int) ([]*domain.Dish, error) {
	if role := roleFromContext(ctx); role != domain.RoleAdmin && role != domain.RoleEditor {
		return nil, apperror.Forbidden("Admin or editor role required")
	}
	if status == "" {
		status = domain.DishSubmitted
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return u.dishRepo.ListByStatus(ctx, status, limit, offset)
}

var validTransitions = map[domain.DishStatus][]domain.DishStatus{
	domain.DishSubmitted:  {domain.DishProcessing, domain.DishRejected},
	domain.DishProcessing: {domain.DishReady, domain.DishRejected},
	domain.DishRejected:   {domain.DishProcessing},
}

func (u *dishUsecase) Transition(ctx context.Context, id string, status domain.DishStatus, note string) (*domain.Dish, error) {
	if role := roleFromContext(ctx); role != domain.RoleAdmin && role != domain.RoleEditor {
		return nil, apperror.Forbidden("Admin or editor role required")
	}

	dish, err := u.dishRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if dish == nil {
		return nil, apperror.NotFound("Dish not found")
	}

	allowed := false
	for _, next := range validTransitions[dish.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperror.BadRequest(fmt.Sprintf("Cannot move dish from %s to %s", dish.Status, status))
	}

	dish.Status = status
	dish.EditorNote = note
	dish.UpdatedAt = time.Now()
	if err := u.dishRepo.Update(ctx, dish); err != nil {
		return nil, apperror.Internal(err)
	}
	return dish, nil
}
