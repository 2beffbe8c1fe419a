package usecase

import (
	"context"
	"errors"
	"time"

	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/logger"

	"github.com/google/uuid"
)

type paymentUsecase struct {
	paymentRepo domain.PaymentRepository
}

func NewPaymentUsecase(paymentRepo domain.PaymentRepository) domain.PaymentUsecase {
	return &paymentUsecase{paymentRepo: paymentRepo}
}

// RecordWebhook stores an invoice pushed by iCount. Webhooks redeliver
// on non-2xx responses, so a duplicate doc id is a success, not an
// error: the existing row is returned unchanged.
func (u *paymentUsecase) RecordWebhook(ctx context.Context, docID string, amount float64, customerName, customerEmail string) (*domain.Payment, error) {
	if docID == "" {
		return nil, apperror.BadRequest("Missing document id")
	}
	if amount <= 0 {
		return nil, apperror.BadRequest("Amount must be positive")
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:                  uuid.NewString(),
		DocID:               docID,
		Amount:              amount,
		CustomerName:        customerName,
		CustomerEmail:       customerEmail,
		DetectedPackageType: domain.DetectTier(amount),
		Status:              domain.PaymentPending,
		Source:              domain.PaymentSourceWebhook,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := u.paymentRepo.Create(ctx, payment)
	if errors.Is(err, apperror.ErrDuplicatePayment) {
		logger.Log.Info("webhook redelivery for known payment", "doc_id", docID)
		return u.existing(ctx, docID)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return payment, nil
}

// RecordSynced upserts a paid invoice scraped from the iCount portal.
// Invoices seen first via the webhook are promoted to confirmed; doc
// ids already confirmed report (false, nil) so the sync run can count
// new rows.
func (u *paymentUsecase) RecordSynced(ctx context.Context, docID string, amount float64, customerName, customerEmail string) (bool, error) {
	if docID == "" {
		return false, apperror.BadRequest("Missing document id")
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:                  uuid.NewString(),
		DocID:               docID,
		Amount:              amount,
		CustomerName:        customerName,
		CustomerEmail:       customerEmail,
		DetectedPackageType: domain.DetectTier(amount),
		Status:              domain.PaymentConfirmed,
		Source:              domain.PaymentSourceSync,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := u.paymentRepo.Create(ctx, payment)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, apperror.ErrDuplicatePayment) {
		return false, apperror.Internal(err)
	}

	existing, err := u.existing(ctx, docID)
	if err != nil {
		return false, err
	}
	if existing.Status != domain.PaymentConfirmed {
		if err := u.paymentRepo.UpdateStatus(ctx, docID, domain.PaymentConfirmed); err != nil {
			return false, apperror.Internal(err)
		}
	}
	return false, nil
}

func (u *paymentUsecase) List(ctx context.Context, limit, offset int) ([]*domain.Payment, error) {
	if role := roleFromContext(ctx); role != domain.RoleAdmin {
		return nil, apperror.Forbidden("Admin role required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return u.paymentRepo.List(ctx, limit, offset)
}

func (u *paymentUsecase) existing(ctx context.Context, docID string) (*domain.Payment, error) {
	payment, err := u.paymentRepo.GetByDocID(ctx, docID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if payment == nil {
		return nil, apperror.Internal(errors.New("payment vanished after duplicate insert"))
	}
	return payment, nil
}
