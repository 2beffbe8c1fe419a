package usecase

import (
	"context"
	"strings"
	"time"

	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/email"
	"go-dishlens-backend/pkg/logger"
	"go-dishlens-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type leadUsecase struct {
	leadRepo domain.LeadRepository
	mailer   *email.EmailService
	validate *validator.Validate
}

func NewLeadUsecase(leadRepo domain.LeadRepository, mailer *email.EmailService, validate *validator.Validate) domain.LeadUsecase {
	return &leadUsecase{
		leadRepo: leadRepo,
		mailer:   mailer,
		validate: validate,
	}
}

// SubmitPublic accepts a lead from the unauthenticated marketing form.
// The sales notification email is best effort: a broken SMTP relay must
// never lose the lead or surface an error to the visitor.
func (u *leadUsecase) SubmitPublic(ctx context.Context, lead *domain.Lead) error {
	if err := u.validate.Struct(lead); err != nil {
		return apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; "))
	}

	now := time.Now()
	lead.ID = uuid.NewString()
	lead.Status = domain.LeadNew
	if lead.Source == "" {
		lead.Source = "website"
	}
	lead.CreatedAt = now
	lead.UpdatedAt = now

	if err := u.leadRepo.Create(ctx, lead); err != nil {
		return apperror.Internal(err)
	}

	if u.mailer != nil && u.mailer.IsConfigured() {
		go func(l domain.Lead) {
			if err := u.mailer.SendLeadNotification(email.LeadEmailData{
				BusinessName: l.BusinessName,
				ContactName:  l.ContactName,
				Email:        l.Email,
				Phone:        l.Phone,
				Source:       l.Source,
			}); err != nil {
				logger.Log.Error("lead notification email failed", "lead_id", l.ID, "error", err)
			}
		}(*lead)
	}
	return nil
}

func (u *leadUsecase) Get(ctx context.Context, id string) (*domain.Lead, error) {
	if err := requireSalesRole(ctx); err != nil {
		return nil, err
	}
	lead, err := u.leadRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if lead == nil {
		return nil, apperror.NotFound("Lead not found")
	}
	return lead, nil
}

func (u *leadUsecase) List(ctx context.Context, status domain.LeadStatus, limit, offset int) ([]*domain.Lead, error) {
	if err := requireSalesRole(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return u.leadRepo.List(ctx, status, limit, offset)
}

func (u *leadUsecase) Update(ctx context.Context, lead *domain.Lead) error {
	if err := requireSalesRole(ctx); err != nil {
		return err
	}
	existing, err := u.leadRepo.GetByID(ctx, lead.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	if existing == nil {
		return apperror.NotFound("Lead not found")
	}

	existing.Status = lead.Status
	existing.Notes = lead.Notes
	if lead.ContactName != "" {
		existing.ContactName = lead.ContactName
	}
	if lead.Phone != "" {
		existing.Phone = lead.Phone
	}
	existing.UpdatedAt = time.Now()

	*lead = *existing
	return u.leadRepo.Update(ctx, existing)
}

func requireSalesRole(ctx context.Context) error {
	if role := roleFromContext(ctx); role != domain.RoleAdmin && role != domain.RoleEditor {
		return apperror.Forbidden("Admin or editor role required")
	}
	return nil
}
