package postgres

import (
	"context"
	"errors"
	"go-dishlens-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type leadRepo struct {
	db *pgxpool.Pool
}

func NewLeadRepository(db *pgxpool.Pool) domain.LeadRepository {
	return &leadRepo{db: db}
}

const leadColumns = `id, business_name, contact_name, email, phone, source, status, notes, created_at, updated_at`

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(
		&l.ID, &l.BusinessName, &l.ContactName, &l.Email, &l.Phone,
		&l.Source, &l.Status, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *leadRepo) Create(ctx context.Context, lead *domain.Lead) error {
	query := `INSERT INTO leads (id, business_name, contact_name, email, phone, source, status, notes, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		lead.ID, lead.BusinessName, lead.ContactName, lead.Email, lead.Phone,
		lead.Source, lead.Status, lead.Notes, lead.CreatedAt, lead.UpdatedAt,
	)
	return err
}

func (r *leadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return lead, nil
}

func (r *leadRepo) List(ctx context.Context, status domain.LeadStatus, limit, offset int) ([]*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, status, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *leadRepo) Update(ctx context.Context, lead *domain.Lead) error {
	query := `UPDATE leads SET business_name = $2, contact_name = $3, email = $4, phone = $5,
                  source = $6, status = $7, notes = $8, updated_at = $9
              WHERE id = $1`
	_, err := r.db.Exec(ctx, query,
		lead.ID, lead.BusinessName, lead.ContactName, lead.Email, lead.Phone,
		lead.Source, lead.Status, lead.Notes, lead.UpdatedAt,
	)
	return err
}
