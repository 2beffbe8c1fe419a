package postgres

import (
	"context"
	"errors"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type paymentRepo struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) domain.PaymentRepository {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, doc_id, amount, customer_name, customer_email,
       detected_package_type, status, source, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.DocID, &p.Amount, &p.CustomerName, &p.CustomerEmail,
		&p.DetectedPackageType, &p.Status, &p.Source, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a payment. doc_id carries a unique constraint because
// both the webhook and the portal sync can observe the same invoice.
func (r *paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	query := `INSERT INTO payments (id, doc_id, amount, customer_name, customer_email,
                  detected_package_type, status, source, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		payment.ID, payment.DocID, payment.Amount, payment.CustomerName,
		payment.CustomerEmail, payment.DetectedPackageType, payment.Status,
		payment.Source, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.ErrDuplicatePayment
		}
		return apperror.Internal(err)
	}
	return nil
}

func (r *paymentRepo) GetByDocID(ctx context.Context, docID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE doc_id = $1`
	payment, err := scanPayment(r.db.QueryRow(ctx, query, docID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepo) List(ctx context.Context, limit, offset int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, docID string, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $2, updated_at = NOW() WHERE doc_id = $1`
	_, err := r.db.Exec(ctx, query, docID, status)
	return err
}
