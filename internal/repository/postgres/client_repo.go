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

// PostgreSQL error codes
const (
	pgUniqueViolation = "23505"
)

type clientRepo struct {
	db *pgxpool.Pool
}

func NewClientRepository(db *pgxpool.Pool) domain.ClientRepository {
	return &clientRepo{db: db}
}

const clientColumns = `id, user_id, business_name, contact_name, email, phone,
       package_id, remaining_photos, remaining_dishes, status, created_at, updated_at`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(
		&c.ID, &c.UserID, &c.BusinessName, &c.ContactName, &c.Email, &c.Phone,
		&c.PackageID, &c.RemainingPhotos, &c.RemainingDishes, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepo) Create(ctx context.Context, client *domain.Client) error {
	query := `INSERT INTO clients (id, user_id, business_name, contact_name, email, phone,
                  package_id, remaining_photos, remaining_dishes, status, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Exec(ctx, query,
		client.ID, client.UserID, client.BusinessName, client.ContactName,
		client.Email, client.Phone, client.PackageID,
		client.RemainingPhotos, client.RemainingDishes, client.Status,
		client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.Conflict("A client record already exists for this user")
		}
		return apperror.Internal(err)
	}
	return nil
}

func (r *clientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	client, err := scanClient(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

// GetByUserID returns (nil, nil) when the user has no linked record.
// That distinction is load-bearing: a query fault must never be
// presented as "has no record yet".
func (r *clientRepo) GetByUserID(ctx context.Context, userID string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE user_id = $1`
	client, err := scanClient(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

func (r *clientRepo) List(ctx context.Context, limit, offset int) ([]*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*domain.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *clientRepo) Update(ctx context.Context, client *domain.Client) error {
	query := `UPDATE clients SET business_name = $2, contact_name = $3, email = $4,
                  phone = $5, package_id = $6, remaining_photos = $7,
                  remaining_dishes = $8, status = $9, updated_at = $10
              WHERE id = $1`
	_, err := r.db.Exec(ctx, query,
		client.ID, client.BusinessName, client.ContactName, client.Email,
		client.Phone, client.PackageID, client.RemainingPhotos,
		client.RemainingDishes, client.Status, client.UpdatedAt,
	)
	return err
}

// DecrementDishQuota consumes one dish credit atomically; the WHERE
// clause is the guard against racing submissions.
func (r *clientRepo) DecrementDishQuota(ctx context.Context, clientID string) error {
	query := `UPDATE clients SET remaining_dishes = remaining_dishes - 1, updated_at = NOW()
              WHERE id = $1 AND remaining_dishes > 0`
	tag, err := r.db.Exec(ctx, query, clientID)
	if err != nil {
		return apperror.Internal(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrQuotaExhausted
	}
	return nil
}
