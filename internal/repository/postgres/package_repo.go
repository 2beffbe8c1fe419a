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

type packageRepo struct {
	db *pgxpool.Pool
}

func NewPackageRepository(db *pgxpool.Pool) domain.PackageRepository {
	return &packageRepo{db: db}
}

func (r *packageRepo) Create(ctx context.Context, pkg *domain.Package) error {
	query := `INSERT INTO packages (id, name, tier, photo_limit, dish_limit, price_ils, active, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query,
		pkg.ID, pkg.Name, pkg.Tier, pkg.PhotoLimit, pkg.DishLimit,
		pkg.PriceILS, pkg.Active, pkg.CreatedAt, pkg.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.Conflict("A package with this name already exists")
		}
		return apperror.Internal(err)
	}
	return nil
}

func (r *packageRepo) GetByID(ctx context.Context, id string) (*domain.Package, error) {
	query := `SELECT id, name, tier, photo_limit, dish_limit, price_ils, active, created_at, updated_at
              FROM packages WHERE id = $1`
	var p domain.Package
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Tier, &p.PhotoLimit, &p.DishLimit,
		&p.PriceILS, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *packageRepo) ListActive(ctx context.Context) ([]*domain.Package, error) {
	query := `SELECT id, name, tier, photo_limit, dish_limit, price_ils, active, created_at, updated_at
              FROM packages WHERE active ORDER BY price_ils ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packages []*domain.Package
	for rows.Next() {
		var p domain.Package
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Tier, &p.PhotoLimit, &p.DishLimit,
			&p.PriceILS, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		packages = append(packages, &p)
	}
	return packages, rows.Err()
}

func (r *packageRepo) Update(ctx context.Context, pkg *domain.Package) error {
	query := `UPDATE packages SET name = $2, tier = $3, photo_limit = $4, dish_limit = $5,
                  price_ils = $6, active = $7, updated_at = $8
              WHERE id = $1`
	_, err := r.db.Exec(ctx, query,
		pkg.ID, pkg.Name, pkg.Tier, pkg.PhotoLimit, pkg.DishLimit,
		pkg.PriceILS, pkg.Active, pkg.UpdatedAt,
	)
	return err
}
