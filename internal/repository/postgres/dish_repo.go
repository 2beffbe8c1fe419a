package postgres

import (
	"context"
	"errors"
	"go-dishlens-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type dishRepo struct {
	db *pgxpool.Pool
}

func NewDishRepository(db *pgxpool.Pool) domain.DishRepository {
	return &dishRepo{db: db}
}

const dishColumns = `id, client_id, name, description, category, tags,
       photo_url, thumbnail_url, status, editor_note, created_at, updated_at`

func scanDish(row pgx.Row) (*domain.Dish, error) {
	var d domain.Dish
	var tags []string
	err := row.Scan(
		&d.ID, &d.ClientID, &d.Name, &d.Description, &d.Category, pq.Array(&tags),
		&d.PhotoURL, &d.ThumbnailURL, &d.Status, &d.EditorNote,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Tags = tags
	return &d, nil
}

func (r *dishRepo) Create(ctx context.Context, dish *domain.Dish) error {
	query := `INSERT INTO dishes (id, client_id, name, description, category, tags,
                  photo_url, thumbnail_url, status, editor_note, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Exec(ctx, query,
		dish.ID, dish.ClientID, dish.Name, dish.Description, dish.Category,
		pq.Array(dish.Tags), dish.PhotoURL, dish.ThumbnailURL, dish.Status,
		dish.EditorNote, dish.CreatedAt, dish.UpdatedAt,
	)
	return err
}

func (r *dishRepo) GetByID(ctx context.Context, id string) (*domain.Dish, error) {
	query := `SELECT ` + dishColumns + ` FROM dishes WHERE id = $1`
	dish, err := scanDish(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return dish, nil
}

func (r *dishRepo) ListByClient(ctx context.Context, clientID string) ([]*domain.Dish, error) {
	query := `SELECT ` + dishColumns + ` FROM dishes WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDishes(rows)
}

func (r *dishRepo) ListByStatus(ctx context.Context, status domain.DishStatus, limit, offset int) ([]*domain.Dish, error) {
	query := `SELECT ` + dishColumns + ` FROM dishes WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDishes(rows)
}

func collectDishes(rows pgx.Rows) ([]*domain.Dish, error) {
	var dishes []*domain.Dish
	for rows.Next() {
		dish, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		dishes = append(dishes, dish)
	}
	return dishes, rows.Err()
}

func (r *dishRepo) Update(ctx context.Context, dish *domain.Dish) error {
	query := `UPDATE dishes SET name = $2, description = $3, category = $4, tags = $5,
                  photo_url = $6, thumbnail_url = $7, status = $8, editor_note = $9, updated_at = $10
              WHERE id = $1`
	_, err := r.db.Exec(ctx, query,
		dish.ID, dish.Name, dish.Description, dish.Category, pq.Array(dish.Tags),
		dish.PhotoURL, dish.ThumbnailURL, dish.Status, dish.EditorNote, dish.UpdatedAt,
	)
	return err
}
