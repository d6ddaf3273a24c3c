package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

type AdminRepository interface {
	Create(ctx context.Context, admin *model.Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Admin, error)
	GetByUsername(ctx context.Context, username string) (*model.Admin, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type pgAdminRepo struct{ pool *pgxpool.Pool }

func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &pgAdminRepo{pool: pool}
}

func (r *pgAdminRepo) Create(ctx context.Context, admin *model.Admin) error {
	admin.ID = uuid.New()
	query := `INSERT INTO admins (id, username, password_hash, role, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, NOW(), NOW())
			  RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		admin.ID, admin.Username, admin.PasswordHash, admin.Role,
	).Scan(&admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func (r *pgAdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *pgAdminRepo) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	return r.getOne(ctx, `WHERE username = $1`, username)
}

func (r *pgAdminRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE admins SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgAdminRepo) getOne(ctx context.Context, where string, arg any) (*model.Admin, error) {
	query := `SELECT id, username, password_hash, role, created_at, updated_at FROM admins ` + where
	admin := &model.Admin{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&admin.ID, &admin.Username, &admin.PasswordHash, &admin.Role, &admin.CreatedAt, &admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return admin, nil
}
