package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PgProjectRepository struct {
	pool *pgxpool.Pool
}

func NewPgProjectRepository(pool *pgxpool.Pool) *PgProjectRepository {
	return &PgProjectRepository{pool: pool}
}

func (r *PgProjectRepository) IsMember(ctx context.Context, projectID, memberID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgProjectRepository: nil pool")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat.project_member
			WHERE project_id = $1::uuid AND user_id = $2::uuid
		)
	`, projectID, memberID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
