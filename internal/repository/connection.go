package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/xid"

	"github.com/veridata/consent-server-go/internal/database"
	"github.com/veridata/consent-server-go/internal/model"
)

type ConnectionRepository interface {
	FindByUser(ctx context.Context, userID string) ([]*model.Connection, error)
	FindByUserAndProvider(ctx context.Context, userID, provider string) (*model.Connection, error)
	Upsert(ctx context.Context, params model.UpsertConnectionParams) (*model.Connection, error)
	UpdateDataCount(ctx context.Context, id string, dataCount int) (*model.Connection, error)
	Delete(ctx context.Context, userID, provider string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

type connectionRepo struct {
	db database.DBTX
}

func NewConnectionRepository(db database.DBTX) ConnectionRepository {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) FindByUser(ctx context.Context, userID string) ([]*model.Connection, error) {
	var connections []*model.Connection
	err := r.db.SelectContext(ctx, &connections, `
		SELECT * FROM connections
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return connections, nil
}

func (r *connectionRepo) FindByUserAndProvider(ctx context.Context, userID, provider string) (*model.Connection, error) {
	var connection model.Connection
	err := r.db.GetContext(ctx, &connection, `
		SELECT * FROM connections
		WHERE user_id = $1 AND provider = $2
	`, userID, provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &connection, nil
}

// Upsert creates or replaces the (user_id, provider) row in one statement.
// The unique constraint is what serializes concurrent upserts for the same
// key: the final row is always the last write, never a merge.
func (r *connectionRepo) Upsert(ctx context.Context, params model.UpsertConnectionParams) (*model.Connection, error) {
	var connection model.Connection
	err := r.db.GetContext(ctx, &connection, `
		INSERT INTO connections (id, user_id, provider, status, data_type, access_token, data_count, trust_score, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			status = EXCLUDED.status,
			data_type = EXCLUDED.data_type,
			access_token = COALESCE(EXCLUDED.access_token, connections.access_token),
			data_count = EXCLUDED.data_count,
			trust_score = EXCLUDED.trust_score,
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING *
	`, xid.New().String(), params.UserID, params.Provider, params.Status, params.DataType,
		params.AccessToken, params.DataCount, params.TrustScore)
	if err != nil {
		return nil, err
	}
	return &connection, nil
}

func (r *connectionRepo) UpdateDataCount(ctx context.Context, id string, dataCount int) (*model.Connection, error) {
	var connection model.Connection
	err := r.db.GetContext(ctx, &connection, `
		UPDATE connections
		SET data_count = $2, last_synced_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, dataCount)
	if err != nil {
		return nil, err
	}
	return &connection, nil
}

func (r *connectionRepo) Delete(ctx context.Context, userID, provider string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM connections WHERE user_id = $1 AND provider = $2
	`, userID, provider)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *connectionRepo) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
