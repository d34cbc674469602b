package repository

import (
	"context"

	"github.com/rs/xid"

	"github.com/veridata/consent-server-go/internal/database"
	"github.com/veridata/consent-server-go/internal/model"
)

type ActivityLogRepository interface {
	Append(ctx context.Context, params model.AppendActivityParams) (*model.ActivityLog, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error)
}

type activityLogRepo struct {
	db database.DBTX
}

func NewActivityLogRepository(db database.DBTX) ActivityLogRepository {
	return &activityLogRepo{db: db}
}

func (r *activityLogRepo) Append(ctx context.Context, params model.AppendActivityParams) (*model.ActivityLog, error) {
	var entry model.ActivityLog
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO activity_logs (id, user_id, app_name, action, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, xid.New().String(), params.UserID, params.AppName, params.Action, params.Status)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *activityLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	var entries []*model.ActivityLog
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM activity_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
