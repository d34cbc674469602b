package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/xid"

	"github.com/veridata/consent-server-go/internal/database"
	"github.com/veridata/consent-server-go/internal/model"
)

type DataCategoryRepository interface {
	FindByUser(ctx context.Context, userID string) ([]*model.DataCategory, error)
	FindByID(ctx context.Context, id string) (*model.DataCategory, error)
	Create(ctx context.Context, params model.CreateDataCategoryParams) (*model.DataCategory, error)
	UpdateLevel(ctx context.Context, id, level string, price *float64, consentHash string) (*model.DataCategory, error)
}

type dataCategoryRepo struct {
	db database.DBTX
}

func NewDataCategoryRepository(db database.DBTX) DataCategoryRepository {
	return &dataCategoryRepo{db: db}
}

func (r *dataCategoryRepo) FindByUser(ctx context.Context, userID string) ([]*model.DataCategory, error) {
	var categories []*model.DataCategory
	err := r.db.SelectContext(ctx, &categories, `
		SELECT * FROM data_categories
		WHERE user_id = $1
		ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *dataCategoryRepo) FindByID(ctx context.Context, id string) (*model.DataCategory, error) {
	var category model.DataCategory
	err := r.db.GetContext(ctx, &category, `
		SELECT * FROM data_categories WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *dataCategoryRepo) Create(ctx context.Context, params model.CreateDataCategoryParams) (*model.DataCategory, error) {
	var category model.DataCategory
	err := r.db.GetContext(ctx, &category, `
		INSERT INTO data_categories (id, user_id, name, description, source, level, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, xid.New().String(), params.UserID, params.Name, params.Description,
		params.Source, params.Level, params.Price)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// UpdateLevel overwrites the level and consent hash in one statement; a nil
// price leaves the stored price untouched.
func (r *dataCategoryRepo) UpdateLevel(ctx context.Context, id, level string, price *float64, consentHash string) (*model.DataCategory, error) {
	var category model.DataCategory
	err := r.db.GetContext(ctx, &category, `
		UPDATE data_categories
		SET level = $2,
			price = COALESCE($3, price),
			consent_hash = $4,
			last_updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, level, price, consentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// Notarization Repository

type NotarizationRepository interface {
	Create(ctx context.Context, userID, categoryID, consentHash string, signature *string) (*model.Notarization, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notarization, error)
}

type notarizationRepo struct {
	db database.DBTX
}

func NewNotarizationRepository(db database.DBTX) NotarizationRepository {
	return &notarizationRepo{db: db}
}

func (r *notarizationRepo) Create(ctx context.Context, userID, categoryID, consentHash string, signature *string) (*model.Notarization, error) {
	var notarization model.Notarization
	err := r.db.GetContext(ctx, &notarization, `
		INSERT INTO notarizations (id, user_id, category_id, consent_hash, ledger_signature, anchored_at)
		VALUES ($1, $2, $3, $4, $5, CASE WHEN $5::text IS NULL THEN NULL ELSE NOW() END)
		RETURNING *
	`, xid.New().String(), userID, categoryID, consentHash, signature)
	if err != nil {
		return nil, err
	}
	return &notarization, nil
}

func (r *notarizationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notarization, error) {
	var notarizations []*model.Notarization
	err := r.db.SelectContext(ctx, &notarizations, `
		SELECT * FROM notarizations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return notarizations, nil
}
