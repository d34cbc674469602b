package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/veridata/consent-server-go/internal/audit"
	"github.com/veridata/consent-server-go/internal/consent"
	"github.com/veridata/consent-server-go/internal/database"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/model"
	"github.com/veridata/consent-server-go/internal/repository"
)

// starterCategories seeds a user's permission list on first read.
var starterCategories = []model.CreateDataCategoryParams{
	{Name: "Public Tweets", Description: "All public text posts on Twitter/X", Source: "Twitter", Level: model.PermissionMonetized, Price: 0.5},
	{Name: "Private Photos", Description: "Photos stored in Google Photos", Source: "Google", Level: model.PermissionDenied, Price: 0},
	{Name: "Voice Notes", Description: "Audio recordings from WhatsApp", Source: "Meta", Level: model.PermissionDenied, Price: 0},
	{Name: "Code Repositories", Description: "Public code on GitHub", Source: "GitHub", Level: model.PermissionRestricted, Price: 0},
	{Name: "Blog Posts", Description: "Articles published on Medium", Source: "Medium", Level: model.PermissionMonetized, Price: 1.2},
}

// ConsentNotary anchors a consent hash on a public ledger. Implemented by
// solana.Notary; an unconfigured notary returns ("", nil).
type ConsentNotary interface {
	AnchorConsent(ctx context.Context, userID, categoryName, consentHash string) (string, error)
}

// RevokeAllResult reports what a global revoke touched.
type RevokeAllResult struct {
	ConnectionsRevoked int64 `json:"connectionsRevoked"`
	PermissionsReset   int64 `json:"permissionsReset"`
}

// TxRepos bundles the repositories bound to one revoke transaction.
type TxRepos struct {
	Connections repository.ConnectionRepository
	Categories  repository.DataCategoryRepository
	Activity    repository.ActivityLogRepository
}

// TxRunner executes fn with repositories scoped to a single transaction.
type TxRunner func(ctx context.Context, fn func(TxRepos) error) error

// NewTxRunner binds a TxRunner to the database's transaction helper.
func NewTxRunner(db *database.DB) TxRunner {
	return func(ctx context.Context, fn func(TxRepos) error) error {
		return db.WithTx(ctx, func(tx *sqlx.Tx) error {
			return fn(TxRepos{
				Connections: repository.NewConnectionRepository(tx),
				Categories:  repository.NewDataCategoryRepository(tx),
				Activity:    repository.NewActivityLogRepository(tx),
			})
		})
	}
}

// PermissionService owns data-category consent levels, their hashes and the
// best-effort ledger anchoring that follows every change.
type PermissionService struct {
	runTx            TxRunner
	categoryRepo     repository.DataCategoryRepository
	activityRepo     repository.ActivityLogRepository
	notarizationRepo repository.NotarizationRepository
	notary           ConsentNotary
	ledgerTimeout    time.Duration
}

func NewPermissionService(
	runTx TxRunner,
	categoryRepo repository.DataCategoryRepository,
	activityRepo repository.ActivityLogRepository,
	notarizationRepo repository.NotarizationRepository,
	notary ConsentNotary,
	ledgerTimeout time.Duration,
) *PermissionService {
	return &PermissionService{
		runTx:            runTx,
		categoryRepo:     categoryRepo,
		activityRepo:     activityRepo,
		notarizationRepo: notarizationRepo,
		notary:           notary,
		ledgerTimeout:    ledgerTimeout,
	}
}

// List returns the user's data categories, seeding the starter set on first
// read.
func (s *PermissionService) List(ctx context.Context, userID string) ([]*model.DataCategory, error) {
	categories, err := s.categoryRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if len(categories) > 0 {
		return categories, nil
	}

	for _, params := range starterCategories {
		params.UserID = userID
		if _, err := s.categoryRepo.Create(ctx, params); err != nil {
			return nil, apperrors.Database(err)
		}
	}

	categories, err = s.categoryRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return categories, nil
}

// UpdateLevel changes a category's consent level, recomputes its consent
// hash, and kicks off ledger anchoring. The permission write always
// completes before anchoring starts, and anchoring failures never surface.
func (s *PermissionService) UpdateLevel(ctx context.Context, userID, categoryID, level string, price *float64) (*model.DataCategory, error) {
	if !model.IsValidPermissionLevel(level) {
		return nil, apperrors.InvalidInput("level", "must be denied, restricted or monetized")
	}

	category, err := s.categoryRepo.FindByID(ctx, categoryID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if category == nil || category.UserID != userID {
		return nil, apperrors.NotFound("Data category")
	}

	hash := consent.ComputeHash(userID, category.Name, level)

	updated, err := s.categoryRepo.UpdateLevel(ctx, categoryID, level, price, hash)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if updated == nil {
		return nil, apperrors.NotFound("Data category")
	}

	activityStatus := model.ActivityStatusActive
	if level == model.PermissionDenied {
		activityStatus = model.ActivityStatusBlocked
	}
	s.appendActivity(ctx, userID, updated.Source,
		"Updated permission for "+updated.Name+" to "+level, activityStatus)

	// Fire-and-forget: anchoring runs on its own context so a finished
	// HTTP request does not cancel it mid-submission.
	go s.anchorAndRecord(userID, updated.ID, updated.Name, hash)

	return updated, nil
}

// anchorAndRecord anchors one consent hash and persists the attestation.
// Every error path ends in a log line; the permission change has already
// been committed.
func (s *PermissionService) anchorAndRecord(userID, categoryID, categoryName, hash string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.ledgerTimeout)
	defer cancel()

	signature, err := s.notary.AnchorConsent(ctx, userID, categoryName, hash)
	if err != nil {
		log.Error().Err(err).Str("category", categoryName).Msg("consent anchoring failed")
		return
	}
	if signature == "" {
		// Notary not configured; nothing to record.
		return
	}

	if _, err := s.notarizationRepo.Create(ctx, userID, categoryID, hash, &signature); err != nil {
		log.Error().Err(err).Str("signature", signature).Msg("failed to persist notarization record")
		return
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventConsentAnchored,
		UserID: userID,
		Details: map[string]interface{}{
			"category":  categoryName,
			"signature": signature,
		},
	})
}

// RevokeAll deletes every connection and denies every data category in one
// transaction, so a concurrent reader sees either the old or the new state.
func (s *PermissionService) RevokeAll(ctx context.Context, userID string) (*RevokeAllResult, error) {
	var result RevokeAllResult

	err := s.runTx(ctx, func(r TxRepos) error {
		deleted, err := r.Connections.DeleteAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		result.ConnectionsRevoked = deleted

		categories, err := r.Categories.FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, category := range categories {
			if category.Level == model.PermissionDenied {
				continue
			}
			hash := consent.ComputeHash(userID, category.Name, model.PermissionDenied)
			if _, err := r.Categories.UpdateLevel(ctx, category.ID, model.PermissionDenied, nil, hash); err != nil {
				return err
			}
			result.PermissionsReset++
		}

		_, err = r.Activity.Append(ctx, model.AppendActivityParams{
			UserID:  userID,
			AppName: "System",
			Action:  "REVOKED ALL DATA ACCESS AND CONNECTIONS",
			Status:  model.ActivityStatusBlocked,
		})
		return err
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	return &result, nil
}

// ListNotarizations returns the user's recent on-chain attestations.
func (s *PermissionService) ListNotarizations(ctx context.Context, userID string, limit int) ([]*model.Notarization, error) {
	notarizations, err := s.notarizationRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return notarizations, nil
}

func (s *PermissionService) appendActivity(ctx context.Context, userID, appName, action, status string) {
	_, err := s.activityRepo.Append(ctx, model.AppendActivityParams{
		UserID:  userID,
		AppName: appName,
		Action:  action,
		Status:  status,
	})
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("failed to append activity log")
	}
}
