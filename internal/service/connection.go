package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veridata/consent-server-go/internal/config"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/model"
	"github.com/veridata/consent-server-go/internal/repository"
	"github.com/veridata/consent-server-go/internal/util"
)

// DefaultProviderTable maps provider display names to the fallback trust
// score, data count and data-type label used when the provider exposes no
// usage signal of its own. Passed into the service explicitly so tests can
// assert against it.
var DefaultProviderTable = map[string]model.ProviderDefault{
	model.ProviderNameGoogle:  {TrustScore: 85, DataCount: 1240, DataType: "Email, Docs, Drive"},
	model.ProviderNameTwitter: {TrustScore: 62, DataCount: 432, DataType: "Social Posts, Interactions"},
	model.ProviderNameGitHub:  {TrustScore: 92, DataCount: 156, DataType: "Code Repositories"},
	"Dropbox":                 {TrustScore: 78, DataCount: 850, DataType: "Files, Documents"},
	"Meta":                    {TrustScore: 45, DataCount: 2100, DataType: "Social Profile, Messages"},
	"LinkedIn":                {TrustScore: 70, DataCount: 320, DataType: "Professional Profile"},
	"Spotify":                 {TrustScore: 80, DataCount: 540, DataType: "Listening History"},
}

// FallbackDefault applies to providers absent from the table.
var FallbackDefault = model.ProviderDefault{TrustScore: 50, DataCount: 100, DataType: "General"}

// DataCountFetcher re-reads a provider's usage-count signal for an existing
// connection. Implemented by OAuthService.
type DataCountFetcher interface {
	FetchDataCount(ctx context.Context, providerName, accessToken string) (int, error)
}

// ConnectionService normalizes provider profiles into Connection records.
type ConnectionService struct {
	connRepo      repository.ConnectionRepository
	activityRepo  repository.ActivityLogRepository
	fetcher       DataCountFetcher
	defaults      map[string]model.ProviderDefault
	encryptionKey string
}

func NewConnectionService(
	connRepo repository.ConnectionRepository,
	activityRepo repository.ActivityLogRepository,
	fetcher DataCountFetcher,
	defaults map[string]model.ProviderDefault,
	encryptionKey string,
) *ConnectionService {
	return &ConnectionService{
		connRepo:      connRepo,
		activityRepo:  activityRepo,
		fetcher:       fetcher,
		defaults:      defaults,
		encryptionKey: encryptionKey,
	}
}

func (s *ConnectionService) defaultsFor(provider string) model.ProviderDefault {
	if def, ok := s.defaults[provider]; ok {
		return def
	}
	return FallbackDefault
}

// Upsert persists a completed OAuth flow as a connection. Idempotent for an
// unchanged profile: only last_synced_at advances on a repeat call.
func (s *ConnectionService) Upsert(ctx context.Context, userID string, profile *model.NormalizedProfile) (*model.Connection, error) {
	def := s.defaultsFor(profile.Provider)

	dataCount := def.DataCount
	if profile.DataCount >= 0 {
		dataCount = profile.DataCount
	}

	var accessToken *string
	if profile.AccessToken != "" {
		stored, err := s.sealToken(profile.AccessToken)
		if err != nil {
			return nil, err
		}
		accessToken = &stored
	}

	connection, err := s.connRepo.Upsert(ctx, model.UpsertConnectionParams{
		UserID:      userID,
		Provider:    profile.Provider,
		Status:      model.ConnectionStatusConnected,
		DataType:    def.DataType,
		AccessToken: accessToken,
		DataCount:   dataCount,
		TrustScore:  def.TrustScore,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	action := fmt.Sprintf("Connected %s account", profile.Provider)
	if profile.Handle != "" {
		action = fmt.Sprintf("Connected %s account (@%s)", profile.Provider, profile.Handle)
	}
	s.appendActivity(ctx, userID, profile.Provider, action, model.ActivityStatusApproved)

	return connection, nil
}

// Connect records a manual (non-OAuth) connection, e.g. Wallet or Email, or
// any provider the dashboard lists without a linked API.
func (s *ConnectionService) Connect(ctx context.Context, userID, provider, status, dataType string) (*model.Connection, error) {
	if provider == "" || status == "" {
		return nil, apperrors.MissingRequired("provider and status")
	}

	def := s.defaultsFor(provider)
	if dataType == "" {
		dataType = def.DataType
	}

	connection, err := s.connRepo.Upsert(ctx, model.UpsertConnectionParams{
		UserID:     userID,
		Provider:   provider,
		Status:     status,
		DataType:   dataType,
		DataCount:  def.DataCount,
		TrustScore: def.TrustScore,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	activityStatus := model.ActivityStatusActive
	if status == model.ConnectionStatusConnected {
		activityStatus = model.ActivityStatusApproved
	}
	s.appendActivity(ctx, userID, provider, fmt.Sprintf("Connected %s account", provider), activityStatus)

	return connection, nil
}

// List returns the user's connections, refreshing stale data counts from
// providers that expose one. Refresh failures are logged and never fail the
// listing.
func (s *ConnectionService) List(ctx context.Context, userID string) ([]*model.Connection, error) {
	connections, err := s.connRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	refreshBefore := time.Now().Add(-config.DataCountRefreshInterval)
	for i, conn := range connections {
		if conn.AccessToken == nil || !conn.LastSyncedAt.Before(refreshBefore) {
			continue
		}

		token, err := s.openToken(*conn.AccessToken)
		if err != nil {
			log.Error().Err(err).Str("provider", conn.Provider).Msg("failed to decrypt stored access token")
			continue
		}

		count, err := s.fetcher.FetchDataCount(ctx, conn.Provider, token)
		if err != nil {
			log.Warn().Err(err).Str("provider", conn.Provider).Msg("failed to refresh data count")
			continue
		}

		if count != conn.DataCount {
			updated, err := s.connRepo.UpdateDataCount(ctx, conn.ID, count)
			if err != nil {
				log.Error().Err(err).Str("provider", conn.Provider).Msg("failed to persist refreshed data count")
				continue
			}
			connections[i] = updated
		}
	}

	return connections, nil
}

// Disconnect removes one provider connection.
func (s *ConnectionService) Disconnect(ctx context.Context, userID, provider string) error {
	err := s.connRepo.Delete(ctx, userID, provider)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("Connection")
	}
	if err != nil {
		return apperrors.Database(err)
	}

	s.appendActivity(ctx, userID, provider, fmt.Sprintf("Disconnected %s account", provider), model.ActivityStatusBlocked)
	return nil
}

// ListActivity returns the user's recent activity log entries.
func (s *ConnectionService) ListActivity(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	entries, err := s.activityRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return entries, nil
}

func (s *ConnectionService) appendActivity(ctx context.Context, userID, appName, action, status string) {
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

func (s *ConnectionService) sealToken(token string) (string, error) {
	if s.encryptionKey == "" {
		return token, nil
	}
	return util.Encrypt(s.encryptionKey, token)
}

func (s *ConnectionService) openToken(stored string) (string, error) {
	if s.encryptionKey == "" {
		return stored, nil
	}
	return util.Decrypt(s.encryptionKey, stored)
}
