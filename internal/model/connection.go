package model

import "time"

const (
	ConnectionStatusConnected      = "connected"
	ConnectionStatusActionRequired = "action_required"
)

// Connection is one linked provider account. Keyed uniquely by
// (user_id, provider); every successful OAuth callback or manual connect
// replaces the row via upsert.
type Connection struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"userId"`
	Provider     string    `db:"provider" json:"provider"`
	Status       string    `db:"status" json:"status"`
	DataType     string    `db:"data_type" json:"dataType"`
	AccessToken  *string   `db:"access_token" json:"-"`
	DataCount    int       `db:"data_count" json:"dataCount"`
	TrustScore   int       `db:"trust_score" json:"trustScore"`
	LastSyncedAt time.Time `db:"last_synced_at" json:"lastSyncedAt"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertConnectionParams struct {
	UserID      string
	Provider    string
	Status      string
	DataType    string
	AccessToken *string
	DataCount   int
	TrustScore  int
}

// ProviderDefault carries the fallback trust/usage heuristics used when a
// provider exposes no better signal. The table is passed into the normalizer
// explicitly so tests can assert on it.
type ProviderDefault struct {
	TrustScore int
	DataCount  int
	DataType   string
}
