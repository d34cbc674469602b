package model

import "time"

const (
	PermissionDenied     = "denied"
	PermissionRestricted = "restricted"
	PermissionMonetized  = "monetized"
)

func IsValidPermissionLevel(level string) bool {
	switch level {
	case PermissionDenied, PermissionRestricted, PermissionMonetized:
		return true
	}
	return false
}

// DataCategory is one consent-scoped slice of user data. ConsentHash is
// overwritten on every level or price change and is unique per transition.
type DataCategory struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"userId"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description"`
	Source        string    `db:"source" json:"source"`
	Level         string    `db:"level" json:"level"`
	Price         float64   `db:"price" json:"price"`
	ConsentHash   *string   `db:"consent_hash" json:"consentHash,omitempty"`
	LastUpdatedAt time.Time `db:"last_updated_at" json:"lastUpdatedAt"`
}

type CreateDataCategoryParams struct {
	UserID      string
	Name        string
	Description string
	Source      string
	Level       string
	Price       float64
}

// Notarization is the optional on-chain attestation for a consent hash.
// It is never authoritative: the permission is valid locally whether or not
// anchoring succeeded.
type Notarization struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"userId"`
	CategoryID      string     `db:"category_id" json:"categoryId"`
	ConsentHash     string     `db:"consent_hash" json:"consentHash"`
	LedgerSignature *string    `db:"ledger_signature" json:"ledgerSignature"`
	AnchoredAt      *time.Time `db:"anchored_at" json:"anchoredAt"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}
