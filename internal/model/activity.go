package model

import "time"

const (
	ActivityStatusApproved = "approved"
	ActivityStatusActive   = "active"
	ActivityStatusBlocked  = "blocked"
)

type ActivityLog struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	AppName   string    `db:"app_name" json:"appName"`
	Action    string    `db:"action" json:"action"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type AppendActivityParams struct {
	UserID  string
	AppName string
	Action  string
	Status  string
}
