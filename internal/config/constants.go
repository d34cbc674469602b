package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Maximum accepted request body size
const MaxBodyBytes = 1 << 20

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Session cookie lifetime (email, wallet, and OAuth logins)
const SessionMaxAge = 7 * 24 * time.Hour

// Connection data counts are refreshed from the provider at most once per hour
const DataCountRefreshInterval = time.Hour

// Rate limiting for unauthenticated auth endpoints
const (
	AuthRateLimitPerMin = 30
	AuthRateLimitWindow = time.Minute
)
