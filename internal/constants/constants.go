package constants

import "time"

const (
	// ReignLockTTL bounds how long a per-reign apply lock may be held before
	// a stale holder is considered dead and the lock can be reclaimed.
	ReignLockTTL = 10 * time.Second

	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	ShutdownTimeout = 5 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	// RebuildConcurrency caps parallel snapshot refreshes during a bulk
	// rebuild sweep. Per-save pipelines are always sequential.
	RebuildConcurrency = 4

	// SearchCandidateLimit caps the coarse attribute LIKE query used when
	// collecting candidate matches for counter recomputation.
	SearchCandidateLimit = 10000
)
