package dbmanager

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
)

// ScopedDb hands out scope-aware connections from an underlying pool.
type ScopedDb interface {
	// Conn acquires a pooled connection with bounded lock and statement
	// timeouts and no scopes set.
	Conn(ctx context.Context) (ScopedConn, error)
	// Stats reports how many connections were handed out and returned.
	Stats() (requests, returns uint64)
}

// ScopedConn is a pooled connection together with its session scopes. The
// workspace scope set here is what the SQL layer's row scoping relies on;
// scopes the pool was not configured with are silently ignored.
type ScopedConn interface {
	// AddScopes sets the given scope/value pairs on the session.
	AddScopes(ctx context.Context, scopes map[string]string) error
	// DropScopes resets the given scopes on the session.
	DropScopes(ctx context.Context, scopes []string) error
	// AddScope sets a single scope on the session.
	AddScope(ctx context.Context, scope, value string) error
	// DropScope resets a single scope on the session.
	DropScope(ctx context.Context, scope string) error
	// DropAllScopes resets every configured scope on the session.
	DropAllScopes(ctx context.Context) error
	// Conn exposes the underlying database/sql connection.
	Conn() *sql.Conn
	// Close resets all scopes and returns the connection to the pool.
	Close(ctx context.Context)
}

// NewScopedDb builds the pool for the configured backend. Only PostgreSQL
// is implemented; an unknown dbtype returns nil.
func NewScopedDb(ctx context.Context, dbtype string, configuredScopes []string) ScopedDb {
	switch dbtype {
	case "postgresql":
		db, err := NewPostgresqlDb(configuredScopes)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to create postgresql pool")
			return nil
		}
		return db
	}
	return nil
}
