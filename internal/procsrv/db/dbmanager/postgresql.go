// Package dbmanager provides the PostgreSQL connection pool with support
// for per-connection session scopes. Scopes are session variables (such as
// the current workspace) that the store layer can rely on for row scoping.
package dbmanager

import (
	"context"
	"database/sql"
	"sync/atomic"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/procline/procline/internal/procsrv/db/config"
	"github.com/rs/zerolog/log"
)

// postgresConn represents a single pooled connection with its scopes.
type postgresConn struct {
	conn             *sql.Conn
	cancel           context.CancelFunc
	scopes           map[string]string
	configuredScopes []string
	pool             *postgresPool
}

// postgresPool represents a pool of PostgreSQL database connections.
// Counters are atomic; connections are handed out concurrently.
type postgresPool struct {
	configuredScopes []string
	connRequests     atomic.Uint64
	connReturns      atomic.Uint64
	db               *sql.DB
}

// NewPostgresqlDb creates a new PostgreSQL database connection pool with the
// given configured scopes. It returns the pool and an error, if any.
func NewPostgresqlDb(configuredScopes []string) (ScopedDb, error) {
	dsn := config.ProclineDsn()

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Error().Err(err).Msg("failed to open db")
		return nil, err
	}

	// Ping the database to see if the connection is valid.
	err = sqlDB.Ping()
	if err != nil {
		log.Error().Err(err).Msg("failed to ping db")
		return nil, err
	}

	return &postgresPool{
		configuredScopes: configuredScopes,
		db:               sqlDB,
	}, nil
}

// Conn returns a new connection to the PostgreSQL database from the pool.
func (p *postgresPool) Conn(ctx context.Context) (ScopedConn, error) {
	ctx, cancel := context.WithCancel(ctx)

	conn, err := p.db.Conn(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to obtain connection")
		cancel()
		return nil, err
	}

	// Bound lock and statement waits per connection so a stuck row lock
	// surfaces as an error instead of holding the pool hostage.
	_, err = conn.ExecContext(ctx, "SET lock_timeout = '5s'")
	if err != nil {
		log.Error().Err(err).Msg("failed to set lock timeout")
		conn.Close()
		cancel()
		return nil, err
	}
	_, err = conn.ExecContext(ctx, "SET statement_timeout = '5s'")
	if err != nil {
		log.Error().Err(err).Msg("failed to set statement timeout")
		conn.Close()
		cancel()
		return nil, err
	}

	h := &postgresConn{
		configuredScopes: p.configuredScopes,
		scopes:           make(map[string]string),
		cancel:           cancel,
		pool:             p,
		conn:             conn,
	}

	// Clean up the scopes, just in case.
	if err := h.DropScopes(ctx, p.configuredScopes); err != nil {
		h.Close(ctx)
		return nil, err
	}

	p.connRequests.Add(1)
	return h, nil
}

// Stats returns the number of connection requests and returns.
func (p *postgresPool) Stats() (requests, returns uint64) {
	return p.connRequests.Load(), p.connReturns.Load()
}

// Close cleans up the scopes and returns the connection back to the pool.
func (h *postgresConn) Close(ctx context.Context) {
	h.DropAllScopes(ctx)
	if h.cancel != nil {
		h.cancel()
	}
	if h.conn != nil {
		h.conn.Close()
	}
	h.pool.connReturns.Add(1)
}

// IsConfiguredScope checks if the given scope is configured for this pool.
func (h *postgresConn) IsConfiguredScope(scope string) bool {
	for _, s := range h.configuredScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AddScopes adds the given scopes to the connection session.
func (h *postgresConn) AddScopes(ctx context.Context, scopes map[string]string) error {
	if h.conn == nil {
		return nil
	}
	for scope, value := range scopes {
		if err := h.AddScope(ctx, scope, value); err != nil {
			return err
		}
	}
	return nil
}

// AddScope adds a single scope to the connection session.
func (h *postgresConn) AddScope(ctx context.Context, scope, value string) error {
	if h.conn == nil {
		return nil
	}
	if !h.IsConfiguredScope(scope) {
		return nil
	}
	// SET does not take bind parameters; set_config does.
	_, err := h.conn.ExecContext(ctx, "SELECT set_config($1, $2, false)", scope, value)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("scope", scope).Msg("failed to set scope")
		return err
	}
	h.scopes[scope] = value
	return nil
}

// AuthorizedScopes returns the currently set scopes on the connection.
func (h *postgresConn) AuthorizedScopes() map[string]string {
	return h.scopes
}

// DropScopes drops the given scopes from the connection session.
func (h *postgresConn) DropScopes(ctx context.Context, scopes []string) error {
	if h.conn == nil {
		log.Ctx(ctx).Error().Msg("no connection")
		return nil // don't return error and panic
	}
	for _, scope := range scopes {
		if err := h.DropScope(ctx, scope); err != nil {
			return err
		}
	}
	return nil
}

// DropScope drops a single scope from the connection session.
func (h *postgresConn) DropScope(ctx context.Context, scope string) error {
	if h.conn == nil {
		return nil // don't return error and panic
	}
	_, err := h.conn.ExecContext(ctx, "SELECT set_config($1, '', false)", scope)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("scope", scope).Msg("failed to reset scope")
		return err
	}
	delete(h.scopes, scope)
	return nil
}

// DropAllScopes drops all the configured scopes from the connection.
func (h *postgresConn) DropAllScopes(ctx context.Context) error {
	return h.DropScopes(ctx, h.configuredScopes)
}

// Conn returns the underlying connection.
func (h *postgresConn) Conn() *sql.Conn {
	return h.conn
}
