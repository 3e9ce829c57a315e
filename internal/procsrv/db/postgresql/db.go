// Package postgresql implements the procline store against PostgreSQL.
package postgresql

import (
	"context"
	"database/sql"

	"github.com/procline/procline/internal/common/apperrors"
	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/db/dbmanager"
	"github.com/procline/procline/internal/procsrv/proccommon"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
)

// metadataManager owns workspaces, environments, procedures and templates.
// ledgerManager owns the append-only stored_procedure_versions table; it is
// kept separate so the ledger surface can be wrapped (e.g. cached)
// independently of the mutable metadata.
type metadataManager struct {
	c dbmanager.ScopedConn
	l *ledgerManager
}

type ledgerManager struct {
	c dbmanager.ScopedConn
}

type connectionManager struct {
	c dbmanager.ScopedConn
}

func (mm *metadataManager) conn() *sql.Conn {
	return mm.c.Conn()
}

func (lm *ledgerManager) conn() *sql.Conn {
	return lm.c.Conn()
}

// NewProclineDb wires the three managers over a single scoped connection.
func NewProclineDb(c dbmanager.ScopedConn) (*metadataManager, *ledgerManager, *connectionManager) {
	lm := &ledgerManager{c: c}
	mm := &metadataManager{c: c, l: lm}
	cm := &connectionManager{c: c}
	return mm, lm, cm
}

func workspaceIdFromContext(ctx context.Context) (types.WorkspaceId, apperrors.Error) {
	workspaceID := proccommon.WorkspaceIdFromContext(ctx)
	if workspaceID == "" {
		log.Ctx(ctx).Error().Msg("missing workspace ID in context")
		return "", dberror.ErrMissingWorkspaceID
	}
	return workspaceID, nil
}

// Scope management passthroughs.

func (cm *connectionManager) AddScopes(ctx context.Context, scopes map[string]string) {
	if err := cm.c.AddScopes(ctx, scopes); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to add scopes")
	}
}

func (cm *connectionManager) AddScope(ctx context.Context, scope, value string) {
	if err := cm.c.AddScope(ctx, scope, value); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to add scope")
	}
}

func (cm *connectionManager) DropScopes(ctx context.Context, scopes []string) error {
	return cm.c.DropScopes(ctx, scopes)
}

func (cm *connectionManager) DropScope(ctx context.Context, scope string) error {
	return cm.c.DropScope(ctx, scope)
}

func (cm *connectionManager) DropAllScopes(ctx context.Context) error {
	return cm.c.DropAllScopes(ctx)
}

func (cm *connectionManager) Close(ctx context.Context) {
	cm.c.Close(ctx)
}
