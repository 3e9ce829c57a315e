// Package scopeguard enforces workspace isolation rules that span more
// than one row: name uniqueness inside a workspace, the single-environment
// rule, and ownership of fetched entities. The guards are advisory
// pre-checks; the database constraints remain the source of truth under
// concurrency.
package scopeguard

import (
	"context"

	"github.com/google/uuid"
	"github.com/procline/procline/internal/common/apperrors"
	"github.com/procline/procline/internal/procsrv/db"
	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/proccommon"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
)

// AssertUniqueName fails with ErrAlreadyExists when another procedure in
// the workspace already carries the name. Pass uuid.Nil for excludeID on
// create; pass the procedure's own id on rename.
func AssertUniqueName(ctx context.Context, workspaceID types.WorkspaceId, name string, excludeID uuid.UUID) apperrors.Error {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	exists, err := db.DB(ctx).ProcedureNameExists(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if exists {
		log.Ctx(ctx).Info().Str("name", name).Str("workspace_id", workspaceID.String()).Msg("procedure name already taken")
		return dberror.ErrAlreadyExists.Msg("a procedure with this name already exists in the workspace")
	}
	return nil
}

// AssertSingleEnvironment fails with ErrAlreadyExists when the workspace
// already holds a connection profile. Upserts skip this guard; it exists
// for callers that must create-only.
func AssertSingleEnvironment(ctx context.Context, workspaceID types.WorkspaceId) apperrors.Error {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	_, err := db.DB(ctx).GetEnvironment(ctx)
	if err == nil {
		return dberror.ErrAlreadyExists.Msg("workspace already has a connection profile")
	}
	if err.Is(dberror.ErrNotFound) {
		return nil
	}
	return err
}

// AssertOwnership fails with ErrNotFound when an entity fetched by id
// belongs to a different workspace. Cross-workspace reads must be
// indistinguishable from absence.
func AssertOwnership(workspaceID types.WorkspaceId, entityWorkspaceID types.WorkspaceId) apperrors.Error {
	if workspaceID != entityWorkspaceID {
		return dberror.ErrNotFound.Msg("not found in this workspace")
	}
	return nil
}
