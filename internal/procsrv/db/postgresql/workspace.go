package postgresql

import (
	"context"
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/procline/procline/internal/common/apperrors"
	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/db/models"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
)

func (mm *metadataManager) CreateWorkspace(ctx context.Context, workspace *models.Workspace) apperrors.Error {
	if workspace.WorkspaceID == "" {
		return dberror.ErrInvalidInput.Msg("workspace ID cannot be empty")
	}
	if workspace.Name == "" {
		return dberror.ErrInvalidInput.Msg("workspace name cannot be empty")
	}

	query := `
		INSERT INTO workspaces (workspace_id, name)
		VALUES ($1, $2)
		RETURNING workspace_id, name, created_at, updated_at;
	`
	row := mm.conn().QueryRowContext(ctx, query, workspace.WorkspaceID, workspace.Name)
	err := row.Scan(&workspace.WorkspaceID, &workspace.Name, &workspace.CreatedAt, &workspace.UpdatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			if pgErr.Code == "23505" {
				log.Ctx(ctx).Info().Str("workspace_id", string(workspace.WorkspaceID)).Msg("workspace already exists")
				return dberror.ErrAlreadyExists.Msg("workspace already exists")
			}
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to insert workspace")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

func (mm *metadataManager) GetWorkspace(ctx context.Context, workspaceID types.WorkspaceId) (*models.Workspace, apperrors.Error) {
	if workspaceID == "" {
		return nil, dberror.ErrInvalidInput.Msg("workspace ID cannot be empty")
	}

	query := `
		SELECT workspace_id, name, created_at, updated_at
		FROM workspaces
		WHERE workspace_id = $1;
	`
	row := mm.conn().QueryRowContext(ctx, query, workspaceID)
	workspace := &models.Workspace{}
	err := row.Scan(&workspace.WorkspaceID, &workspace.Name, &workspace.CreatedAt, &workspace.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Ctx(ctx).Info().Str("workspace_id", string(workspaceID)).Msg("workspace not found")
			return nil, dberror.ErrNotFound.Msg("workspace not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve workspace")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return workspace, nil
}

// DeleteWorkspace removes the workspace row; environments, procedures and
// their ledger entries go with it through the cascade.
func (mm *metadataManager) DeleteWorkspace(ctx context.Context, workspaceID types.WorkspaceId) apperrors.Error {
	if workspaceID == "" {
		return dberror.ErrInvalidInput.Msg("workspace ID cannot be empty")
	}

	query := `
		DELETE FROM workspaces
		WHERE workspace_id = $1;
	`
	result, err := mm.conn().ExecContext(ctx, query, workspaceID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to delete workspace")
		return dberror.ErrDatabase.Err(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve result information")
		return dberror.ErrDatabase.Err(err)
	}
	if rowsAffected == 0 {
		log.Ctx(ctx).Info().Str("workspace_id", string(workspaceID)).Msg("workspace not found")
		return dberror.ErrNotFound.Msg("workspace not found")
	}
	return nil
}
