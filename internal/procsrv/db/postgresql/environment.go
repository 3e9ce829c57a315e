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

const environmentColumns = `
	environment_id, workspace_id, host, port, username, password_enc, database_name,
	connection_timeout, encrypt, connection_status, last_tested_at,
	created_by, updated_by, created_at, updated_at`

func scanEnvironment(row interface{ Scan(...any) error }, env *models.Environment) error {
	var createdBy, updatedBy sql.NullString
	err := row.Scan(
		&env.EnvironmentID,
		&env.WorkspaceID,
		&env.Host,
		&env.Port,
		&env.Username,
		&env.PasswordEnc,
		&env.Database,
		&env.ConnectionTimeout,
		&env.Encrypt,
		&env.ConnectionStatus,
		&env.LastTestedAt,
		&createdBy,
		&updatedBy,
		&env.CreatedAt,
		&env.UpdatedAt,
	)
	if err != nil {
		return err
	}
	env.CreatedBy = types.UserId(createdBy.String)
	env.UpdatedBy = types.UserId(updatedBy.String)
	return nil
}

// UpsertEnvironment creates the workspace's environment row or replaces its
// fields in place. resetStatus forces connection_status back to unknown;
// the vault sets it when any connection-identity field changed. The
// workspace_id UNIQUE constraint keeps the row single per workspace even
// under concurrent upserts.
func (mm *metadataManager) UpsertEnvironment(ctx context.Context, env *models.Environment, resetStatus bool) apperrors.Error {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return dberr
	}
	env.WorkspaceID = workspaceID

	if env.Host == "" {
		return dberror.ErrInvalidInput.Msg("host cannot be empty")
	}
	if len(env.PasswordEnc) == 0 {
		return dberror.ErrInvalidInput.Msg("password cannot be empty")
	}

	query := `
		INSERT INTO environments (workspace_id, host, port, username, password_enc, database_name,
			connection_timeout, encrypt, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (workspace_id) DO UPDATE SET
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			username = EXCLUDED.username,
			password_enc = EXCLUDED.password_enc,
			database_name = EXCLUDED.database_name,
			connection_timeout = EXCLUDED.connection_timeout,
			encrypt = EXCLUDED.encrypt,
			updated_by = EXCLUDED.updated_by,
			connection_status = CASE WHEN $10 THEN 'unknown' ELSE environments.connection_status END
		RETURNING ` + environmentColumns + `;
	`
	row := mm.conn().QueryRowContext(ctx, query,
		env.WorkspaceID, env.Host, env.Port, env.Username, env.PasswordEnc, env.Database,
		env.ConnectionTimeout, env.Encrypt, nullableActor(env.UpdatedBy), resetStatus)
	err := scanEnvironment(row, env)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			if pgErr.ConstraintName == "environments_workspace_id_fkey" {
				log.Ctx(ctx).Info().Str("workspace_id", string(workspaceID)).Msg("workspace not found")
				return dberror.ErrInvalidWorkspace
			}
			if pgErr.Code == "23514" && pgErr.ConstraintName == "environments_port_check" {
				log.Ctx(ctx).Error().Int("port", env.Port).Msg("invalid port")
				return dberror.ErrInvalidInput.Msg("invalid port")
			}
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to upsert environment")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

func (mm *metadataManager) GetEnvironment(ctx context.Context) (*models.Environment, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}

	query := `
		SELECT ` + environmentColumns + `
		FROM environments
		WHERE workspace_id = $1;
	`
	row := mm.conn().QueryRowContext(ctx, query, workspaceID)
	env := &models.Environment{}
	err := scanEnvironment(row, env)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Ctx(ctx).Info().Str("workspace_id", string(workspaceID)).Msg("environment not found")
			return nil, dberror.ErrNotFound.Msg("environment not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve environment")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return env, nil
}

func (mm *metadataManager) DeleteEnvironment(ctx context.Context) apperrors.Error {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return dberr
	}

	query := `
		DELETE FROM environments
		WHERE workspace_id = $1;
	`
	result, err := mm.conn().ExecContext(ctx, query, workspaceID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to delete environment")
		return dberror.ErrDatabase.Err(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve result information")
		return dberror.ErrDatabase.Err(err)
	}
	if rowsAffected == 0 {
		log.Ctx(ctx).Info().Str("workspace_id", string(workspaceID)).Msg("environment not found")
		return dberror.ErrNotFound.Msg("environment not found")
	}
	return nil
}

// BeginConnectionTest moves the environment into the testing state. The
// transition is a conditional update: a second caller racing on the same
// workspace sees zero rows and gets ErrTestInProgress rather than starting
// a second probe.
func (mm *metadataManager) BeginConnectionTest(ctx context.Context, actor types.UserId) (*models.Environment, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}

	query := `
		UPDATE environments
		SET connection_status = 'testing', updated_by = $2
		WHERE workspace_id = $1 AND connection_status <> 'testing'
		RETURNING ` + environmentColumns + `;
	`
	row := mm.conn().QueryRowContext(ctx, query, workspaceID, nullableActor(actor))
	env := &models.Environment{}
	err := scanEnvironment(row, env)
	if err != nil {
		if err == sql.ErrNoRows {
			// Either no environment, or a test is already running.
			if _, gerr := mm.GetEnvironment(ctx); gerr != nil {
				return nil, gerr
			}
			log.Ctx(ctx).Info().Str("workspace_id", string(workspaceID)).Msg("connection test already in progress")
			return nil, dberror.ErrTestInProgress
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to begin connection test")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return env, nil
}

// FinishConnectionTest records the probe outcome and stamps last_tested_at,
// on success and failure alike, so staleness stays observable.
func (mm *metadataManager) FinishConnectionTest(ctx context.Context, status types.ConnectionStatus) (*models.Environment, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}
	if status != types.ConnectionStatusConnected && status != types.ConnectionStatusFailed {
		return nil, dberror.ErrInvalidInput.Msg("invalid terminal connection status")
	}

	query := `
		UPDATE environments
		SET connection_status = $2, last_tested_at = now()
		WHERE workspace_id = $1 AND connection_status = 'testing'
		RETURNING ` + environmentColumns + `;
	`
	row := mm.conn().QueryRowContext(ctx, query, workspaceID, status)
	env := &models.Environment{}
	err := scanEnvironment(row, env)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Ctx(ctx).Info().Str("workspace_id", string(workspaceID)).Msg("no connection test in progress")
			return nil, dberror.ErrNotFound.Msg("no connection test in progress")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to finish connection test")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return env, nil
}

func nullableActor(actor types.UserId) sql.NullString {
	return sql.NullString{String: string(actor), Valid: actor != ""}
}
