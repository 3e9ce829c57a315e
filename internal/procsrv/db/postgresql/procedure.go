package postgresql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/procline/procline/internal/common/apperrors"
	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/db/models"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
)

const procedureColumns = `
	procedure_id, workspace_id, name, status, sql_draft, sql_published, published_at,
	created_by, updated_by, created_at, updated_at`

func scanProcedure(row interface{ Scan(...any) error }, proc *models.StoredProcedure) error {
	var createdBy, updatedBy sql.NullString
	err := row.Scan(
		&proc.ProcedureID,
		&proc.WorkspaceID,
		&proc.Name,
		&proc.Status,
		&proc.SQLDraft,
		&proc.SQLPublished,
		&proc.PublishedAt,
		&createdBy,
		&updatedBy,
		&proc.CreatedAt,
		&proc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	proc.CreatedBy = types.UserId(createdBy.String)
	proc.UpdatedBy = types.UserId(updatedBy.String)
	return nil
}

func mapProcedureWriteError(ctx context.Context, err error, name string) apperrors.Error {
	if pgErr, ok := err.(*pgconn.PgError); ok {
		if pgErr.Code == "23505" && pgErr.ConstraintName == "unique_name_workspace" {
			log.Ctx(ctx).Info().Str("name", name).Msg("procedure name already exists in workspace")
			return dberror.ErrAlreadyExists.Msg("procedure name already exists in workspace")
		}
		if pgErr.Code == "23514" && pgErr.ConstraintName == "stored_procedures_name_check" {
			log.Ctx(ctx).Error().Str("name", name).Msg("invalid procedure name format")
			return dberror.ErrInvalidInput.Msg("invalid procedure name format")
		}
		if pgErr.ConstraintName == "stored_procedures_workspace_id_fkey" {
			log.Ctx(ctx).Info().Msg("workspace not found")
			return dberror.ErrInvalidWorkspace
		}
	}
	log.Ctx(ctx).Error().Err(err).Str("name", name).Msg("procedure write failed")
	return dberror.ErrDatabase.Err(err)
}

func (mm *metadataManager) CreateProcedure(ctx context.Context, proc *models.StoredProcedure) apperrors.Error {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return dberr
	}
	proc.WorkspaceID = workspaceID

	if proc.Name == "" {
		return dberror.ErrInvalidInput.Msg("name cannot be empty")
	}

	query := `
		INSERT INTO stored_procedures (workspace_id, name, status, sql_draft, created_by, updated_by)
		VALUES ($1, $2, 'draft', $3, $4, $4)
		RETURNING ` + procedureColumns + `;
	`
	row := mm.conn().QueryRowContext(ctx, query, proc.WorkspaceID, proc.Name, proc.SQLDraft, nullableActor(proc.CreatedBy))
	if err := scanProcedure(row, proc); err != nil {
		return mapProcedureWriteError(ctx, err, proc.Name)
	}
	return nil
}

func (mm *metadataManager) GetProcedure(ctx context.Context, procedureID uuid.UUID) (*models.StoredProcedure, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}

	query := `
		SELECT ` + procedureColumns + `
		FROM stored_procedures
		WHERE procedure_id = $1 AND workspace_id = $2;
	`
	row := mm.conn().QueryRowContext(ctx, query, procedureID, workspaceID)
	proc := &models.StoredProcedure{}
	if err := scanProcedure(row, proc); err != nil {
		if err == sql.ErrNoRows {
			log.Ctx(ctx).Info().Str("procedure_id", procedureID.String()).Msg("procedure not found")
			return nil, dberror.ErrNotFound.Msg("procedure not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve procedure")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return proc, nil
}

func (mm *metadataManager) GetProcedureByName(ctx context.Context, name string) (*models.StoredProcedure, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}

	query := `
		SELECT ` + procedureColumns + `
		FROM stored_procedures
		WHERE name = $1 AND workspace_id = $2;
	`
	row := mm.conn().QueryRowContext(ctx, query, name, workspaceID)
	proc := &models.StoredProcedure{}
	if err := scanProcedure(row, proc); err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("procedure not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve procedure by name")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return proc, nil
}

// ProcedureNameExists reports whether a procedure with the given name exists
// in the context workspace, optionally excluding one procedure id (for
// renames).
func (mm *metadataManager) ProcedureNameExists(ctx context.Context, name string, excludeID uuid.UUID) (bool, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return false, dberr
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM stored_procedures
			WHERE name = $1 AND workspace_id = $2 AND procedure_id <> $3
		);
	`
	var exists bool
	err := mm.conn().QueryRowContext(ctx, query, name, workspaceID, excludeID).Scan(&exists)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to check procedure name")
		return false, dberror.ErrDatabase.Err(err)
	}
	return exists, nil
}

func (mm *metadataManager) ListProcedures(ctx context.Context) ([]models.StoredProcedure, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}

	query := `
		SELECT ` + procedureColumns + `
		FROM stored_procedures
		WHERE workspace_id = $1
		ORDER BY name;
	`
	rows, err := mm.conn().QueryContext(ctx, query, workspaceID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list procedures")
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var procs []models.StoredProcedure
	for rows.Next() {
		var proc models.StoredProcedure
		if err := scanProcedure(rows, &proc); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to scan procedure row")
			return nil, dberror.ErrDatabase.Err(err)
		}
		procs = append(procs, proc)
	}
	if err := rows.Err(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("error after scanning procedures")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return procs, nil
}

// UpdateProcedureDraft mutates only the draft body and attribution; the
// published snapshot and status are untouched in every case.
func (mm *metadataManager) UpdateProcedureDraft(ctx context.Context, procedureID uuid.UUID, sqlDraft string, actor types.UserId) (*models.StoredProcedure, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}

	query := `
		UPDATE stored_procedures
		SET sql_draft = $3, updated_by = $4
		WHERE procedure_id = $1 AND workspace_id = $2
		RETURNING ` + procedureColumns + `;
	`
	row := mm.conn().QueryRowContext(ctx, query, procedureID, workspaceID, sqlDraft, nullableActor(actor))
	proc := &models.StoredProcedure{}
	if err := scanProcedure(row, proc); err != nil {
		if err == sql.ErrNoRows {
			log.Ctx(ctx).Info().Str("procedure_id", procedureID.String()).Msg("procedure not found")
			return nil, dberror.ErrNotFound.Msg("procedure not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to update draft")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return proc, nil
}

func (mm *metadataManager) RenameProcedure(ctx context.Context, procedureID uuid.UUID, newName string, actor types.UserId) (*models.StoredProcedure, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}
	if newName == "" {
		return nil, dberror.ErrInvalidInput.Msg("name cannot be empty")
	}

	query := `
		UPDATE stored_procedures
		SET name = $3, updated_by = $4
		WHERE procedure_id = $1 AND workspace_id = $2
		RETURNING ` + procedureColumns + `;
	`
	row := mm.conn().QueryRowContext(ctx, query, procedureID, workspaceID, newName, nullableActor(actor))
	proc := &models.StoredProcedure{}
	if err := scanProcedure(row, proc); err != nil {
		if err == sql.ErrNoRows {
			log.Ctx(ctx).Info().Str("procedure_id", procedureID.String()).Msg("procedure not found")
			return nil, dberror.ErrNotFound.Msg("procedure not found")
		}
		return nil, mapProcedureWriteError(ctx, err, newName)
	}
	return proc, nil
}

// DeleteProcedure removes the procedure; its ledger history goes with it
// through the cascade.
func (mm *metadataManager) DeleteProcedure(ctx context.Context, procedureID uuid.UUID) apperrors.Error {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return dberr
	}

	query := `
		DELETE FROM stored_procedures
		WHERE procedure_id = $1 AND workspace_id = $2;
	`
	result, err := mm.conn().ExecContext(ctx, query, procedureID, workspaceID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to delete procedure")
		return dberror.ErrDatabase.Err(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve result information")
		return dberror.ErrDatabase.Err(err)
	}
	if rowsAffected == 0 {
		log.Ctx(ctx).Info().Str("procedure_id", procedureID.String()).Msg("procedure not found")
		return dberror.ErrNotFound.Msg("procedure not found")
	}
	return nil
}

// PublishProcedure performs the atomic publish: under one transaction it
// locks the procedure row, validates the draft, appends the ledger entry
// with the next version number, and flips the published snapshot. A crash
// or conflict anywhere rolls the whole thing back; the procedure is never
// published without its matching ledger row.
func (mm *metadataManager) PublishProcedure(ctx context.Context, procedureID uuid.UUID, actor types.UserId) (proc *models.StoredProcedure, entry *models.StoredProcedureVersion, err apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, nil, dberr
	}

	tx, errDb := mm.conn().BeginTx(ctx, nil)
	if errDb != nil {
		log.Ctx(ctx).Error().Err(errDb).Msg("failed to begin transaction")
		return nil, nil, dberror.ErrDatabase.Err(errDb)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
				log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
			}
		}
	}()

	// Lock the procedure row; concurrent publishes on the same procedure
	// serialize here.
	query := `
		SELECT ` + procedureColumns + `
		FROM stored_procedures
		WHERE procedure_id = $1 AND workspace_id = $2
		FOR UPDATE;
	`
	proc = &models.StoredProcedure{}
	if scanErr := scanProcedure(tx.QueryRowContext(ctx, query, procedureID, workspaceID), proc); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			log.Ctx(ctx).Info().Str("procedure_id", procedureID.String()).Msg("procedure not found")
			return nil, nil, dberror.ErrNotFound.Msg("procedure not found")
		}
		log.Ctx(ctx).Error().Err(scanErr).Msg("failed to lock procedure for publish")
		return nil, nil, dberror.ErrDatabase.Err(scanErr)
	}

	if strings.TrimSpace(proc.SQLDraft) == "" {
		return nil, nil, dberror.ErrEmptyDraft
	}

	entry = &models.StoredProcedureVersion{
		ProcedureID: proc.ProcedureID,
		WorkspaceID: proc.WorkspaceID,
		Source:      types.VersionSourcePublished,
		Name:        proc.Name,
		SQLText:     proc.SQLDraft,
		CreatedBy:   actor,
	}
	if err = mm.l.createVersionWithTransaction(ctx, entry, tx); err != nil {
		return nil, nil, err
	}

	query = `
		UPDATE stored_procedures
		SET status = 'published', sql_published = sql_draft, published_at = now(), updated_by = $3
		WHERE procedure_id = $1 AND workspace_id = $2
		RETURNING ` + procedureColumns + `;
	`
	if scanErr := scanProcedure(tx.QueryRowContext(ctx, query, procedureID, workspaceID, nullableActor(actor)), proc); scanErr != nil {
		log.Ctx(ctx).Error().Err(scanErr).Msg("failed to update procedure on publish")
		return nil, nil, dberror.ErrDatabase.Err(scanErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		log.Ctx(ctx).Error().Err(commitErr).Msg("failed to commit publish transaction")
		return nil, nil, dberror.ErrDatabase.Err(commitErr)
	}
	return proc, entry, nil
}
