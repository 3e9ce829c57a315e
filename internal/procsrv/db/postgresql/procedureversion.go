package postgresql

import (
	"context"
	"database/sql"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/procline/procline/internal/common/apperrors"
	"github.com/procline/procline/internal/procsrv/db/config"
	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/db/models"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
)

func encodeSQLText(ctx context.Context, text string) []byte {
	if config.CompressLedgerEntries {
		z := snappy.Encode(nil, []byte(text))
		log.Ctx(ctx).Debug().Msgf("raw: %d, compressed: %d", len(text), len(z))
		return z
	}
	return []byte(text)
}

func decodeSQLText(data []byte) (string, error) {
	if config.CompressLedgerEntries {
		raw, err := snappy.Decode(nil, data)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return string(data), nil
}

// createVersionWithTransaction appends a ledger entry, assigning the next
// version number in the same statement. Callers must hold the procedure row
// lock on the transaction; the unique (procedure_id, version) index
// backstops any race with ErrVersionConflict.
func (lm *ledgerManager) createVersionWithTransaction(ctx context.Context, entry *models.StoredProcedureVersion, tx *sql.Tx) apperrors.Error {
	query := `
		INSERT INTO stored_procedure_versions (procedure_id, workspace_id, version, source, name, sql_text, created_by)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM stored_procedure_versions WHERE procedure_id = $1),
			$3, $4, $5, $6)
		RETURNING version_id, version, created_at;
	`
	row := tx.QueryRowContext(ctx, query,
		entry.ProcedureID, entry.WorkspaceID, entry.Source, entry.Name,
		encodeSQLText(ctx, entry.SQLText), nullableActor(entry.CreatedBy))
	err := row.Scan(&entry.VersionID, &entry.Version, &entry.CreatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			if pgErr.Code == "23505" && pgErr.ConstraintName == "unique_procedure_version" {
				log.Ctx(ctx).Info().Str("procedure_id", entry.ProcedureID.String()).Msg("version number race detected")
				return dberror.ErrVersionConflict
			}
			if pgErr.ConstraintName == "stored_procedure_versions_procedure_id_fkey" {
				log.Ctx(ctx).Info().Str("procedure_id", entry.ProcedureID.String()).Msg("procedure not found")
				return dberror.ErrNotFound.Msg("procedure not found")
			}
		}
		log.Ctx(ctx).Error().Err(err).Str("procedure_id", entry.ProcedureID.String()).Msg("failed to insert version")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// CreateProcedureVersion appends a standalone ledger entry outside of a
// publish, serialized against concurrent appends by the procedure row lock.
func (lm *ledgerManager) CreateProcedureVersion(ctx context.Context, entry *models.StoredProcedureVersion) (err apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return dberr
	}
	entry.WorkspaceID = workspaceID

	tx, errDb := lm.conn().BeginTx(ctx, nil)
	if errDb != nil {
		log.Ctx(ctx).Error().Err(errDb).Msg("failed to begin transaction")
		return dberror.ErrDatabase.Err(errDb)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
				log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
			}
		}
	}()

	lockQuery := `
		SELECT procedure_id FROM stored_procedures
		WHERE procedure_id = $1 AND workspace_id = $2
		FOR UPDATE;
	`
	var lockedID uuid.UUID
	if scanErr := tx.QueryRowContext(ctx, lockQuery, entry.ProcedureID, workspaceID).Scan(&lockedID); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("procedure not found")
		}
		log.Ctx(ctx).Error().Err(scanErr).Msg("failed to lock procedure for version append")
		return dberror.ErrDatabase.Err(scanErr)
	}

	if err = lm.createVersionWithTransaction(ctx, entry, tx); err != nil {
		return err
	}
	if commitErr := tx.Commit(); commitErr != nil {
		log.Ctx(ctx).Error().Err(commitErr).Msg("failed to commit transaction")
		return dberror.ErrDatabase.Err(commitErr)
	}
	return nil
}

func scanVersion(row interface{ Scan(...any) error }, entry *models.StoredProcedureVersion) error {
	var createdBy sql.NullString
	var data []byte
	err := row.Scan(
		&entry.VersionID,
		&entry.ProcedureID,
		&entry.WorkspaceID,
		&entry.Version,
		&entry.Source,
		&entry.Name,
		&data,
		&createdBy,
		&entry.CreatedAt,
	)
	if err != nil {
		return err
	}
	entry.CreatedBy = types.UserId(createdBy.String)
	entry.SQLText, err = decodeSQLText(data)
	return err
}

const versionColumns = `
	version_id, procedure_id, workspace_id, version, source, name, sql_text, created_by, created_at`

func (lm *ledgerManager) GetProcedureVersion(ctx context.Context, procedureID uuid.UUID, version int) (*models.StoredProcedureVersion, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}

	query := `
		SELECT ` + versionColumns + `
		FROM stored_procedure_versions
		WHERE procedure_id = $1 AND version = $2 AND workspace_id = $3;
	`
	row := lm.conn().QueryRowContext(ctx, query, procedureID, version, workspaceID)
	entry := &models.StoredProcedureVersion{}
	if err := scanVersion(row, entry); err != nil {
		if err == sql.ErrNoRows {
			log.Ctx(ctx).Info().Int("version", version).Str("procedure_id", procedureID.String()).Msg("version not found")
			return nil, dberror.ErrNotFound.Msg("version not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve version")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return entry, nil
}

// GetLatestVersion returns the highest-numbered entry for the procedure,
// optionally filtered by source ("" means any source).
func (lm *ledgerManager) GetLatestVersion(ctx context.Context, procedureID uuid.UUID, source types.VersionSource) (*models.StoredProcedureVersion, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}

	query := `
		SELECT ` + versionColumns + `
		FROM stored_procedure_versions
		WHERE procedure_id = $1 AND workspace_id = $2 AND ($3 = '' OR source = $3)
		ORDER BY version DESC
		LIMIT 1;
	`
	row := lm.conn().QueryRowContext(ctx, query, procedureID, workspaceID, string(source))
	entry := &models.StoredProcedureVersion{}
	if err := scanVersion(row, entry); err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("no matching version")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve latest version")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return entry, nil
}

// ListProcedureVersions returns up to limit entries with version numbers
// strictly greater than afterVersion, ordered by version ascending. The
// pagination shape exists for the manager layer's restartable history
// iterator.
func (lm *ledgerManager) ListProcedureVersions(ctx context.Context, procedureID uuid.UUID, afterVersion int, limit int) ([]models.StoredProcedureVersion, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return nil, dberr
	}
	if limit <= 0 {
		return nil, dberror.ErrInvalidInput.Msg("limit must be positive")
	}

	query := `
		SELECT ` + versionColumns + `
		FROM stored_procedure_versions
		WHERE procedure_id = $1 AND workspace_id = $2 AND version > $3
		ORDER BY version ASC
		LIMIT $4;
	`
	rows, err := lm.conn().QueryContext(ctx, query, procedureID, workspaceID, afterVersion, limit)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list versions")
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var entries []models.StoredProcedureVersion
	for rows.Next() {
		var entry models.StoredProcedureVersion
		if err := scanVersion(rows, &entry); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to scan version row")
			return nil, dberror.ErrDatabase.Err(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("error after scanning versions")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return entries, nil
}

func (lm *ledgerManager) CountProcedureVersions(ctx context.Context, procedureID uuid.UUID, source types.VersionSource) (int, apperrors.Error) {
	workspaceID, dberr := workspaceIdFromContext(ctx)
	if dberr != nil {
		return 0, dberr
	}

	query := `
		SELECT COUNT(*)
		FROM stored_procedure_versions
		WHERE procedure_id = $1 AND workspace_id = $2 AND ($3 = '' OR source = $3);
	`
	var count int
	err := lm.conn().QueryRowContext(ctx, query, procedureID, workspaceID, string(source)).Scan(&count)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to count versions")
		return 0, dberror.ErrDatabase.Err(err)
	}
	return count, nil
}
