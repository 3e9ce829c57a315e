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

// Templates are a shared catalog and deliberately skip the workspace scope
// that every other manager enforces.

const templateColumns = `
	template_id, name, description, sql_template, params_schema, created_by, created_at, updated_at`

func mapTemplateWriteError(ctx context.Context, err error) apperrors.Error {
	if pgErr, ok := err.(*pgconn.PgError); ok {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName == "procedure_templates_name_key":
			return dberror.ErrAlreadyExists.Msg("a template with this name already exists")
		case pgErr.ConstraintName == "procedure_templates_sql_template_check":
			return dberror.ErrInvalidInput.Msg("template body cannot be empty")
		}
	}
	log.Ctx(ctx).Error().Err(err).Msg("failed to write template")
	return dberror.ErrDatabase.Err(err)
}

func scanTemplate(row interface{ Scan(...any) error }, tpl *models.ProcedureTemplate) error {
	var description, createdBy sql.NullString
	err := row.Scan(
		&tpl.TemplateID,
		&tpl.Name,
		&description,
		&tpl.SQLTemplate,
		&tpl.ParamsSchema,
		&createdBy,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if err != nil {
		return err
	}
	tpl.Description = description.String
	tpl.CreatedBy = types.UserId(createdBy.String)
	return nil
}

func (mm *metadataManager) CreateTemplate(ctx context.Context, tpl *models.ProcedureTemplate) apperrors.Error {
	tpl.Name = strings.TrimSpace(tpl.Name)
	if tpl.Name == "" {
		return dberror.ErrInvalidInput.Msg("template name cannot be empty")
	}

	query := `
		INSERT INTO procedure_templates (name, description, sql_template, params_schema, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING template_id, created_at, updated_at;
	`
	row := mm.conn().QueryRowContext(ctx, query,
		tpl.Name, nullableString(tpl.Description), tpl.SQLTemplate, tpl.ParamsSchema,
		nullableActor(tpl.CreatedBy))
	if err := row.Scan(&tpl.TemplateID, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		return mapTemplateWriteError(ctx, err)
	}
	log.Ctx(ctx).Info().Str("template", tpl.Name).Msg("created template")
	return nil
}

func (mm *metadataManager) GetTemplate(ctx context.Context, templateID uuid.UUID) (*models.ProcedureTemplate, apperrors.Error) {
	query := `
		SELECT ` + templateColumns + `
		FROM procedure_templates
		WHERE template_id = $1;
	`
	row := mm.conn().QueryRowContext(ctx, query, templateID)
	tpl := &models.ProcedureTemplate{}
	if err := scanTemplate(row, tpl); err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("template not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve template")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return tpl, nil
}

func (mm *metadataManager) GetTemplateByName(ctx context.Context, name string) (*models.ProcedureTemplate, apperrors.Error) {
	query := `
		SELECT ` + templateColumns + `
		FROM procedure_templates
		WHERE name = $1;
	`
	row := mm.conn().QueryRowContext(ctx, query, name)
	tpl := &models.ProcedureTemplate{}
	if err := scanTemplate(row, tpl); err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("template not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve template")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return tpl, nil
}

func (mm *metadataManager) ListTemplates(ctx context.Context) ([]models.ProcedureTemplate, apperrors.Error) {
	query := `
		SELECT ` + templateColumns + `
		FROM procedure_templates
		ORDER BY name ASC;
	`
	rows, err := mm.conn().QueryContext(ctx, query)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list templates")
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var templates []models.ProcedureTemplate
	for rows.Next() {
		var tpl models.ProcedureTemplate
		if err := scanTemplate(rows, &tpl); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to scan template row")
			return nil, dberror.ErrDatabase.Err(err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("error after scanning templates")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return templates, nil
}

func (mm *metadataManager) UpdateTemplate(ctx context.Context, tpl *models.ProcedureTemplate) apperrors.Error {
	query := `
		UPDATE procedure_templates
		SET description = $2, sql_template = $3, params_schema = $4
		WHERE template_id = $1
		RETURNING updated_at;
	`
	row := mm.conn().QueryRowContext(ctx, query,
		tpl.TemplateID, nullableString(tpl.Description), tpl.SQLTemplate, tpl.ParamsSchema)
	if err := row.Scan(&tpl.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("template not found")
		}
		return mapTemplateWriteError(ctx, err)
	}
	log.Ctx(ctx).Info().Str("template", tpl.Name).Msg("updated template")
	return nil
}

func (mm *metadataManager) DeleteTemplate(ctx context.Context, templateID uuid.UUID) apperrors.Error {
	query := `
		DELETE FROM procedure_templates
		WHERE template_id = $1;
	`
	result, err := mm.conn().ExecContext(ctx, query, templateID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to delete template")
		return dberror.ErrDatabase.Err(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to read rows affected")
		return dberror.ErrDatabase.Err(err)
	}
	if rowsAffected == 0 {
		return dberror.ErrNotFound.Msg("template not found")
	}
	log.Ctx(ctx).Info().Str("template_id", templateID.String()).Msg("deleted template")
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
