package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/procline/procline/pkg/types"
)

/*
  Table "public.procedure_templates"
    Column     |           Type           | Collation | Nullable |      Default
---------------+--------------------------+-----------+----------+--------------------
 template_id   | uuid                     |           | not null | uuid_generate_v4()
 name          | character varying(128)   |           | not null |
 description   | character varying(1024)  |           |          |
 sql_template  | text                     |           | not null |
 params_schema | jsonb                    |           |          |
 created_by    | character varying(64)    |           |          |
 created_at    | timestamp with time zone |           |          | now()
 updated_at    | timestamp with time zone |           |          | now()
Indexes:
    "procedure_templates_pkey" PRIMARY KEY, btree (template_id)
    "procedure_templates_name_key" UNIQUE CONSTRAINT, btree (name)
Check constraints:
    "procedure_templates_sql_template_check" CHECK (length(btrim(sql_template)) > 0)
Triggers:
    update_procedure_templates_updated_at BEFORE UPDATE ON procedure_templates FOR EACH ROW EXECUTE FUNCTION set_updated_at()

Templates are a shared catalog: no workspace column, visible to every
workspace, and never mutated by instantiation.
*/

type ProcedureTemplate struct {
	TemplateID   uuid.UUID    `db:"template_id"`
	Name         string       `db:"name"`
	Description  string       `db:"description"`
	SQLTemplate  string       `db:"sql_template"`
	ParamsSchema pgtype.JSONB `db:"params_schema"`
	CreatedBy    types.UserId `db:"created_by"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}
