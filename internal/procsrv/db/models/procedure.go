package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/procline/procline/pkg/types"
)

/*
  Table "public.stored_procedures"
    Column     |           Type           | Collation | Nullable |      Default
---------------+--------------------------+-----------+----------+--------------------
 procedure_id  | uuid                     |           | not null | uuid_generate_v4()
 workspace_id  | character varying(12)    |           | not null |
 name          | character varying(128)   |           | not null |
 status        | character varying(16)    |           | not null | 'draft'
 sql_draft     | text                     |           | not null |
 sql_published | text                     |           |          |
 published_at  | timestamp with time zone |           |          |
 created_by    | character varying(64)    |           |          |
 updated_by    | character varying(64)    |           |          |
 created_at    | timestamp with time zone |           |          | now()
 updated_at    | timestamp with time zone |           |          | now()
Indexes:
    "stored_procedures_pkey" PRIMARY KEY, btree (procedure_id)
    "unique_name_workspace" UNIQUE, btree (name, workspace_id)
Check constraints:
    "stored_procedures_name_check" CHECK (name ~ '^[A-Za-z0-9_-]+$')
    "stored_procedures_status_check" CHECK (status IN ('draft', 'published'))
    "stored_procedures_published_pair_check" CHECK ((sql_published IS NULL) = (published_at IS NULL))
Foreign-key constraints:
    "stored_procedures_workspace_id_fkey" FOREIGN KEY (workspace_id) REFERENCES workspaces(workspace_id) ON DELETE CASCADE
Referenced by:
    TABLE "stored_procedure_versions" CONSTRAINT "stored_procedure_versions_procedure_id_fkey" FOREIGN KEY (procedure_id) REFERENCES stored_procedures(procedure_id) ON DELETE CASCADE
Triggers:
    update_stored_procedures_updated_at BEFORE UPDATE ON stored_procedures FOR EACH ROW EXECUTE FUNCTION set_updated_at()
*/

// StoredProcedure carries both halves of a procedure's draft/published
// duality: the always-editable sql_draft, and the sql_published snapshot
// that is set only by publish. sql_published and published_at are both
// null until the first publish.
type StoredProcedure struct {
	ProcedureID  uuid.UUID             `db:"procedure_id"`
	WorkspaceID  types.WorkspaceId     `db:"workspace_id"`
	Name         string                `db:"name"`
	Status       types.ProcedureStatus `db:"status"`
	SQLDraft     string                `db:"sql_draft"`
	SQLPublished sql.NullString        `db:"sql_published"`
	PublishedAt  sql.NullTime          `db:"published_at"`
	CreatedBy    types.UserId          `db:"created_by"`
	UpdatedBy    types.UserId          `db:"updated_by"`
	CreatedAt    time.Time             `db:"created_at"`
	UpdatedAt    time.Time             `db:"updated_at"`
}
