package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/procline/procline/pkg/types"
)

/*
  Table "public.stored_procedure_versions"
    Column    |           Type           | Collation | Nullable |      Default
--------------+--------------------------+-----------+----------+--------------------
 version_id   | uuid                     |           | not null | uuid_generate_v4()
 procedure_id | uuid                     |           | not null |
 workspace_id | character varying(12)    |           | not null |
 version      | integer                  |           | not null |
 source       | character varying(16)    |           | not null |
 name         | character varying(128)   |           | not null |
 sql_text     | bytea                    |           | not null |
 created_by   | character varying(64)    |           |          |
 created_at   | timestamp with time zone |           |          | now()
Indexes:
    "stored_procedure_versions_pkey" PRIMARY KEY, btree (version_id)
    "unique_procedure_version" UNIQUE, btree (procedure_id, version)
Check constraints:
    "stored_procedure_versions_version_check" CHECK (version > 0)
    "stored_procedure_versions_source_check" CHECK (source IN ('draft', 'published'))
Foreign-key constraints:
    "stored_procedure_versions_procedure_id_fkey" FOREIGN KEY (procedure_id) REFERENCES stored_procedures(procedure_id) ON DELETE CASCADE

Rows are append-only: no UPDATE or DELETE path exists outside the cascade
from stored_procedures. sql_text is stored snappy-compressed when ledger
compression is enabled.
*/

// StoredProcedureVersion is one immutable ledger entry. Version numbers are
// strictly increasing per procedure starting at 1, with no gaps, assigned
// by the store inside the appending transaction.
type StoredProcedureVersion struct {
	VersionID   uuid.UUID           `db:"version_id"`
	ProcedureID uuid.UUID           `db:"procedure_id"`
	WorkspaceID types.WorkspaceId   `db:"workspace_id"`
	Version     int                 `db:"version"`
	Source      types.VersionSource `db:"source"`
	Name        string              `db:"name"`
	SQLText     string              `db:"sql_text"`
	CreatedBy   types.UserId        `db:"created_by"`
	CreatedAt   time.Time           `db:"created_at"`
}
