package models

import (
	"time"

	"github.com/procline/procline/pkg/types"
)

/*
  Table "public.workspaces"
    Column    |           Type           | Collation | Nullable | Default
--------------+--------------------------+-----------+----------+---------
 workspace_id | character varying(12)    |           | not null |
 name         | character varying(128)   |           | not null |
 created_at   | timestamp with time zone |           |          | now()
 updated_at   | timestamp with time zone |           |          | now()
Indexes:
    "workspaces_pkey" PRIMARY KEY, btree (workspace_id)
Referenced by:
    TABLE "environments" CONSTRAINT "environments_workspace_id_fkey" FOREIGN KEY (workspace_id) REFERENCES workspaces(workspace_id) ON DELETE CASCADE
    TABLE "stored_procedures" CONSTRAINT "stored_procedures_workspace_id_fkey" FOREIGN KEY (workspace_id) REFERENCES workspaces(workspace_id) ON DELETE CASCADE
Triggers:
    update_workspaces_updated_at BEFORE UPDATE ON workspaces FOR EACH ROW EXECUTE FUNCTION set_updated_at()
*/

type Workspace struct {
	WorkspaceID types.WorkspaceId `db:"workspace_id"`
	Name        string            `db:"name"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
}
