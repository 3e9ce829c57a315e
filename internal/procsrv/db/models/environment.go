package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/procline/procline/pkg/types"
)

/*
  Table "public.environments"
       Column       |           Type           | Collation | Nullable |      Default
--------------------+--------------------------+-----------+----------+--------------------
 environment_id     | uuid                     |           | not null | uuid_generate_v4()
 workspace_id       | character varying(12)    |           | not null |
 host               | character varying(256)   |           | not null |
 port               | integer                  |           | not null |
 username           | character varying(128)   |           | not null |
 password_enc       | bytea                    |           | not null |
 database_name      | character varying(128)   |           | not null |
 connection_timeout | integer                  |           |          |
 encrypt            | boolean                  |           | not null | false
 connection_status  | character varying(16)    |           | not null | 'unknown'
 last_tested_at     | timestamp with time zone |           |          |
 created_by         | character varying(64)    |           |          |
 updated_by         | character varying(64)    |           |          |
 created_at         | timestamp with time zone |           |          | now()
 updated_at         | timestamp with time zone |           |          | now()
Indexes:
    "environments_pkey" PRIMARY KEY, btree (environment_id)
    "environments_workspace_id_key" UNIQUE CONSTRAINT, btree (workspace_id)
Check constraints:
    "environments_connection_status_check" CHECK (connection_status IN ('unknown', 'testing', 'connected', 'failed'))
    "environments_port_check" CHECK (port > 0 AND port <= 65535)
Foreign-key constraints:
    "environments_workspace_id_fkey" FOREIGN KEY (workspace_id) REFERENCES workspaces(workspace_id) ON DELETE CASCADE
Triggers:
    update_environments_updated_at BEFORE UPDATE ON environments FOR EACH ROW EXECUTE FUNCTION set_updated_at()
*/

// Environment holds a workspace's single external database connection
// profile. The password is always ciphertext at rest; only the vault's
// execution hand-off path ever sees it decrypted.
type Environment struct {
	EnvironmentID     uuid.UUID              `db:"environment_id"`
	WorkspaceID       types.WorkspaceId      `db:"workspace_id"`
	Host              string                 `db:"host"`
	Port              int                    `db:"port"`
	Username          string                 `db:"username"`
	PasswordEnc       []byte                 `db:"password_enc"`
	Database          string                 `db:"database_name"`
	ConnectionTimeout sql.NullInt32          `db:"connection_timeout"`
	Encrypt           bool                   `db:"encrypt"`
	ConnectionStatus  types.ConnectionStatus `db:"connection_status"`
	LastTestedAt      sql.NullTime           `db:"last_tested_at"`
	CreatedBy         types.UserId           `db:"created_by"`
	UpdatedBy         types.UserId           `db:"updated_by"`
	CreatedAt         time.Time              `db:"created_at"`
	UpdatedAt         time.Time              `db:"updated_at"`
}
