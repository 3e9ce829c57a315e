package types

// WorkspaceId identifies a tenant workspace. Workspace ids are short
// alphanumeric codes minted by the control plane, not UUIDs.
type WorkspaceId string

// UserId identifies the authenticated actor attributed to a write.
// The core never resolves or verifies it; it is attribution only.
type UserId string

func (w WorkspaceId) IsNil() bool {
	return w == ""
}

func (w WorkspaceId) String() string {
	return string(w)
}

func (u UserId) String() string {
	return string(u)
}

// ProcedureStatus is the lifecycle state of a stored procedure.
type ProcedureStatus string

const (
	ProcedureStatusDraft     ProcedureStatus = "draft"
	ProcedureStatusPublished ProcedureStatus = "published"
)

// VersionSource records what kind of snapshot a ledger entry holds.
type VersionSource string

const (
	VersionSourceDraft     VersionSource = "draft"
	VersionSourcePublished VersionSource = "published"
)

// ConnectionStatus is the health state of a workspace's database connection.
type ConnectionStatus string

const (
	ConnectionStatusUnknown   ConnectionStatus = "unknown"
	ConnectionStatusTesting   ConnectionStatus = "testing"
	ConnectionStatusConnected ConnectionStatus = "connected"
	ConnectionStatusFailed    ConnectionStatus = "failed"
)

const (
	WorkspaceKind   = "Workspace"
	ProcedureKind   = "StoredProcedure"
	TemplateKind    = "ProcedureTemplate"
	EnvironmentKind = "Environment"
	InvalidKind     = "InvalidKind"
)

const (
	VersionV1 = "v1"
)

type Nullable interface {
	IsNil() bool
}
