package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/procline/procline/internal/common/apperrors"
	"github.com/procline/procline/internal/procsrv/db/dbmanager"
	"github.com/procline/procline/internal/procsrv/db/models"
	"github.com/procline/procline/internal/procsrv/db/postgresql"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
)

// DB_ wraps the underlying scoped connection behind three interfaces.
// They are separately initialized so each surface can be wrapped
// independently; LedgerManager is the candidate for read-through caching
// since ledger entries are immutable once written.

type MetadataManager interface {
	// Workspace
	CreateWorkspace(ctx context.Context, workspace *models.Workspace) apperrors.Error
	GetWorkspace(ctx context.Context, workspaceID types.WorkspaceId) (*models.Workspace, apperrors.Error)
	DeleteWorkspace(ctx context.Context, workspaceID types.WorkspaceId) apperrors.Error

	// Environment
	UpsertEnvironment(ctx context.Context, env *models.Environment, resetStatus bool) apperrors.Error
	GetEnvironment(ctx context.Context) (*models.Environment, apperrors.Error)
	DeleteEnvironment(ctx context.Context) apperrors.Error
	BeginConnectionTest(ctx context.Context, actor types.UserId) (*models.Environment, apperrors.Error)
	FinishConnectionTest(ctx context.Context, status types.ConnectionStatus) (*models.Environment, apperrors.Error)

	// Procedure
	CreateProcedure(ctx context.Context, proc *models.StoredProcedure) apperrors.Error
	GetProcedure(ctx context.Context, procedureID uuid.UUID) (*models.StoredProcedure, apperrors.Error)
	GetProcedureByName(ctx context.Context, name string) (*models.StoredProcedure, apperrors.Error)
	ProcedureNameExists(ctx context.Context, name string, excludeID uuid.UUID) (bool, apperrors.Error)
	ListProcedures(ctx context.Context) ([]models.StoredProcedure, apperrors.Error)
	UpdateProcedureDraft(ctx context.Context, procedureID uuid.UUID, sqlDraft string, actor types.UserId) (*models.StoredProcedure, apperrors.Error)
	RenameProcedure(ctx context.Context, procedureID uuid.UUID, newName string, actor types.UserId) (*models.StoredProcedure, apperrors.Error)
	DeleteProcedure(ctx context.Context, procedureID uuid.UUID) apperrors.Error
	PublishProcedure(ctx context.Context, procedureID uuid.UUID, actor types.UserId) (*models.StoredProcedure, *models.StoredProcedureVersion, apperrors.Error)

	// Template
	CreateTemplate(ctx context.Context, tpl *models.ProcedureTemplate) apperrors.Error
	GetTemplate(ctx context.Context, templateID uuid.UUID) (*models.ProcedureTemplate, apperrors.Error)
	GetTemplateByName(ctx context.Context, name string) (*models.ProcedureTemplate, apperrors.Error)
	ListTemplates(ctx context.Context) ([]models.ProcedureTemplate, apperrors.Error)
	UpdateTemplate(ctx context.Context, tpl *models.ProcedureTemplate) apperrors.Error
	DeleteTemplate(ctx context.Context, templateID uuid.UUID) apperrors.Error
}

type LedgerManager interface {
	CreateProcedureVersion(ctx context.Context, entry *models.StoredProcedureVersion) apperrors.Error
	GetProcedureVersion(ctx context.Context, procedureID uuid.UUID, version int) (*models.StoredProcedureVersion, apperrors.Error)
	GetLatestVersion(ctx context.Context, procedureID uuid.UUID, source types.VersionSource) (*models.StoredProcedureVersion, apperrors.Error)
	ListProcedureVersions(ctx context.Context, procedureID uuid.UUID, afterVersion int, limit int) ([]models.StoredProcedureVersion, apperrors.Error)
	CountProcedureVersions(ctx context.Context, procedureID uuid.UUID, source types.VersionSource) (int, apperrors.Error)
}

type ConnectionManager interface {
	// Scope Management
	AddScopes(ctx context.Context, scopes map[string]string)
	DropScopes(ctx context.Context, scopes []string) error
	AddScope(ctx context.Context, scope, value string)
	DropScope(ctx context.Context, scope string) error
	DropAllScopes(ctx context.Context) error

	// Close the connection to the database.
	Close(ctx context.Context)
}

type DB_ interface {
	MetadataManager
	LedgerManager
	ConnectionManager
}

const (
	Scope_WorkspaceId string = "procline.curr_workspace_id"
)

var configuredScopes = []string{
	Scope_WorkspaceId,
}

var pool dbmanager.ScopedDb

func init() {
	ctx := log.Logger.WithContext(context.Background())
	pg := dbmanager.NewScopedDb(ctx, "postgresql", configuredScopes)
	if pg == nil {
		panic("unable to create db pool")
	}
	pool = pg
}

func Conn(ctx context.Context) dbmanager.ScopedConn {
	if pool != nil {
		conn, err := pool.Conn(ctx)
		if err == nil {
			return conn
		}
		log.Ctx(ctx).Error().Err(err).Msg("unable to get db connection")
	}
	return nil
}

type ctxDbKeyType string

const ctxDbKey ctxDbKeyType = "ProclineDb"

func ConnCtx(ctx context.Context) context.Context {
	conn := Conn(ctx)
	return context.WithValue(ctx, ctxDbKey, conn)
}

type proclineDb struct {
	MetadataManager
	LedgerManager
	ConnectionManager
}

func DB(ctx context.Context) DB_ {
	if conn, ok := ctx.Value(ctxDbKey).(dbmanager.ScopedConn); ok {
		mm, lm, cm := postgresql.NewProclineDb(conn)
		return &proclineDb{
			MetadataManager:   mm,
			LedgerManager:     lm,
			ConnectionManager: cm,
		}
	}
	log.Ctx(ctx).Error().Msg("unable to get db connection from context")
	return nil
}
