package scopeguard

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/procline/procline/internal/procsrv/db"
	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/db/models"
	"github.com/procline/procline/internal/procsrv/proccommon"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDb(t *testing.T) (context.Context, types.WorkspaceId, func()) {
	t.Helper()
	ctx := log.Logger.WithContext(context.Background())
	ctx = db.ConnCtx(ctx)

	workspaceID := types.WorkspaceId(proccommon.GetUniqueId(proccommon.ID_TYPE_WORKSPACE))
	err := db.DB(ctx).CreateWorkspace(ctx, &models.Workspace{WorkspaceID: workspaceID, Name: "scopeguard-test"})
	require.NoError(t, err)

	return ctx, workspaceID, func() {
		_ = db.DB(ctx).DeleteWorkspace(ctx, workspaceID)
		db.DB(ctx).Close(ctx)
	}
}

func TestAssertUniqueName(t *testing.T) {
	ctx, workspaceID, cleanup := newDb(t)
	defer cleanup()

	assert.NoError(t, AssertUniqueName(ctx, workspaceID, "fresh_name", uuid.Nil))

	wctx := proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	proc := &models.StoredProcedure{
		WorkspaceID: workspaceID,
		Name:        "taken_name",
		Status:      types.ProcedureStatusDraft,
		SQLDraft:    "SELECT 1",
		CreatedBy:   "u-alice",
		UpdatedBy:   "u-alice",
	}
	require.NoError(t, db.DB(wctx).CreateProcedure(wctx, proc))

	err := AssertUniqueName(ctx, workspaceID, "taken_name", uuid.Nil)
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)

	// Excluding the holder itself is how renames stay idempotent
	assert.NoError(t, AssertUniqueName(ctx, workspaceID, "taken_name", proc.ProcedureID))

	// A different workspace does not see the name
	otherID := types.WorkspaceId(proccommon.GetUniqueId(proccommon.ID_TYPE_WORKSPACE))
	require.NoError(t, db.DB(ctx).CreateWorkspace(ctx, &models.Workspace{WorkspaceID: otherID, Name: "other"}))
	defer db.DB(ctx).DeleteWorkspace(ctx, otherID)
	assert.NoError(t, AssertUniqueName(ctx, otherID, "taken_name", uuid.Nil))
}

func TestAssertSingleEnvironment(t *testing.T) {
	ctx, workspaceID, cleanup := newDb(t)
	defer cleanup()

	assert.NoError(t, AssertSingleEnvironment(ctx, workspaceID))

	wctx := proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	env := &models.Environment{
		WorkspaceID:      workspaceID,
		Host:             "db.internal",
		Port:             5432,
		Username:         "svc",
		PasswordEnc:      []byte("opaque"),
		Database:         "appdb",
		ConnectionStatus: types.ConnectionStatusUnknown,
		CreatedBy:        "u-alice",
		UpdatedBy:        "u-alice",
	}
	require.NoError(t, db.DB(wctx).UpsertEnvironment(wctx, env, false))

	err := AssertSingleEnvironment(ctx, workspaceID)
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)
}

func TestAssertOwnership(t *testing.T) {
	assert.NoError(t, AssertOwnership("WABC123", "WABC123"))

	err := AssertOwnership("WABC123", "WXYZ789")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}
