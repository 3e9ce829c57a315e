package db

import (
	"context"
	"testing"

	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/db/models"
	"github.com/procline/procline/internal/procsrv/proccommon"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDb(c ...context.Context) context.Context {
	var ctx context.Context
	if len(c) > 0 {
		ctx = ConnCtx(c[0])
	} else {
		ctx = ConnCtx(context.Background())
	}
	return ctx
}

// newTestWorkspace creates a workspace with a random id and returns a
// context scoped to it. Callers defer the returned cleanup.
func newTestWorkspace(t *testing.T, ctx context.Context) (context.Context, types.WorkspaceId, func()) {
	t.Helper()
	workspaceID := types.WorkspaceId(proccommon.GetUniqueId(proccommon.ID_TYPE_WORKSPACE))
	err := DB(ctx).CreateWorkspace(ctx, &models.Workspace{
		WorkspaceID: workspaceID,
		Name:        "test-workspace",
	})
	require.NoError(t, err)
	wctx := proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	return wctx, workspaceID, func() {
		_ = DB(ctx).DeleteWorkspace(ctx, workspaceID)
	}
}

func TestPoolStats(t *testing.T) {
	requestsBefore, returnsBefore := pool.Stats()

	ctx := newDb(log.Logger.WithContext(context.Background()))
	DB(ctx).Close(ctx)

	requestsAfter, returnsAfter := pool.Stats()
	assert.GreaterOrEqual(t, requestsAfter, requestsBefore+1)
	assert.GreaterOrEqual(t, returnsAfter, returnsBefore+1)
}

func TestCreateWorkspace(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	workspaceID := types.WorkspaceId("WABC123")
	defer DB(ctx).DeleteWorkspace(ctx, workspaceID)

	err := DB(ctx).CreateWorkspace(ctx, &models.Workspace{WorkspaceID: workspaceID, Name: "acme"})
	assert.NoError(t, err)

	// Creating the same workspace again should return ErrAlreadyExists
	err = DB(ctx).CreateWorkspace(ctx, &models.Workspace{WorkspaceID: workspaceID, Name: "acme"})
	assert.Error(t, err)
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)

	// Empty id and empty name are rejected before hitting the database
	err = DB(ctx).CreateWorkspace(ctx, &models.Workspace{Name: "acme"})
	assert.ErrorIs(t, err, dberror.ErrInvalidInput)
	err = DB(ctx).CreateWorkspace(ctx, &models.Workspace{WorkspaceID: "WZZZ999"})
	assert.ErrorIs(t, err, dberror.ErrInvalidInput)
}

func TestGetWorkspace(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	workspaceID := types.WorkspaceId("WDEF456")
	defer DB(ctx).DeleteWorkspace(ctx, workspaceID)

	err := DB(ctx).CreateWorkspace(ctx, &models.Workspace{WorkspaceID: workspaceID, Name: "acme"})
	require.NoError(t, err)

	ws, err := DB(ctx).GetWorkspace(ctx, workspaceID)
	assert.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, workspaceID, ws.WorkspaceID)
	assert.Equal(t, "acme", ws.Name)

	ws, err = DB(ctx).GetWorkspace(ctx, "WNOPE00")
	assert.Error(t, err)
	assert.Nil(t, ws)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestDeleteWorkspace(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	workspaceID := types.WorkspaceId("WGHI789")
	err := DB(ctx).CreateWorkspace(ctx, &models.Workspace{WorkspaceID: workspaceID, Name: "acme"})
	require.NoError(t, err)

	err = DB(ctx).DeleteWorkspace(ctx, workspaceID)
	assert.NoError(t, err)

	err = DB(ctx).DeleteWorkspace(ctx, workspaceID)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}
