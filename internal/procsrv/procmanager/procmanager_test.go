package procmanager

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/procline/procline/internal/procsrv/db"
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
	err := db.DB(ctx).CreateWorkspace(ctx, &models.Workspace{WorkspaceID: workspaceID, Name: "procmanager-test"})
	require.NoError(t, err)

	return ctx, workspaceID, func() {
		_ = db.DB(ctx).DeleteWorkspace(ctx, workspaceID)
		db.DB(ctx).Close(ctx)
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx, workspaceID, cleanup := newDb(t)
	defer cleanup()

	proc, err := Create(ctx, workspaceID, "nightly_rollup", "SELECT 1", "u-alice")
	require.NoError(t, err)
	assert.Equal(t, types.ProcedureStatusDraft, proc.Status)
	assert.Equal(t, types.UserId("u-alice"), proc.CreatedBy)

	got, err := Get(ctx, workspaceID, proc.ProcedureID)
	require.NoError(t, err)
	assert.Equal(t, proc.ProcedureID, got.ProcedureID)

	// Duplicate name in the workspace
	_, err = Create(ctx, workspaceID, "nightly_rollup", "SELECT 2", "u-bob")
	assert.ErrorIs(t, err, ErrNameAlreadyExists)

	// Invalid name never reaches the database
	_, err = Create(ctx, workspaceID, "bad name!", "SELECT 1", "u-alice")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = Get(ctx, workspaceID, uuid.New())
	assert.ErrorIs(t, err, ErrProcedureNotFound)
}

func TestPublishLifecycle(t *testing.T) {
	ctx, workspaceID, cleanup := newDb(t)
	defer cleanup()

	proc, err := Create(ctx, workspaceID, "pub_lifecycle", "SELECT 'v1'", "u-alice")
	require.NoError(t, err)

	// Publishing an empty draft fails
	empty, err := Create(ctx, workspaceID, "empty_proc", "   ", "u-alice")
	require.NoError(t, err)
	_, _, perr := Publish(ctx, workspaceID, empty.ProcedureID, "u-alice")
	assert.ErrorIs(t, perr, ErrEmptySQL)

	published, entry, perr := Publish(ctx, workspaceID, proc.ProcedureID, "u-alice")
	require.NoError(t, perr)
	assert.Equal(t, types.ProcedureStatusPublished, published.Status)
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, "SELECT 'v1'", entry.SQLText)

	// Edit the draft; the published snapshot is untouched
	updated, err := UpdateDraft(ctx, workspaceID, proc.ProcedureID, "SELECT 'v2'", "u-bob")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'v2'", updated.SQLDraft)
	require.True(t, updated.SQLPublished.Valid)
	assert.Equal(t, "SELECT 'v1'", updated.SQLPublished.String)

	// Second publish promotes the new draft under version 2
	published, entry, perr = Publish(ctx, workspaceID, proc.ProcedureID, "u-bob")
	require.NoError(t, perr)
	assert.Equal(t, 2, entry.Version)
	assert.Equal(t, "SELECT 'v2'", published.SQLPublished.String)

	_, _, perr = Publish(ctx, workspaceID, uuid.New(), "u-alice")
	assert.ErrorIs(t, perr, ErrProcedureNotFound)
}

func TestRevertToVersion(t *testing.T) {
	ctx, workspaceID, cleanup := newDb(t)
	defer cleanup()

	proc, err := Create(ctx, workspaceID, "revert_proc", "SELECT 'v1'", "u-alice")
	require.NoError(t, err)
	_, _, perr := Publish(ctx, workspaceID, proc.ProcedureID, "u-alice")
	require.NoError(t, perr)

	_, err = UpdateDraft(ctx, workspaceID, proc.ProcedureID, "SELECT 'v2'", "u-alice")
	require.NoError(t, err)
	_, _, perr = Publish(ctx, workspaceID, proc.ProcedureID, "u-alice")
	require.NoError(t, perr)

	// Revert the draft to the first snapshot; status stays published
	reverted, err := RevertToVersion(ctx, workspaceID, proc.ProcedureID, 1, "u-carol")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'v1'", reverted.SQLDraft)
	assert.Equal(t, types.ProcedureStatusPublished, reverted.Status)
	assert.Equal(t, "SELECT 'v2'", reverted.SQLPublished.String)

	_, err = RevertToVersion(ctx, workspaceID, proc.ProcedureID, 42, "u-carol")
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestRename(t *testing.T) {
	ctx, workspaceID, cleanup := newDb(t)
	defer cleanup()

	proc, err := Create(ctx, workspaceID, "old_name", "SELECT 'v1'", "u-alice")
	require.NoError(t, err)
	_, err = Create(ctx, workspaceID, "taken_name", "SELECT 1", "u-alice")
	require.NoError(t, err)

	_, _, perr := Publish(ctx, workspaceID, proc.ProcedureID, "u-alice")
	require.NoError(t, perr)

	renamed, err := Rename(ctx, workspaceID, proc.ProcedureID, "new_name", "u-alice")
	require.NoError(t, err)
	assert.Equal(t, "new_name", renamed.Name)

	// Historical entries keep the old name; the next publish snapshots the new one
	entry, err := GetVersion(ctx, workspaceID, proc.ProcedureID, 1)
	require.NoError(t, err)
	assert.Equal(t, "old_name", entry.Name)

	_, entry, perr = Publish(ctx, workspaceID, proc.ProcedureID, "u-alice")
	require.NoError(t, perr)
	assert.Equal(t, "new_name", entry.Name)

	_, err = Rename(ctx, workspaceID, proc.ProcedureID, "taken_name", "u-alice")
	assert.ErrorIs(t, err, ErrNameAlreadyExists)
}

func TestHistoryAndLatest(t *testing.T) {
	ctx, workspaceID, cleanup := newDb(t)
	defer cleanup()

	proc, err := Create(ctx, workspaceID, "history_proc", "SELECT 0", "u-alice")
	require.NoError(t, err)

	// History on a never-published procedure is empty
	count := 0
	for _, herr := range History(ctx, workspaceID, proc.ProcedureID) {
		require.NoError(t, herr)
		count++
	}
	assert.Zero(t, count)

	_, err = Latest(ctx, workspaceID, proc.ProcedureID, "")
	assert.ErrorIs(t, err, ErrVersionNotFound)

	for i := 1; i <= 3; i++ {
		_, _, perr := Publish(ctx, workspaceID, proc.ProcedureID, "u-alice")
		require.NoError(t, perr)
	}

	var versions []int
	for entry, herr := range History(ctx, workspaceID, proc.ProcedureID) {
		require.NoError(t, herr)
		versions = append(versions, entry.Version)
	}
	assert.Equal(t, []int{1, 2, 3}, versions)

	// Early break reads only the first entry; the sequence restarts cleanly
	for entry, herr := range History(ctx, workspaceID, proc.ProcedureID) {
		require.NoError(t, herr)
		assert.Equal(t, 1, entry.Version)
		break
	}

	latest, err := Latest(ctx, workspaceID, proc.ProcedureID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)
}

func TestSnapshotDraft(t *testing.T) {
	ctx, workspaceID, cleanup := newDb(t)
	defer cleanup()

	proc, err := Create(ctx, workspaceID, "snapshot_proc", "SELECT 'wip'", "u-alice")
	require.NoError(t, err)

	entry, err := SnapshotDraft(ctx, workspaceID, proc.ProcedureID, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, types.VersionSourceDraft, entry.Source)

	// The procedure's lifecycle state is untouched
	got, err := Get(ctx, workspaceID, proc.ProcedureID)
	require.NoError(t, err)
	assert.Equal(t, types.ProcedureStatusDraft, got.Status)

	_, err = UpdateDraft(ctx, workspaceID, proc.ProcedureID, "", "u-alice")
	require.NoError(t, err)
	_, err = SnapshotDraft(ctx, workspaceID, proc.ProcedureID, "u-alice")
	assert.ErrorIs(t, err, ErrEmptySQL)
}

func TestDeleteProcedure(t *testing.T) {
	ctx, workspaceID, cleanup := newDb(t)
	defer cleanup()

	proc, err := Create(ctx, workspaceID, "delete_me", "SELECT 1", "u-alice")
	require.NoError(t, err)

	require.NoError(t, Delete(ctx, workspaceID, proc.ProcedureID))
	assert.ErrorIs(t, Delete(ctx, workspaceID, proc.ProcedureID), ErrProcedureNotFound)
}
