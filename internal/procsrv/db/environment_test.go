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

func testEnvironment() *models.Environment {
	return &models.Environment{
		Host:        "db.customer.example",
		Port:        5432,
		Username:    "reporting",
		PasswordEnc: []byte("ciphertext-blob"),
		Database:    "warehouse",
		Encrypt:     true,
		CreatedBy:   types.UserId("u-alice"),
		UpdatedBy:   types.UserId("u-alice"),
	}
}

func TestUpsertEnvironment(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	ctx, workspaceID, cleanup := newTestWorkspace(t, ctx)
	defer cleanup()

	env := testEnvironment()
	err := DB(ctx).UpsertEnvironment(ctx, env, true)
	require.NoError(t, err)
	assert.Equal(t, workspaceID, env.WorkspaceID)
	assert.Equal(t, types.ConnectionStatusUnknown, env.ConnectionStatus)
	assert.False(t, env.LastTestedAt.Valid)

	// Upserting again replaces the single row rather than adding one
	env2 := testEnvironment()
	env2.Host = "db2.customer.example"
	err = DB(ctx).UpsertEnvironment(ctx, env2, true)
	require.NoError(t, err)
	assert.Equal(t, env.EnvironmentID, env2.EnvironmentID)

	got, err := DB(ctx).GetEnvironment(ctx)
	require.NoError(t, err)
	assert.Equal(t, "db2.customer.example", got.Host)

	// Unknown workspace violates the foreign key
	badCtx := newDb(log.Logger.WithContext(context.Background()))
	defer DB(badCtx).Close(badCtx)
	badCtx = proccommon.SetWorkspaceIdInContext(badCtx, "WNOPE00")
	err = DB(badCtx).UpsertEnvironment(badCtx, testEnvironment(), true)
	assert.ErrorIs(t, err, dberror.ErrInvalidWorkspace)
}

func TestUpsertEnvironmentStatusReset(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	ctx, _, cleanup := newTestWorkspace(t, ctx)
	defer cleanup()

	err := DB(ctx).UpsertEnvironment(ctx, testEnvironment(), true)
	require.NoError(t, err)

	// Walk the row to connected
	_, err = DB(ctx).BeginConnectionTest(ctx, "u-alice")
	require.NoError(t, err)
	_, err = DB(ctx).FinishConnectionTest(ctx, types.ConnectionStatusConnected)
	require.NoError(t, err)

	// resetStatus=false keeps the earned status
	env := testEnvironment()
	err = DB(ctx).UpsertEnvironment(ctx, env, false)
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionStatusConnected, env.ConnectionStatus)

	// resetStatus=true drops it back to unknown
	env = testEnvironment()
	err = DB(ctx).UpsertEnvironment(ctx, env, true)
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionStatusUnknown, env.ConnectionStatus)
}

func TestConnectionTestStateMachine(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	ctx, _, cleanup := newTestWorkspace(t, ctx)
	defer cleanup()

	// No environment yet: begin reports NotFound, not Busy
	_, err := DB(ctx).BeginConnectionTest(ctx, "u-alice")
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	require.NoError(t, DB(ctx).UpsertEnvironment(ctx, testEnvironment(), true))

	env, err := DB(ctx).BeginConnectionTest(ctx, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionStatusTesting, env.ConnectionStatus)

	// Second begin while testing observes Busy
	_, err = DB(ctx).BeginConnectionTest(ctx, "u-bob")
	assert.ErrorIs(t, err, dberror.ErrTestInProgress)

	env, err = DB(ctx).FinishConnectionTest(ctx, types.ConnectionStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionStatusFailed, env.ConnectionStatus)
	assert.True(t, env.LastTestedAt.Valid)

	// Finish without a test in flight
	_, err = DB(ctx).FinishConnectionTest(ctx, types.ConnectionStatusConnected)
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	// Terminal status must be connected or failed
	_, err = DB(ctx).BeginConnectionTest(ctx, "u-alice")
	require.NoError(t, err)
	_, err = DB(ctx).FinishConnectionTest(ctx, types.ConnectionStatusTesting)
	assert.ErrorIs(t, err, dberror.ErrInvalidInput)
	_, err = DB(ctx).FinishConnectionTest(ctx, types.ConnectionStatusConnected)
	require.NoError(t, err)
}

func TestDeleteEnvironment(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	ctx = newDb(ctx)
	defer DB(ctx).Close(ctx)

	ctx, _, cleanup := newTestWorkspace(t, ctx)
	defer cleanup()

	err := DB(ctx).DeleteEnvironment(ctx)
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	require.NoError(t, DB(ctx).UpsertEnvironment(ctx, testEnvironment(), true))
	assert.NoError(t, DB(ctx).DeleteEnvironment(ctx))

	_, err = DB(ctx).GetEnvironment(ctx)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}
