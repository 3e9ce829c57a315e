// Package proccommon provides context management utilities shared by the
// procedure service. It carries the workspace scope and the authenticated
// actor that the API layer resolves before calling into the core.
package proccommon

import (
	"context"

	"github.com/procline/procline/pkg/types"
)

// ctxKeyType represents the type for all context keys
type ctxKeyType string

const (
	ctxWorkspaceIdKey ctxKeyType = "ProclineWorkspaceId"
	ctxUserContextKey ctxKeyType = "ProclineUserContext"
	ctxTestContextKey ctxKeyType = "ProclineTestContext"
)

// UserContext represents the authenticated actor on whose behalf an
// operation runs. The core attributes writes to it but never authorizes.
type UserContext struct {
	// UserID is the unique identifier for the user
	UserID types.UserId
}

// SetWorkspaceIdInContext sets the workspace ID in the provided context.
func SetWorkspaceIdInContext(ctx context.Context, workspaceId types.WorkspaceId) context.Context {
	return context.WithValue(ctx, ctxWorkspaceIdKey, workspaceId)
}

// WorkspaceIdFromContext retrieves the workspace ID from the provided context.
func WorkspaceIdFromContext(ctx context.Context) types.WorkspaceId {
	if workspaceId, ok := ctx.Value(ctxWorkspaceIdKey).(types.WorkspaceId); ok {
		return workspaceId
	}
	return ""
}

// SetUserContext sets the user context in the provided context.
func SetUserContext(ctx context.Context, userContext *UserContext) context.Context {
	return context.WithValue(ctx, ctxUserContextKey, userContext)
}

// UserContextFromContext retrieves the user context from the provided context.
func UserContextFromContext(ctx context.Context) *UserContext {
	if userContext, ok := ctx.Value(ctxUserContextKey).(*UserContext); ok {
		return userContext
	}
	return nil
}

// UserIdFromContext retrieves the actor id from the provided context, or ""
// when no user context is set.
func UserIdFromContext(ctx context.Context) types.UserId {
	if uc := UserContextFromContext(ctx); uc != nil {
		return uc.UserID
	}
	return ""
}

// SetTestContext sets the test context in the provided context.
func SetTestContext(ctx context.Context, isTest bool) context.Context {
	return context.WithValue(ctx, ctxTestContextKey, isTest)
}

// TestContextFromContext retrieves the test context from the provided context.
func TestContextFromContext(ctx context.Context) bool {
	if testContext, ok := ctx.Value(ctxTestContextKey).(bool); ok {
		return testContext
	}
	return false
}
