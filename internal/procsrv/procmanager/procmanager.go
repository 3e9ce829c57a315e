// Package procmanager is the lifecycle engine for stored procedures: the
// draft/publish state machine, the version ledger surface, and template
// instantiation.
package procmanager

import (
	"context"
	"iter"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/procline/procline/internal/common/apperrors"
	"github.com/procline/procline/internal/procsrv/config"
	"github.com/procline/procline/internal/procsrv/db"
	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/db/models"
	"github.com/procline/procline/internal/procsrv/proccommon"
	"github.com/procline/procline/internal/procsrv/schema/schemavalidator"
	"github.com/procline/procline/internal/procsrv/scopeguard"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
)

const historyPageSize = 100

// Create registers a new draft procedure. The draft body may be empty at
// creation; publishing an empty draft is what fails. No ledger entry is
// written until the first publish.
func Create(ctx context.Context, workspaceID types.WorkspaceId, name string, sqlDraft string, actor types.UserId) (*models.StoredProcedure, apperrors.Error) {
	if err := schemavalidator.V().Var(name, "required,nameFormatValidator"); err != nil {
		return nil, ErrInvalidRequest.Msg("invalid procedure name")
	}
	if err := scopeguard.AssertUniqueName(ctx, workspaceID, name, uuid.Nil); err != nil {
		if err.Is(dberror.ErrAlreadyExists) {
			return nil, ErrNameAlreadyExists
		}
		return nil, err
	}
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)

	proc := &models.StoredProcedure{
		WorkspaceID: workspaceID,
		Name:        name,
		Status:      types.ProcedureStatusDraft,
		SQLDraft:    sqlDraft,
		CreatedBy:   actor,
		UpdatedBy:   actor,
	}
	if err := db.DB(ctx).CreateProcedure(ctx, proc); err != nil {
		// The unique index backstops the guard under concurrency.
		if err.Is(dberror.ErrAlreadyExists) {
			return nil, ErrNameAlreadyExists
		}
		return nil, err
	}
	log.Ctx(ctx).Info().Str("name", name).Str("procedure_id", proc.ProcedureID.String()).Msg("created procedure")
	return proc, nil
}

// Get returns a procedure by id within the workspace.
func Get(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID) (*models.StoredProcedure, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	proc, err := db.DB(ctx).GetProcedure(ctx, procedureID)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrProcedureNotFound
		}
		return nil, err
	}
	return proc, nil
}

// List returns all procedures in the workspace.
func List(ctx context.Context, workspaceID types.WorkspaceId) ([]models.StoredProcedure, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	return db.DB(ctx).ListProcedures(ctx)
}

// UpdateDraft replaces the draft body. Allowed in any status; published
// procedures keep serving sql_published until the next publish.
func UpdateDraft(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID, sqlDraft string, actor types.UserId) (*models.StoredProcedure, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	proc, err := db.DB(ctx).UpdateProcedureDraft(ctx, procedureID, sqlDraft, actor)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrProcedureNotFound
		}
		return nil, err
	}
	return proc, nil
}

// Publish atomically snapshots the draft into the ledger and promotes it
// to sql_published. A version-number race with a concurrent publish is
// retried before surfacing as a conflict; the procedure is never left
// half-published.
func Publish(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID, actor types.UserId) (*models.StoredProcedure, *models.StoredProcedureVersion, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)

	var proc *models.StoredProcedure
	var entry *models.StoredProcedureVersion
	err := retry.Do(func() error {
		var aerr apperrors.Error
		proc, entry, aerr = db.DB(ctx).PublishProcedure(ctx, procedureID, actor)
		if aerr != nil {
			return aerr
		}
		return nil
	},
		retry.Attempts(uint(config.Config().PublishRetries)),
		retry.RetryIf(func(err error) bool {
			if aerr, ok := err.(apperrors.Error); ok {
				return aerr.Is(dberror.ErrVersionConflict)
			}
			return false
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Info().Uint("attempt", n).Str("procedure_id", procedureID.String()).Msg("retrying publish after version race")
		}))
	if err != nil {
		aerr, ok := err.(apperrors.Error)
		if !ok {
			return nil, nil, ErrProcManager.Err(err)
		}
		switch {
		case aerr.Is(dberror.ErrVersionConflict):
			return nil, nil, ErrPublishConflict
		case aerr.Is(dberror.ErrEmptyDraft):
			return nil, nil, ErrEmptySQL.Msg("cannot publish an empty draft")
		case aerr.Is(dberror.ErrNotFound):
			return nil, nil, ErrProcedureNotFound
		}
		return nil, nil, aerr
	}
	log.Ctx(ctx).Info().Str("procedure_id", procedureID.String()).Int("version", entry.Version).Msg("published procedure")
	return proc, entry, nil
}

// RevertToVersion copies a historical snapshot's body into the draft. The
// lifecycle status and sql_published are untouched; the caller publishes
// the revert when ready.
func RevertToVersion(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID, version int, actor types.UserId) (*models.StoredProcedure, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	entry, err := db.DB(ctx).GetProcedureVersion(ctx, procedureID, version)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	proc, err := db.DB(ctx).UpdateProcedureDraft(ctx, procedureID, entry.SQLText, actor)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrProcedureNotFound
		}
		return nil, err
	}
	log.Ctx(ctx).Info().Str("procedure_id", procedureID.String()).Int("version", version).Msg("reverted draft to version")
	return proc, nil
}

// Rename changes the procedure's name. Ledger entries keep the name they
// were published under; the next publish snapshots the new name.
func Rename(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID, newName string, actor types.UserId) (*models.StoredProcedure, apperrors.Error) {
	if err := schemavalidator.V().Var(newName, "required,nameFormatValidator"); err != nil {
		return nil, ErrInvalidRequest.Msg("invalid procedure name")
	}
	if err := scopeguard.AssertUniqueName(ctx, workspaceID, newName, procedureID); err != nil {
		if err.Is(dberror.ErrAlreadyExists) {
			return nil, ErrNameAlreadyExists
		}
		return nil, err
	}
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	proc, err := db.DB(ctx).RenameProcedure(ctx, procedureID, newName, actor)
	if err != nil {
		switch {
		case err.Is(dberror.ErrAlreadyExists):
			return nil, ErrNameAlreadyExists
		case err.Is(dberror.ErrNotFound):
			return nil, ErrProcedureNotFound
		}
		return nil, err
	}
	return proc, nil
}

// Delete removes the procedure; its ledger history cascades away with it.
func Delete(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID) apperrors.Error {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	err := db.DB(ctx).DeleteProcedure(ctx, procedureID)
	if err != nil && err.Is(dberror.ErrNotFound) {
		return ErrProcedureNotFound
	}
	return err
}

// History yields the procedure's ledger entries ordered by version
// ascending. Pages are fetched lazily as the consumer advances, so an
// early break reads at most one page; the sequence is restartable.
func History(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID) iter.Seq2[*models.StoredProcedureVersion, apperrors.Error] {
	return func(yield func(*models.StoredProcedureVersion, apperrors.Error) bool) {
		hctx := proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
		afterVersion := 0
		for {
			page, err := db.DB(hctx).ListProcedureVersions(hctx, procedureID, afterVersion, historyPageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for i := range page {
				if !yield(&page[i], nil) {
					return
				}
				afterVersion = page[i].Version
			}
			if len(page) < historyPageSize {
				return
			}
		}
	}
}

// Latest returns the highest-numbered ledger entry, optionally filtered
// by source ("" matches any).
func Latest(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID, source types.VersionSource) (*models.StoredProcedureVersion, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	entry, err := db.DB(ctx).GetLatestVersion(ctx, procedureID, source)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return entry, nil
}

// GetVersion returns a single ledger entry by number.
func GetVersion(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID, version int) (*models.StoredProcedureVersion, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	entry, err := db.DB(ctx).GetProcedureVersion(ctx, procedureID, version)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return entry, nil
}

// SnapshotDraft writes a draft-sourced ledger entry without changing the
// procedure's lifecycle state. Publishes remain the only implicit journal
// writes; this is for callers that want an explicit checkpoint.
func SnapshotDraft(ctx context.Context, workspaceID types.WorkspaceId, procedureID uuid.UUID, actor types.UserId) (*models.StoredProcedureVersion, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	proc, err := db.DB(ctx).GetProcedure(ctx, procedureID)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrProcedureNotFound
		}
		return nil, err
	}
	if strings.TrimSpace(proc.SQLDraft) == "" {
		return nil, ErrEmptySQL.Msg("cannot snapshot an empty draft")
	}
	entry := &models.StoredProcedureVersion{
		ProcedureID: procedureID,
		WorkspaceID: workspaceID,
		Source:      types.VersionSourceDraft,
		Name:        proc.Name,
		SQLText:     proc.SQLDraft,
		CreatedBy:   actor,
	}
	if err := db.DB(ctx).CreateProcedureVersion(ctx, entry); err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrProcedureNotFound
		}
		return nil, err
	}
	return entry, nil
}
