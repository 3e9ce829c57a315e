package dberror

import (
	"net/http"

	"github.com/procline/procline/internal/common/apperrors"
)

var (
	ErrDatabase           apperrors.Error = apperrors.New("db error").SetStatusCode(http.StatusInternalServerError)
	ErrAlreadyExists      apperrors.Error = ErrDatabase.New("already exists").SetStatusCode(http.StatusConflict)
	ErrNotFound           apperrors.Error = ErrDatabase.New("not found").SetStatusCode(http.StatusNotFound)
	ErrInvalidInput       apperrors.Error = ErrDatabase.New("invalid input").SetStatusCode(http.StatusBadRequest)
	ErrInvalidWorkspace   apperrors.Error = ErrDatabase.New("invalid workspace").SetStatusCode(http.StatusBadRequest)
	ErrMissingWorkspaceID apperrors.Error = ErrInvalidInput.New("missing workspace ID").SetStatusCode(http.StatusBadRequest)
	ErrVersionConflict    apperrors.Error = ErrAlreadyExists.New("version number conflict").SetStatusCode(http.StatusConflict)
	ErrTestInProgress     apperrors.Error = ErrDatabase.New("connection test already in progress").SetStatusCode(http.StatusLocked)
	ErrEmptyDraft         apperrors.Error = ErrInvalidInput.New("draft SQL is empty").SetStatusCode(http.StatusBadRequest)
)
