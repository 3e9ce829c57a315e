package procmanager

import (
	"net/http"

	"github.com/procline/procline/internal/common/apperrors"
)

var (
	ErrProcManager apperrors.Error = apperrors.New("procedure manager error").SetStatusCode(http.StatusInternalServerError)

	ErrProcedureNotFound apperrors.Error = ErrProcManager.New("procedure not found").SetStatusCode(http.StatusNotFound)
	ErrVersionNotFound   apperrors.Error = ErrProcManager.New("version not found").SetStatusCode(http.StatusNotFound)
	ErrTemplateNotFound  apperrors.Error = ErrProcManager.New("template not found").SetStatusCode(http.StatusNotFound)
	ErrNameAlreadyExists apperrors.Error = ErrProcManager.New("name already in use").SetStatusCode(http.StatusConflict)
	ErrPublishConflict   apperrors.Error = ErrProcManager.New("publish conflicted with a concurrent publish").SetStatusCode(http.StatusConflict)
	ErrEmptySQL          apperrors.Error = ErrProcManager.New("sql body is empty").SetStatusCode(http.StatusBadRequest)
	ErrInvalidRequest    apperrors.Error = ErrProcManager.New("invalid request").SetStatusCode(http.StatusBadRequest)
	ErrInvalidParams     apperrors.Error = ErrInvalidRequest.New("invalid template parameters")
)
