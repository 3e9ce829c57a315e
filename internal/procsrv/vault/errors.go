package vault

import (
	"net/http"

	"github.com/procline/procline/internal/common/apperrors"
)

var (
	ErrVault               apperrors.Error = apperrors.New("vault error").SetStatusCode(http.StatusInternalServerError)
	ErrEnvironmentNotFound apperrors.Error = ErrVault.New("no connection profile for this workspace").SetStatusCode(http.StatusNotFound)
	ErrConnectionTestBusy  apperrors.Error = ErrVault.New("a connection test is already in progress").SetStatusCode(http.StatusLocked)
	ErrInvalidProfile      apperrors.Error = ErrVault.New("invalid connection profile").SetStatusCode(http.StatusBadRequest)
	ErrDecryptFailed       apperrors.Error = ErrVault.New("unable to decrypt stored password")
)
