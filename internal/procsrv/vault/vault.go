// Package vault manages workspace connection profiles: validation,
// encryption at rest, the connection-health state machine, and the single
// decrypted hand-off to the execution layer.
package vault

import (
	"context"
	"database/sql"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/json-iterator/go"
	"github.com/procline/procline/internal/common/apperrors"
	"github.com/procline/procline/internal/procsrv/config"
	"github.com/procline/procline/internal/procsrv/db"
	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/db/models"
	"github.com/procline/procline/internal/procsrv/proccommon"
	"github.com/procline/procline/internal/procsrv/schema/schemaerr"
	"github.com/procline/procline/internal/procsrv/schema/schemavalidator"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"
)

// KeyProvider supplies the passphrase protecting passwords at rest. It is
// an explicit dependency so tests and future external key services can
// replace the config-sourced default.
type KeyProvider interface {
	Passphrase() string
}

type configKeyProvider struct{}

func (configKeyProvider) Passphrase() string {
	return config.Config().KeyEncryptionPasswd
}

// ConnectionProfile is the caller-supplied shape of a workspace's database
// connection. Password is write-only: reads never return it.
type ConnectionProfile struct {
	Host              string `json:"host" validate:"required,noSpaces"`
	Port              int    `json:"port" validate:"required,gt=0,lte=65535"`
	Username          string `json:"username" validate:"required"`
	Password          string `json:"password,omitempty" validate:"required"`
	Database          string `json:"database" validate:"required"`
	ConnectionTimeout int    `json:"connectionTimeout,omitempty" validate:"omitempty,gte=0"`
	Encrypt           bool   `json:"encrypt"`
}

func (p *ConnectionProfile) Validate() schemaerr.ValidationErrors {
	var validationErrors schemaerr.ValidationErrors

	err := schemavalidator.V().Struct(p)
	if err == nil {
		return validationErrors
	}

	validatorErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return append(validationErrors, schemaerr.ErrInvalidSchema)
	}

	value := reflect.ValueOf(p).Elem()
	typeOfProfile := value.Type()

	for _, e := range validatorErrors {
		jsonFieldName := schemavalidator.GetJSONFieldPath(value, typeOfProfile, e.StructField())
		switch e.Tag() {
		case "required":
			validationErrors = append(validationErrors, schemaerr.ErrMissingRequiredAttribute(jsonFieldName))
		case "gt", "lte", "gte":
			validationErrors = append(validationErrors, schemaerr.ErrInvalidFieldSchema(jsonFieldName, "out of range"))
		default:
			validationErrors = append(validationErrors, schemaerr.ErrValidationFailed(jsonFieldName))
		}
	}

	return validationErrors
}

// RedactedJSON renders the profile for read paths with the password field
// stripped.
func (p *ConnectionProfile) RedactedJSON() ([]byte, apperrors.Error) {
	j, err := json.Marshal(p)
	if err != nil {
		return nil, ErrVault.Msg("failed to serialize profile")
	}
	j, err = sjson.DeleteBytes(j, "password")
	if err != nil {
		return nil, ErrVault.Msg("failed to redact profile")
	}
	return j, nil
}

// ConnectionInfo is the redacted read model of a stored profile.
type ConnectionInfo struct {
	Profile          ConnectionProfile      `json:"profile"`
	ConnectionStatus types.ConnectionStatus `json:"connectionStatus"`
	LastTestedAt     *time.Time             `json:"lastTestedAt,omitempty"`
}

type Vault struct {
	keys   KeyProvider
	prober Prober
}

// New builds a vault. Nil arguments select the config-backed key provider
// and the Postgres prober.
func New(keys KeyProvider, prober Prober) *Vault {
	if keys == nil {
		keys = configKeyProvider{}
	}
	if prober == nil {
		prober = postgresProber{}
	}
	return &Vault{keys: keys, prober: prober}
}

// UpsertConnection stores or replaces the workspace's connection profile.
// Whenever the connection identity changes the health status falls back to
// unknown; re-submitting an identical profile keeps the current status.
func (v *Vault) UpsertConnection(ctx context.Context, workspaceID types.WorkspaceId, profile *ConnectionProfile) (*ConnectionInfo, apperrors.Error) {
	if profile == nil {
		return nil, ErrInvalidProfile.Msg("profile is required")
	}
	if ves := profile.Validate(); len(ves) > 0 {
		return nil, ErrInvalidProfile.Msg(ves.Error())
	}
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)

	passwordEnc, err := proccommon.Encrypt([]byte(profile.Password), v.keys.Passphrase())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to encrypt password")
		return nil, ErrVault.Msg("failed to encrypt password")
	}

	resetStatus := true
	existing, dberr := db.DB(ctx).GetEnvironment(ctx)
	if dberr != nil && !dberr.Is(dberror.ErrNotFound) {
		return nil, dberr
	}
	if dberr == nil {
		resetStatus = v.identityChanged(ctx, existing, profile)
	}

	actor := proccommon.UserIdFromContext(ctx)
	env := &models.Environment{
		WorkspaceID: workspaceID,
		Host:        profile.Host,
		Port:        profile.Port,
		Username:    profile.Username,
		PasswordEnc: passwordEnc,
		Database:    profile.Database,
		Encrypt:     profile.Encrypt,
		CreatedBy:   actor,
		UpdatedBy:   actor,
	}
	if profile.ConnectionTimeout > 0 {
		env.ConnectionTimeout = sql.NullInt32{Int32: int32(profile.ConnectionTimeout), Valid: true}
	}
	if dberr := db.DB(ctx).UpsertEnvironment(ctx, env, resetStatus); dberr != nil {
		return nil, dberr
	}
	log.Ctx(ctx).Info().Str("workspace_id", workspaceID.String()).Bool("status_reset", resetStatus).Msg("stored connection profile")
	return infoFromModel(env), nil
}

// identityChanged reports whether the submitted profile differs from the
// stored one on any field that affects connectivity. The stored password
// is decrypted for the comparison because encryption is salted and
// ciphertexts never repeat.
func (v *Vault) identityChanged(ctx context.Context, existing *models.Environment, profile *ConnectionProfile) bool {
	if existing.Host != profile.Host ||
		existing.Port != profile.Port ||
		existing.Username != profile.Username ||
		existing.Database != profile.Database ||
		existing.Encrypt != profile.Encrypt {
		return true
	}
	currentPassword, err := proccommon.Decrypt(existing.PasswordEnc, v.keys.Passphrase())
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("stored password undecryptable, resetting status")
		return true
	}
	return string(currentPassword) != profile.Password
}

// GetConnection returns the stored profile with the password redacted.
func (v *Vault) GetConnection(ctx context.Context, workspaceID types.WorkspaceId) (*ConnectionInfo, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	env, dberr := db.DB(ctx).GetEnvironment(ctx)
	if dberr != nil {
		if dberr.Is(dberror.ErrNotFound) {
			return nil, ErrEnvironmentNotFound
		}
		return nil, dberr
	}
	return infoFromModel(env), nil
}

// DeleteConnection removes the workspace's profile.
func (v *Vault) DeleteConnection(ctx context.Context, workspaceID types.WorkspaceId) apperrors.Error {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	dberr := db.DB(ctx).DeleteEnvironment(ctx)
	if dberr != nil && dberr.Is(dberror.ErrNotFound) {
		return ErrEnvironmentNotFound
	}
	return dberr
}

// ResolveForExecution decrypts the profile for the execution layer. This
// is the only exported path that returns a plaintext password.
func (v *Vault) ResolveForExecution(ctx context.Context, workspaceID types.WorkspaceId) (*ConnectionParams, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	env, dberr := db.DB(ctx).GetEnvironment(ctx)
	if dberr != nil {
		if dberr.Is(dberror.ErrNotFound) {
			return nil, ErrEnvironmentNotFound
		}
		return nil, dberr
	}
	return v.paramsFromModel(ctx, env)
}

func (v *Vault) paramsFromModel(ctx context.Context, env *models.Environment) (*ConnectionParams, apperrors.Error) {
	password, err := proccommon.Decrypt(env.PasswordEnc, v.keys.Passphrase())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to decrypt password")
		return nil, ErrDecryptFailed
	}
	params := &ConnectionParams{
		Host:     env.Host,
		Port:     env.Port,
		Username: env.Username,
		Password: string(password),
		Database: env.Database,
		Encrypt:  env.Encrypt,
	}
	if env.ConnectionTimeout.Valid {
		params.ConnectionTimeout = int(env.ConnectionTimeout.Int32)
	}
	return params, nil
}

// TestConnection runs a health probe against the workspace's database. At
// most one test runs per workspace at a time; concurrent callers get
// ErrConnectionTestBusy. The outcome is always recorded, including when
// the probe itself errors.
func (v *Vault) TestConnection(ctx context.Context, workspaceID types.WorkspaceId) (types.ConnectionStatus, apperrors.Error) {
	ctx = proccommon.SetWorkspaceIdInContext(ctx, workspaceID)
	actor := proccommon.UserIdFromContext(ctx)

	env, dberr := db.DB(ctx).BeginConnectionTest(ctx, actor)
	if dberr != nil {
		switch {
		case dberr.Is(dberror.ErrTestInProgress):
			return "", ErrConnectionTestBusy
		case dberr.Is(dberror.ErrNotFound):
			return "", ErrEnvironmentNotFound
		}
		return "", dberr
	}

	// Once the row is in testing we own the transition back out. The
	// outcome write must survive the caller abandoning the request, or the
	// row would be stuck in testing and every later test would see Busy.
	recordCtx := context.WithoutCancel(ctx)

	params, perr := v.paramsFromModel(ctx, env)
	if perr != nil {
		if _, dberr := db.DB(recordCtx).FinishConnectionTest(recordCtx, types.ConnectionStatusFailed); dberr != nil {
			log.Ctx(ctx).Error().Msg("failed to record connection test outcome")
		}
		return types.ConnectionStatusFailed, perr
	}

	probeCtx, cancel := context.WithTimeout(ctx, config.Config().ProbeTimeoutDuration())
	defer cancel()

	status := types.ConnectionStatusConnected
	if err := v.prober.Probe(probeCtx, params); err != nil {
		log.Ctx(ctx).Info().Err(err).Str("workspace_id", workspaceID.String()).Msg("connection probe failed")
		status = types.ConnectionStatusFailed
	}

	if _, dberr := db.DB(recordCtx).FinishConnectionTest(recordCtx, status); dberr != nil {
		log.Ctx(ctx).Error().Msg("failed to record connection test outcome")
		return status, dberr
	}
	return status, nil
}

func infoFromModel(env *models.Environment) *ConnectionInfo {
	info := &ConnectionInfo{
		Profile: ConnectionProfile{
			Host:     env.Host,
			Port:     env.Port,
			Username: env.Username,
			Database: env.Database,
			Encrypt:  env.Encrypt,
		},
		ConnectionStatus: env.ConnectionStatus,
	}
	if env.ConnectionTimeout.Valid {
		info.Profile.ConnectionTimeout = int(env.ConnectionTimeout.Int32)
	}
	if env.LastTestedAt.Valid {
		t := env.LastTestedAt.Time
		info.LastTestedAt = &t
	}
	return info
}
