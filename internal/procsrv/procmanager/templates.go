package procmanager

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	json "github.com/json-iterator/go"
	"github.com/procline/procline/internal/common/apperrors"
	"github.com/procline/procline/internal/procsrv/config"
	"github.com/procline/procline/internal/procsrv/db"
	"github.com/procline/procline/internal/procsrv/db/dberror"
	"github.com/procline/procline/internal/procsrv/db/models"
	"github.com/procline/procline/internal/procsrv/schema/schemavalidator"
	"github.com/procline/procline/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// TemplateRequest is the write shape for the template catalog.
type TemplateRequest struct {
	Name         string          `json:"name" validate:"required,nameFormatValidator"`
	Description  string          `json:"description,omitempty"`
	SQLTemplate  string          `json:"sqlTemplate" validate:"required"`
	ParamsSchema json.RawMessage `json:"paramsSchema,omitempty"`
}

// compiledTemplate pairs a template row with its compiled params schema.
// Template rows never change under an id except through UpdateTemplate and
// DeleteTemplate, which invalidate, so cached entries cannot go stale.
type compiledTemplate struct {
	tpl    *models.ProcedureTemplate
	schema *jsonschema.Schema
}

var (
	templateCacheMu  sync.RWMutex
	templateCache    = make(map[uuid.UUID]*compiledTemplate)
	templateCacheGen uint64
)

func cacheGet(templateID uuid.UUID) *compiledTemplate {
	templateCacheMu.RLock()
	defer templateCacheMu.RUnlock()
	return templateCache[templateID]
}

func cacheGeneration() uint64 {
	templateCacheMu.RLock()
	defer templateCacheMu.RUnlock()
	return templateCacheGen
}

// cachePut inserts an entry loaded under gen. An invalidation between the
// load's db read and the put bumps the generation, so a stale row can
// never re-enter the cache; the next load re-reads the current row.
func cachePut(templateID uuid.UUID, ct *compiledTemplate, gen uint64) {
	templateCacheMu.Lock()
	defer templateCacheMu.Unlock()
	if gen != templateCacheGen {
		return
	}
	if len(templateCache) >= config.Config().TemplateCacheSize {
		templateCache = make(map[uuid.UUID]*compiledTemplate)
	}
	templateCache[templateID] = ct
}

func cacheInvalidate(templateID uuid.UUID) {
	templateCacheMu.Lock()
	defer templateCacheMu.Unlock()
	templateCacheGen++
	delete(templateCache, templateID)
}

func (req *TemplateRequest) toModel(actor types.UserId) (*models.ProcedureTemplate, apperrors.Error) {
	if err := schemavalidator.V().Struct(req); err != nil {
		return nil, ErrInvalidRequest.Msg("invalid template")
	}
	if strings.TrimSpace(req.SQLTemplate) == "" {
		return nil, ErrEmptySQL.Msg("template body cannot be empty")
	}
	tpl := &models.ProcedureTemplate{
		Name:        req.Name,
		Description: req.Description,
		SQLTemplate: req.SQLTemplate,
		CreatedBy:   actor,
	}
	if len(req.ParamsSchema) > 0 {
		// Reject broken schemas at write time, not at first instantiation.
		if _, err := schemavalidator.CompileSchema(string(req.ParamsSchema)); err != nil {
			return nil, ErrInvalidRequest.Msg("invalid params schema: " + err.Error())
		}
		if err := tpl.ParamsSchema.Set([]byte(req.ParamsSchema)); err != nil {
			return nil, ErrInvalidRequest.Msg("invalid params schema")
		}
	} else {
		tpl.ParamsSchema = pgtype.JSONB{Status: pgtype.Null}
	}
	return tpl, nil
}

// CreateTemplate adds a template to the shared catalog.
func CreateTemplate(ctx context.Context, req *TemplateRequest, actor types.UserId) (*models.ProcedureTemplate, apperrors.Error) {
	if req == nil {
		return nil, ErrInvalidRequest.Msg("template is required")
	}
	tpl, aerr := req.toModel(actor)
	if aerr != nil {
		return nil, aerr
	}
	if err := db.DB(ctx).CreateTemplate(ctx, tpl); err != nil {
		if err.Is(dberror.ErrAlreadyExists) {
			return nil, ErrNameAlreadyExists.Msg("a template with this name already exists")
		}
		return nil, err
	}
	return tpl, nil
}

func GetTemplate(ctx context.Context, templateID uuid.UUID) (*models.ProcedureTemplate, apperrors.Error) {
	if ct := cacheGet(templateID); ct != nil {
		return ct.tpl, nil
	}
	tpl, err := db.DB(ctx).GetTemplate(ctx, templateID)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return tpl, nil
}

func GetTemplateByName(ctx context.Context, name string) (*models.ProcedureTemplate, apperrors.Error) {
	tpl, err := db.DB(ctx).GetTemplateByName(ctx, name)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return tpl, nil
}

func ListTemplates(ctx context.Context) ([]models.ProcedureTemplate, apperrors.Error) {
	return db.DB(ctx).ListTemplates(ctx)
}

// UpdateTemplate replaces a template's body, description and schema. The
// name is immutable; instantiated procedures are unaffected.
func UpdateTemplate(ctx context.Context, templateID uuid.UUID, req *TemplateRequest, actor types.UserId) (*models.ProcedureTemplate, apperrors.Error) {
	if req == nil {
		return nil, ErrInvalidRequest.Msg("template is required")
	}
	tpl, aerr := req.toModel(actor)
	if aerr != nil {
		return nil, aerr
	}
	tpl.TemplateID = templateID
	if err := db.DB(ctx).UpdateTemplate(ctx, tpl); err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	cacheInvalidate(templateID)
	return tpl, nil
}

func DeleteTemplate(ctx context.Context, templateID uuid.UUID) apperrors.Error {
	if err := db.DB(ctx).DeleteTemplate(ctx, templateID); err != nil {
		if err.Is(dberror.ErrNotFound) {
			return ErrTemplateNotFound
		}
		return err
	}
	cacheInvalidate(templateID)
	return nil
}

func loadCompiledTemplate(ctx context.Context, templateID uuid.UUID) (*compiledTemplate, apperrors.Error) {
	if ct := cacheGet(templateID); ct != nil {
		return ct, nil
	}
	gen := cacheGeneration()
	tpl, err := db.DB(ctx).GetTemplate(ctx, templateID)
	if err != nil {
		if err.Is(dberror.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	ct := &compiledTemplate{tpl: tpl}
	if tpl.ParamsSchema.Status == pgtype.Present && len(tpl.ParamsSchema.Bytes) > 0 {
		compiled, cerr := schemavalidator.CompileSchema(string(tpl.ParamsSchema.Bytes))
		if cerr != nil {
			log.Ctx(ctx).Error().Err(cerr).Str("template_id", templateID.String()).Msg("stored params schema does not compile")
			return nil, ErrProcManager.Msg("stored params schema does not compile")
		}
		ct.schema = compiled
	}
	cachePut(templateID, ct, gen)
	return ct, nil
}

var placeholderRegex = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// renderTemplate substitutes {{param}} placeholders with values from the
// params document. Every placeholder must resolve; params that match no
// placeholder are allowed (the schema decides what is required).
func renderTemplate(sqlTemplate string, params []byte) (string, apperrors.Error) {
	var missing []string
	seen := make(map[string]bool)
	rendered := placeholderRegex.ReplaceAllStringFunc(sqlTemplate, func(m string) string {
		key := placeholderRegex.FindStringSubmatch(m)[1]
		value := gjson.GetBytes(params, key)
		if !value.Exists() {
			if !seen[key] {
				seen[key] = true
				missing = append(missing, key)
			}
			return m
		}
		return value.String()
	})
	if len(missing) > 0 {
		return "", ErrInvalidParams.Msg("unresolved placeholders: " + strings.Join(missing, ", "))
	}
	return rendered, nil
}

// Instantiate renders a template with the given parameters and creates the
// result as a new draft procedure in the workspace. The template record is
// never mutated.
func Instantiate(ctx context.Context, workspaceID types.WorkspaceId, templateID uuid.UUID, name string, params json.RawMessage, actor types.UserId) (*models.StoredProcedure, apperrors.Error) {
	ct, aerr := loadCompiledTemplate(ctx, templateID)
	if aerr != nil {
		return nil, aerr
	}

	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	if !gjson.ValidBytes(params) {
		return nil, ErrInvalidParams.Msg("params is not valid JSON")
	}

	if ct.schema != nil {
		var doc any
		if err := json.Unmarshal(params, &doc); err != nil {
			return nil, ErrInvalidParams.Msg("params is not valid JSON")
		}
		if ves := schemavalidator.ValidateAgainstSchema(ct.schema, doc); len(ves) > 0 {
			return nil, ErrInvalidParams.Msg(ves.Error())
		}
	}

	rendered, aerr := renderTemplate(ct.tpl.SQLTemplate, params)
	if aerr != nil {
		return nil, aerr
	}

	proc, aerr := Create(ctx, workspaceID, name, rendered, actor)
	if aerr != nil {
		return nil, aerr
	}
	log.Ctx(ctx).Info().Str("template", ct.tpl.Name).Str("procedure_id", proc.ProcedureID.String()).Msg("instantiated template")
	return proc, nil
}
