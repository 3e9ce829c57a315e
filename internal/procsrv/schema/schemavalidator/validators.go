package schemavalidator

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/procline/procline/pkg/types"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// V returns the process-wide validator with the custom tags registered.
func V() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterValidation("kindValidator", kindValidator)
		validate.RegisterValidation("resourceNameValidator", resourceNameValidator)
		validate.RegisterValidation("nameFormatValidator", nameFormatValidator)
		validate.RegisterValidation("noSpaces", noSpacesValidator)
		validate.RegisterValidation("notNull", notNull)
		validate.RegisterValidation("workspaceIdValidator", workspaceIdValidator)
		validate.RegisterValidation("paramNameValidator", paramNameValidator)
	})
	return validate
}

var validKinds = []string{
	types.WorkspaceKind,
	types.EnvironmentKind,
	types.ProcedureKind,
	types.TemplateKind,
}

// kindValidator checks if the given kind is a valid resource kind.
func kindValidator(fl validator.FieldLevel) bool {
	kind := fl.Field().String()
	return slices.Contains(validKinds, kind)
}

const nameRegex = `^[A-Za-z0-9_-]+$`

// nameFormatValidator checks if the given name is alphanumeric with underscores and hyphens.
func nameFormatValidator(fl validator.FieldLevel) bool {
	re := regexp.MustCompile(nameRegex)
	return re.MatchString(fl.Field().String())
}

const resourceNameRegex = `^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`
const resourceNameMaxLength = 63

// resourceNameValidator checks if the given name follows our convention.
func resourceNameValidator(fl validator.FieldLevel) bool {
	str := fl.Field().String()
	if len(str) > resourceNameMaxLength {
		return false
	}
	re := regexp.MustCompile(resourceNameRegex)
	return re.MatchString(str)
}

// notNull checks if a nullable value is not null
func notNull(fl validator.FieldLevel) bool {
	nv, ok := fl.Field().Interface().(types.Nullable)
	if !ok { // not a nullable type
		return true
	}
	return !nv.IsNil()
}

func noSpacesValidator(fl validator.FieldLevel) bool {
	re := regexp.MustCompile(`^[^\s]+$`)
	return re.MatchString(fl.Field().String())
}

const workspaceIdRegex = `^W[A-Z0-9]{6}$`

func workspaceIdValidator(fl validator.FieldLevel) bool {
	var str string
	if id, ok := fl.Field().Interface().(types.WorkspaceId); ok {
		str = string(id)
	} else {
		str = fl.Field().String()
	}
	re := regexp.MustCompile(workspaceIdRegex)
	return re.MatchString(str)
}

// Template parameter names double as substitution placeholders, so they
// are restricted to identifier characters.
const paramNameRegex = `^[A-Za-z_][A-Za-z0-9_]*$`

func paramNameValidator(fl validator.FieldLevel) bool {
	re := regexp.MustCompile(paramNameRegex)
	return re.MatchString(fl.Field().String())
}

func ValidateResourceName(name string) bool {
	re := regexp.MustCompile(resourceNameRegex)
	return len(name) <= resourceNameMaxLength && re.MatchString(name)
}

// GetJSONFieldPath resolves a validator struct field name to the json tag
// path a caller would recognize from the request payload.
func GetJSONFieldPath(value reflect.Value, t reflect.Type, structField string) string {
	path, ok := findJSONPath(t, structField)
	if !ok {
		return structField
	}
	return path
}

func findJSONPath(t reflect.Type, structField string) (string, bool) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return "", false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := jsonFieldName(f)
		if f.Name == structField {
			return name, true
		}
		ft := f.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			if nested, ok := findJSONPath(ft, structField); ok {
				if f.Anonymous || name == "" {
					return nested, true
				}
				return name + "." + nested, true
			}
		}
	}
	return "", false
}

func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return f.Name
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		return f.Name
	}
	return name
}
