package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/types"
)

// Tool is one operation exposed to the agent
type Tool struct {
	Name        string             `json:"name"`
	Plugin      string             `json:"plugin"`
	Description string             `json:"description"`
	Schema      *jsonschema.Schema `json:"input_schema"`

	Execute func(ctx context.Context, params json.RawMessage) (any, error) `json:"-"`
}

var (
	validate = newValidator()

	reflector = &jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
		Mapper:         mapType,
	}

	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// mapType renders decimals as strings so the agent sends exact amounts
func mapType(t reflect.Type) *jsonschema.Schema {
	if t == decimalType {
		return &jsonschema.Schema{Type: "string", Pattern: `^\d+(\.\d+)?$`}
	}
	return nil
}

// New builds a tool whose input schema is reflected from P. Parameters are
// decoded into P and checked against its validate tags before fn runs.
func New[P any](plugin, name, description string, fn func(ctx context.Context, params P) (any, error)) Tool {
	var zero P
	schema := reflector.Reflect(&zero)
	schema.Version = ""
	schema.Description = description

	return Tool{
		Name:        name,
		Plugin:      plugin,
		Description: description,
		Schema:      schema,
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var params P
			if err := decode(raw, &params); err != nil {
				return nil, apperr.Wrap(apperr.KindValidation, name, err, "invalid parameters")
			}
			if err := validateParams(&params); err != nil {
				return nil, apperr.Wrap(apperr.KindValidation, name, err, "invalid parameters")
			}
			return fn(ctx, params)
		},
	}
}

func decode(raw json.RawMessage, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func validateParams(params any) error {
	if reflect.Indirect(reflect.ValueOf(params)).Kind() != reflect.Struct {
		return nil
	}
	err := validate.Struct(params)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "gt", "gte", "min":
		return field + " must be at least " + fe.Param()
	case "lt", "lte", "max":
		return field + " must be at most " + fe.Param()
	default:
		return field + " failed " + fe.Tag() + " check"
	}
}

// envelope turns a tool outcome into a result envelope. Tools that already
// produce an envelope are passed through.
func envelope(out any, err error) types.Result {
	if err != nil {
		return types.Failure(err)
	}
	switch v := out.(type) {
	case types.Result:
		return v
	case *types.Result:
		if v != nil {
			return *v
		}
	}
	return types.Success(out)
}
