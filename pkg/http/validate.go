package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationErrors is the 400 payload for a rejected request body.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

var validate = newValidator()

// newValidator reports fields under their JSON names, as the client sent them.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		switch name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name {
		case "-":
			return ""
		case "":
			return f.Name
		default:
			return name
		}
	})
	return v
}

// BindAndValidate binds the request body into req, fills `default` tags and
// runs `validate` tags. It returns nil when req is usable.
func BindAndValidate(c echo.Context, req interface{}) ValidationErrors {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	return check(c.Request().Context(), req)
}

// DecodeAndValidate is BindAndValidate for one raw JSON document, such as a
// websocket frame.
func DecodeAndValidate(ctx context.Context, data []byte, req interface{}) ValidationErrors {
	if err := json.Unmarshal(data, req); err != nil {
		return toValidationErrors(err)
	}
	return check(ctx, req)
}

func check(ctx context.Context, req interface{}) ValidationErrors {
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(ctx, req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make(ValidationErrors, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, fieldError(fe))
		}
		return out
	}

	// echo wraps decoder errors in an HTTPError, so unwrap the JSON ones first.
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return ValidationErrors{{
			Code:    "ERR_TYPE",
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type)),
			Params:  map[string]interface{}{"got": typeErr.Value},
		}}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return ValidationErrors{{
			Code:    "ERR_SYNTAX",
			Message: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset),
		}}
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return ValidationErrors{{Code: "ERR_UNKNOWN", Message: msg}}
}

// jsonKind names t the way a JSON client thinks of it.
func jsonKind(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch k := t.Kind(); {
	case k >= reflect.Int && k <= reflect.Float64:
		return "number"
	case k == reflect.String:
		return "string"
	case k == reflect.Bool:
		return "boolean"
	default:
		return k.String()
	}
}

type tagRule struct {
	format string // field, param
	param  string // key under Params; empty for none
}

var tagRules = map[string]tagRule{
	"required": {format: "%s is required"},
	"min":      {format: "%s must be at least %s", param: "min"},
	"gte":      {format: "%s must be greater than or equal to %s", param: "min"},
	"max":      {format: "%s must be at most %s", param: "max"},
	"lte":      {format: "%s must be less than or equal to %s", param: "max"},
	"gt":       {format: "%s must be greater than %s", param: "value"},
	"lt":       {format: "%s must be less than %s", param: "value"},
	"oneof":    {format: "%s must be one of: %s", param: "options"},
}

func fieldError(fe validator.FieldError) ValidationError {
	ve := ValidationError{
		Code:  "ERR_" + strings.ToUpper(fe.Tag()),
		Field: fe.Field(),
	}
	rule, ok := tagRules[fe.Tag()]
	if !ok {
		ve.Message = fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
		return ve
	}

	param := fe.Param()
	if fe.Tag() == "oneof" {
		ve.Params = map[string]interface{}{rule.param: strings.Fields(param)}
		param = strings.Join(strings.Fields(param), ", ")
	} else if rule.param != "" {
		ve.Params = map[string]interface{}{rule.param: param}
	}
	if strings.Count(rule.format, "%s") == 1 {
		ve.Message = fmt.Sprintf(rule.format, fe.Field())
	} else {
		ve.Message = fmt.Sprintf(rule.format, fe.Field(), param)
	}
	if fe.Type().Kind() == reflect.String && (fe.Tag() == "min" || fe.Tag() == "max") {
		ve.Message += " characters"
	}
	return ve
}
