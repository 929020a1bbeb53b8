package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var fieldLabels = map[string]string{
	"name":   "名称",
	"detail": "詳細",
	"start":  "開始日時",
	"end":    "終了日時",
	"active": "有効フラグ",
}

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

// Struct validates a request DTO and returns localized messages keyed by JSON
// field name. A nil map means the request is valid.
func (v *requestValidator) Struct(req any) (map[string]string, error) {
	err := v.validate.Struct(req)
	if err == nil {
		return nil, nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil, err
	}

	details := make(map[string]string, len(validationErrs))
	for _, fieldErr := range validationErrs {
		details[fieldErr.Field()] = translateFieldError(fieldErr)
	}
	return details, nil
}

func translateFieldError(fieldErr validator.FieldError) string {
	label, ok := fieldLabels[fieldErr.Field()]
	if !ok {
		label = fieldErr.Field()
	}
	switch fieldErr.Tag() {
	case "required":
		return label + "は必須です。"
	case "max":
		return fmt.Sprintf("%sは%s文字以内で指定してください。", label, fieldErr.Param())
	case "min":
		return fmt.Sprintf("%sは%s文字以上で指定してください。", label, fieldErr.Param())
	default:
		return label + "の値が不正です。"
	}
}

// decodeRequest decodes a JSON body into req and validates it. It writes a
// 400 or 422 response and returns false when the request is unusable.
func decodeRequest(w http.ResponseWriter, r *http.Request, req any, v *requestValidator, resp responder, logger *slog.Logger) bool {
	ctx := r.Context()
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err, "error_kind", "bad_request")
		resp.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	details, err := v.Struct(req)
	if err != nil {
		logger.WarnContext(ctx, "failed to validate request", "error", err, "error_kind", "bad_request")
		resp.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	if details != nil {
		resp.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "入力内容に誤りがあります。",
			Errors:  details,
		})
		return false
	}
	return true
}
