package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"makequeue-backend/internal/apperr"
)

const undefinedFieldsMessage = "These provided fields are not defined in the API."

// fieldErrors maps wire field names to their messages.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// respondError writes err in the shape of its kind. Errors without a kind are logged and
// reported as 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr := apperr.From(err)
	if appErr == nil {
		_ = c.Error(err)
		h.logger.Error("request failed", "error", err, "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
		return
	}

	if appErr.Status == http.StatusBadRequest {
		errs := fieldErrors{}
		errs.add(appErr.Field, appErr.Message)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"field_errors": errs})
		return
	}
	c.AbortWithStatusJSON(appErr.Status, gin.H{"detail": appErr.Message})
}

// bindJSON decodes and validates the request body into dst. On failure it writes the
// 400 response and returns false.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, err)
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		errs := fieldErrors{}
		errs.add(apperr.NonFieldErrors, "Malformed JSON.")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"field_errors": errs})
		return false
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}

	return respondInvalid(c, binding.JSON.BindBody(body, dst), undefined(keys, dst))
}

// bindQuery is bindJSON for query parameters.
func (h *Handler) bindQuery(c *gin.Context, dst any) bool {
	keys := make([]string, 0)
	for k := range c.Request.URL.Query() {
		keys = append(keys, k)
	}
	return respondInvalid(c, c.ShouldBindQuery(dst), undefined(keys, dst))
}

func undefined(keys []string, dst any) []string {
	known := knownKeys(dst)
	var out []string
	for _, k := range keys {
		if !known[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func respondInvalid(c *gin.Context, bindErr error, undefinedFields []string) bool {
	if bindErr == nil && len(undefinedFields) == 0 {
		return true
	}

	body := gin.H{}
	if bindErr != nil {
		body["field_errors"] = translate(bindErr)
	}
	if len(undefinedFields) > 0 {
		body["undefined_fields"] = gin.H{"message": undefinedFieldsMessage, "fields": undefinedFields}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
	return false
}

func translate(err error) fieldErrors {
	errs := fieldErrors{}

	var validationErrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &validationErrs):
		for _, fe := range validationErrs {
			errs.add(fe.Field(), validationMessage(fe))
		}
	case errors.As(err, &typeErr) && typeErr.Field != "":
		errs.add(typeErr.Field, "Enter a valid value.")
	default:
		errs.add(apperr.NonFieldErrors, err.Error())
	}
	return errs
}
