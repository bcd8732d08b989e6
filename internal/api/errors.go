package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/motodash/cluster/internal/storage"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

var fieldNamesOnce sync.Once

// registerJSONFieldNames makes validation errors report json names
// instead of Go field names.
func registerJSONFieldNames() {
	fieldNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// fieldErrors flattens a bind error into per-field messages.
func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "json":
		return "must be valid JSON"
	}
	return "failed " + fe.Tag() + " validation"
}

func (s *Server) invalid(c *gin.Context, entity string, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Message: "Invalid " + entity + " data",
		Errors:  fieldErrors(err),
	})
}

func (s *Server) notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Message: message})
}

// fail logs err and answers 500 with message. Store errors are never retried.
func (s *Server) fail(c *gin.Context, message string, err error) {
	s.deps.Logger.Error(message, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: message})
}

// storeError maps ErrNotFound to 404 and everything else to 500.
func (s *Server) storeError(c *gin.Context, err error, missing, failed string) {
	if errors.Is(err, storage.ErrNotFound) {
		s.notFound(c, missing)
		return
	}
	s.fail(c, failed, err)
}
