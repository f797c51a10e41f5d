package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tavern-guild/tavern/internal/apperr"
)

const internalMessage = "Something went wrong"

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var registerTagNames sync.Once

// useJSONFieldNames makes validator report json names ("displayName") instead of Go field names.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
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

type envelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Issues  []apperr.Issue `json:"issues,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

// fail renders err with the status of its kind. Internal errors are logged
// and replaced by a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		err = apperr.Validation("invalid request", validationIssues(verrs)...)
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
		c.AbortWithStatusJSON(appErr.Status(), envelope{
			Message: appErr.Message,
			Issues:  appErr.Issues,
		})
		return
	}

	h.log.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("Request failed")

	c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{Message: internalMessage})
}

// bind decodes the JSON body into dst and runs its binding rules.
func bind(c *gin.Context, dst interface{}) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &verrs):
		return err
	case errors.Is(err, io.EOF):
		return apperr.Validation("request body is required")
	case errors.As(err, &typeErr):
		return apperr.Validation("invalid request body", apperr.Issue{
			Field:   typeErr.Field,
			Message: "must be of type " + typeErr.Type.String(),
		})
	case errors.As(err, &syntaxErr):
		return apperr.Validation("request body is not valid JSON")
	default:
		return apperr.Validation("invalid request body", apperr.Issue{Field: "body", Message: err.Error()})
	}
}

func validationIssues(verrs validator.ValidationErrors) []apperr.Issue {
	issues := make([]apperr.Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, apperr.Issue{Field: issueField(fe), Message: issueMessage(fe)})
	}
	return issues
}

// issueField drops the struct name from the namespace: "UpdateProfileInput.attributes.strength" -> "attributes.strength".
func issueField(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func issueMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array

	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		switch {
		case isString:
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		case isList:
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		switch {
		case isString:
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		case isList:
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

// parsePaging reads limit and offset query parameters.
func parsePaging(c *gin.Context, defaultLimit, maxLimit int) (limit, offset int, err error) {
	limit, err = parseIntQuery(c, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit < 1 {
		return 0, 0, apperr.Validation("invalid query", apperr.Issue{Field: "limit", Message: "must be at least 1"})
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err = parseIntQuery(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if offset < 0 {
		return 0, 0, apperr.Validation("invalid query", apperr.Issue{Field: "offset", Message: "must not be negative"})
	}
	return limit, offset, nil
}

func parseIntQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("invalid query", apperr.Issue{Field: name, Message: "must be an integer"})
	}
	return v, nil
}

// parseBoolQuery returns nil when the parameter is absent.
func parseBoolQuery(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation("invalid query", apperr.Issue{Field: name, Message: "must be true or false"})
	}
	return &v, nil
}
