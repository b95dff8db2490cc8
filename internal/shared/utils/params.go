package utils

import (
	stderrors "errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/shared/errors"
)

// ParseUintParam reads a positive integer path parameter.
func ParseUintParam(c *gin.Context, name, entity string) (uint, error) {
	raw := c.Param(name)
	if raw == "" {
		return 0, errors.NewValidationError(entity + " ID is required")
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, errors.NewValidationError("invalid " + entity + " ID")
	}
	return uint(v), nil
}

// BindJSON binds and validates a required JSON body.
func BindJSON(c *gin.Context, target any) error {
	if err := c.ShouldBindJSON(target); err != nil {
		return errors.NewValidationError("invalid request body", err.Error())
	}
	return ValidateStruct(target)
}

// BindOptionalJSON is BindJSON for endpoints whose body may be omitted; an
// empty body leaves target at its zero value.
func BindOptionalJSON(c *gin.Context, target any) error {
	if err := c.ShouldBindJSON(target); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.NewValidationError("invalid request body", err.Error())
	}
	return ValidateStruct(target)
}
