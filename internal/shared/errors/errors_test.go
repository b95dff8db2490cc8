package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_WrappedClassification(t *testing.T) {
	err := fmt.Errorf("load agent: %w", NewNotFoundError("agent not found", "id=7"))

	assert.True(t, IsNotFoundError(err))
	assert.False(t, IsConflictError(err))
	assert.Equal(t, http.StatusNotFound, GetAppError(err).Code)
	assert.Equal(t, "not_found: agent not found (id=7)", GetAppError(err).Error())
}

func TestConflictError(t *testing.T) {
	err := NewConflictError("agent at capacity")
	assert.True(t, IsConflictError(err))
	assert.Equal(t, http.StatusConflict, err.Code)
	assert.Nil(t, GetAppError(fmt.Errorf("plain")))
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(fmt.Errorf("Error 1062: Duplicate entry '5' for key 'uk_room'")))
	assert.True(t, IsDuplicateError(fmt.Errorf("UNIQUE constraint failed: support_tickets.chat_room_id")))
	assert.False(t, IsDuplicateError(nil))
	assert.False(t, IsDuplicateError(fmt.Errorf("timeout")))
}
