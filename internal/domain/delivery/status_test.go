package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Ordering(t *testing.T) {
	assert.True(t, StateSent < StateDelivered && StateDelivered < StateRead)

	assert.Equal(t, "sent", StateSent.String())
	assert.Equal(t, "delivered", StateDelivered.String())
	assert.Equal(t, "read", StateRead.String())

	assert.True(t, StateRead.IsValid())
	assert.False(t, State(0).IsValid())
	assert.False(t, State(4).IsValid())
	assert.Equal(t, "state(4)", State(4).String())
}
