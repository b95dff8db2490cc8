package botreply

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/livedesk/internal/application/ticket/usecases"
)

func TestStaticResponder(t *testing.T) {
	r := NewStaticResponder("Thanks for asking about {subject}. An agent will join shortly.")
	text, err := r.Greeting(context.Background(), usecases.GreetingRequest{Subject: "billing"})
	require.NoError(t, err)
	assert.Equal(t, "Thanks for asking about billing. An agent will join shortly.", text)
}
