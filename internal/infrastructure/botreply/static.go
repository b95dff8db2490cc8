package botreply

import (
	"context"
	"strings"

	"github.com/orris-inc/livedesk/internal/application/ticket/usecases"
)

// StaticResponder greets every conversation with the same configured text.
// {subject} is replaced with the ticket subject.
type StaticResponder struct {
	text string
}

func NewStaticResponder(text string) *StaticResponder {
	return &StaticResponder{text: text}
}

func (r *StaticResponder) Greeting(_ context.Context, req usecases.GreetingRequest) (string, error) {
	return strings.ReplaceAll(r.text, "{subject}", req.Subject), nil
}
