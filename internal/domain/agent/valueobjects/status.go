package valueobjects

import "fmt"

// Status is an agent's availability for routing.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusAway      Status = "away"
	StatusOffline   Status = "offline"
)

var validStatuses = map[Status]bool{
	StatusAvailable: true,
	StatusBusy:      true,
	StatusAway:      true,
	StatusOffline:   true,
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsUnavailable reports whether conversations held by an agent in this
// status should be handed to someone else.
func (s Status) IsUnavailable() bool {
	return s == StatusAway || s == StatusOffline
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid agent status: %q", raw)
	}
	return s, nil
}
