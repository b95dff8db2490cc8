package valueobjects

import "fmt"

type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusClosed     TicketStatus = "closed"
)

var validTicketStatuses = map[TicketStatus]bool{
	StatusOpen:       true,
	StatusInProgress: true,
	StatusClosed:     true,
}

func (s TicketStatus) String() string {
	return string(s)
}

func (s TicketStatus) IsValid() bool {
	return validTicketStatuses[s]
}

// IsActive is true for tickets that still occupy routing: open or in progress.
func (s TicketStatus) IsActive() bool {
	return s == StatusOpen || s == StatusInProgress
}

func ParseTicketStatus(raw string) (TicketStatus, error) {
	s := TicketStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid ticket status: %q", raw)
	}
	return s, nil
}

// ActiveStatuses lists the statuses counted as workload.
func ActiveStatuses() []TicketStatus {
	return []TicketStatus{StatusOpen, StatusInProgress}
}
