package delivery

import "fmt"

// State is a totally ordered delivery state. Larger values are further along.
type State uint8

const (
	StateSent      State = 1
	StateDelivered State = 2
	StateRead      State = 3
)

func (s State) IsValid() bool {
	return s >= StateSent && s <= StateRead
}

func (s State) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateDelivered:
		return "delivered"
	case StateRead:
		return "read"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}
