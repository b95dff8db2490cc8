package ticket

import "errors"

var ErrTicketClosed = errors.New("ticket is closed")
