package constants

const (
	// Environment constants
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// HTTP Headers
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"

	// Context keys
	ContextKeyUserID    = "user_id"
	ContextKeyUserRole  = "user_role"
	ContextKeyRequestID = "request_id"

	// Roles
	RoleCustomer = "customer"
	RoleGuest    = "guest"
	RoleAgent    = "agent"
	RoleAdmin    = "admin"

	// Database table names
	TableAgents            = "agents"
	TableSupportTickets    = "support_tickets"
	TableChatRooms         = "chat_rooms"
	TableChatMessages      = "chat_messages"
	TableRoomParticipants  = "chat_room_participants"
	TableMessageDeliveries = "message_delivery_statuses"

	// Error messages
	ErrMsgInternalServerError = "Internal server error occurred"
	ErrMsgUnauthorized        = "Unauthorized access"
	ErrMsgForbidden           = "Access forbidden"
)
