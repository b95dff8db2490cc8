package http

import (
	agentUsecases "github.com/orris-inc/livedesk/internal/application/agent/usecases"
	messageUsecases "github.com/orris-inc/livedesk/internal/application/message/usecases"
	ticketUsecases "github.com/orris-inc/livedesk/internal/application/ticket/usecases"
)

// allUseCases holds all use case instances used by the handlers.
type allUseCases struct {
	// Agent
	provisionAgentUC *agentUsecases.ProvisionAgentUseCase
	setAgentStatusUC *agentUsecases.SetAgentStatusUseCase
	getAgentStatusUC *agentUsecases.GetAgentStatusUseCase
	listAgentsUC     *agentUsecases.ListAgentsUseCase
	recordActivityUC *agentUsecases.RecordActivityUseCase

	// Ticket
	openTicketUC     *ticketUsecases.OpenTicketUseCase
	transferTicketUC *ticketUsecases.TransferTicketUseCase
	closeTicketUC    *ticketUsecases.CloseTicketUseCase
	getTicketUC      *ticketUsecases.GetTicketUseCase

	// Message
	postMessageUC *messageUsecases.PostMessageUseCase
}

func (c *Container) newUseCases() *allUseCases {
	repos := c.repos
	log := c.log

	ucs := &allUseCases{}

	ucs.provisionAgentUC = agentUsecases.NewProvisionAgentUseCase(repos.agentRepo, c.resolver, c.clock, log)
	ucs.setAgentStatusUC = agentUsecases.NewSetAgentStatusUseCase(repos.agentRepo, c.resolver, c.engineSvc, c.schedulerManager, log)
	ucs.getAgentStatusUC = agentUsecases.NewGetAgentStatusUseCase(repos.agentRepo, c.resolver, c.engineSvc, c.clock, log)
	ucs.listAgentsUC = agentUsecases.NewListAgentsUseCase(repos.agentRepo, c.resolver, log)
	ucs.recordActivityUC = agentUsecases.NewRecordActivityUseCase(repos.agentRepo, c.resolver, c.schedulerManager, log)

	ucs.openTicketUC = ticketUsecases.NewOpenTicketUseCase(
		repos.ticketRepo, repos.conversation, c.engineSvc, c.responder, c.broadcaster, c.txm, c.clock, log,
	)
	ucs.transferTicketUC = ticketUsecases.NewTransferTicketUseCase(repos.ticketRepo, c.engineSvc, log)
	ucs.closeTicketUC = ticketUsecases.NewCloseTicketUseCase(
		repos.ticketRepo, repos.conversation, c.engineSvc, c.schedulerManager, c.broadcaster, c.txm, c.clock, log,
	)
	ucs.getTicketUC = ticketUsecases.NewGetTicketUseCase(repos.ticketRepo, repos.agentRepo, log)

	ucs.postMessageUC = messageUsecases.NewPostMessageUseCase(
		repos.conversation, repos.ticketRepo, ucs.recordActivityUC, c.dispatcher, c.broadcaster, log,
	)

	return ucs
}
