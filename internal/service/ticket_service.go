package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/events"
	"github.com/spec-kit/ticketflow/internal/lifecycle"
	"github.com/spec-kit/ticketflow/internal/policy"
	"github.com/spec-kit/ticketflow/internal/repository"
	"github.com/spec-kit/ticketflow/internal/search"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows. Every mutation runs in one
// store transaction; notifications go out only after it commits.
type TicketService struct {
	store      repository.Store
	machine    *lifecycle.Machine
	search     *search.Engine
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Machine    *lifecycle.Machine
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	machine := deps.Machine
	if machine == nil {
		machine = lifecycle.New(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		machine:    machine,
		search:     search.NewEngine(deps.Store.Tickets()),
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket files a new OPEN ticket owned by p.
func (s *TicketService) CreateTicket(ctx context.Context, p domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	invalid := map[string]any{}
	if subject == "" {
		invalid["subject"] = "required"
	}
	if description == "" {
		invalid["description"] = "required"
	}
	if !input.Priority.Valid() {
		invalid["priority"] = "must be one of LOW, MEDIUM, HIGH, URGENT"
	}
	if len(invalid) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", invalid)
	}

	ticket := &domain.Ticket{
		Subject:     subject,
		Description: description,
		Priority:    input.Priority,
		CreatorID:   p.UserID,
	}
	s.machine.Open(ticket)

	err := s.store.WithTx(ctx, func(stores repository.StoreProvider) error {
		if _, err := stores.Users().GetByID(ctx, p.UserID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthenticated("unknown principal")
			}
			return err
		}
		return stores.Tickets().Create(ctx, ticket)
	})
	if err != nil {
		return nil, storeErr(err, "ticket", nil)
	}

	s.publishEvent(ctx, p, events.EventTicketCreated, ticket, events.TicketCreatedPayload{
		Priority: ticket.Priority,
	})
	return ticket, nil
}

// GetTicket returns the ticket if p may view it.
func (s *TicketService) GetTicket(ctx context.Context, p domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "ticket", idDetails("ticket_id", ticketID))
	}
	if err := policy.RequireView(p, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListMine returns tickets filed by p, newest first.
func (s *TicketService) ListMine(ctx context.Context, p domain.Principal) ([]domain.Ticket, error) {
	return s.list(ctx, search.Mine(p))
}

// ListAssigned returns tickets assigned to p, newest first.
func (s *TicketService) ListAssigned(ctx context.Context, p domain.Principal) ([]domain.Ticket, error) {
	if err := policy.RequireTriage(p); err != nil {
		return nil, err
	}
	return s.list(ctx, search.AssignedTo(p))
}

// ListAll returns every ticket, newest first.
func (s *TicketService) ListAll(ctx context.Context, p domain.Principal) ([]domain.Ticket, error) {
	if err := policy.RequireTriage(p); err != nil {
		return nil, err
	}
	return s.list(ctx, search.Everything(p))
}

// Search runs a keyword/status/priority query within p's visibility scope.
func (s *TicketService) Search(ctx context.Context, p domain.Principal, criteria search.Criteria) ([]domain.Ticket, error) {
	if criteria.Status != nil && !criteria.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": *criteria.Status})
	}
	if criteria.Priority != nil && !criteria.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket priority", map[string]any{"priority": *criteria.Priority})
	}
	tickets, err := s.search.Search(ctx, p, criteria)
	if err != nil {
		return nil, storeErr(err, "ticket", nil)
	}
	return tickets, nil
}

func (s *TicketService) list(ctx context.Context, filter search.Filter) ([]domain.Ticket, error) {
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "ticket", nil)
	}
	return tickets, nil
}

// UpdateStatus writes a new status. Admins may change any ticket, agents only
// the ones assigned to them.
func (s *TicketService) UpdateStatus(ctx context.Context, p domain.Principal, ticketID string, next domain.TicketStatus) (*domain.Ticket, error) {
	if !next.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": next})
	}

	var (
		ticket *domain.Ticket
		tr     lifecycle.Transition
	)
	err := s.store.WithTx(ctx, func(stores repository.StoreProvider) error {
		var err error
		ticket, err = stores.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return storeErr(err, "ticket", idDetails("ticket_id", ticketID))
		}
		if err := policy.RequireChangeStatus(p, ticket); err != nil {
			return err
		}
		tr, err = s.machine.SetStatus(ticket, next)
		if err != nil {
			return err
		}
		return stores.Tickets().Update(ctx, ticket)
	})
	if err != nil {
		return nil, storeErr(err, "ticket", idDetails("ticket_id", ticketID))
	}

	s.publishEvent(ctx, p, events.EventTicketStatusChanged, ticket, events.TicketStatusChangedPayload{
		OldStatus: tr.From,
		NewStatus: tr.To,
	})
	return ticket, nil
}

// Assign hands the ticket to assigneeID. Status is left alone.
func (s *TicketService) Assign(ctx context.Context, p domain.Principal, ticketID, assigneeID string) (*domain.Ticket, error) {
	if err := policy.RequireAssign(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(assigneeID) == "" {
		return nil, apperrors.NewValidationError("assignee is required", map[string]any{"assignee_id": "required"})
	}

	var (
		ticket   *domain.Ticket
		previous *string
	)
	err := s.store.WithTx(ctx, func(stores repository.StoreProvider) error {
		var err error
		ticket, err = stores.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return storeErr(err, "ticket", idDetails("ticket_id", ticketID))
		}
		if _, err := stores.Users().GetByID(ctx, assigneeID); err != nil {
			return storeErr(err, "user", idDetails("user_id", assigneeID))
		}
		previous = s.machine.Assign(ticket, assigneeID)
		return stores.Tickets().Update(ctx, ticket)
	})
	if err != nil {
		return nil, storeErr(err, "ticket", idDetails("ticket_id", ticketID))
	}

	s.publishEvent(ctx, p, events.EventTicketAssigned, ticket, events.TicketAssignedPayload{
		PreviousAssigneeID: previous,
		AssigneeID:         assigneeID,
	})
	return ticket, nil
}

// AddComment appends to the ticket thread.
func (s *TicketService) AddComment(ctx context.Context, p domain.Principal, ticketID, content string) (*domain.Comment, error) {
	var comment *domain.Comment
	err := s.store.WithTx(ctx, func(stores repository.StoreProvider) error {
		ticket, err := stores.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return storeErr(err, "ticket", idDetails("ticket_id", ticketID))
		}
		if err := policy.RequireMutateContent(p, ticket, policy.ActionComment); err != nil {
			return err
		}
		body := strings.TrimSpace(content)
		if body == "" {
			return apperrors.NewValidationError("comment content is required", map[string]any{"content": "required"})
		}
		comment = &domain.Comment{
			TicketID:  ticket.ID,
			AuthorID:  p.UserID,
			Content:   body,
			CreatedAt: s.machine.Now(),
		}
		return stores.Comments().Create(ctx, comment)
	})
	if err != nil {
		return nil, storeErr(err, "ticket", idDetails("ticket_id", ticketID))
	}
	return comment, nil
}

// ListComments returns the thread oldest first.
func (s *TicketService) ListComments(ctx context.Context, p domain.Principal, ticketID string) ([]domain.Comment, error) {
	if _, err := s.GetTicket(ctx, p, ticketID); err != nil {
		return nil, err
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "ticket", idDetails("ticket_id", ticketID))
	}
	return comments, nil
}

// Rate records the creator's single rating of a finished ticket. A second
// rating is a Conflict whoever attempts it.
func (s *TicketService) Rate(ctx context.Context, p domain.Principal, ticketID string, stars int, feedback *string) (*domain.Rating, error) {
	if stars < domain.MinRatingStars || stars > domain.MaxRatingStars {
		return nil, apperrors.NewValidationError("stars must be between 1 and 5", map[string]any{"stars": stars})
	}
	if feedback != nil {
		trimmed := strings.TrimSpace(*feedback)
		if trimmed == "" {
			feedback = nil
		} else {
			feedback = &trimmed
		}
	}

	var rating *domain.Rating
	err := s.store.WithTx(ctx, func(stores repository.StoreProvider) error {
		ticket, err := stores.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return storeErr(err, "ticket", idDetails("ticket_id", ticketID))
		}
		if err := policy.CheckRate(p, ticket); err != nil {
			return err
		}
		rating = &domain.Rating{
			TicketID:  ticket.ID,
			Stars:     stars,
			Feedback:  feedback,
			RaterID:   p.UserID,
			CreatedAt: s.machine.Now(),
		}
		if err := stores.Ratings().Create(ctx, rating); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewConflict("ticket already rated", idDetails("ticket_id", ticketID))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "ticket", idDetails("ticket_id", ticketID))
	}
	return rating, nil
}

// publishEvent hands the event to the dispatcher. Delivery problems are
// logged and never reach the caller.
func (s *TicketService) publishEvent(ctx context.Context, p domain.Principal, eventType events.EventType, ticket *domain.Ticket, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticket.ID,
		ActorID:   p.UserID,
		Timestamp: s.machine.Now(),
		Ticket:    events.Snapshot(ticket),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event not published",
			zap.String("event_type", string(eventType)),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}
