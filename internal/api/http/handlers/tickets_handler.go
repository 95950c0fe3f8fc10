package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketflow/internal/api/dto"
	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/search"
	"github.com/spec-kit/ticketflow/internal/service"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	users   *service.UserService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, userService *service.UserService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, users: userService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), p, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    domain.TicketPriority(strings.ToUpper(strings.TrimSpace(req.Priority))),
	})
	if err != nil {
		return err
	}
	return h.respondTicket(c, http.StatusCreated, ticket)
}

// ListMine GET /api/tickets/my-tickets.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListMine(c.UserContext(), p)
	if err != nil {
		return err
	}
	return h.respondTickets(c, tickets)
}

// ListAssigned GET /api/tickets/assigned.
func (h *TicketsHandler) ListAssigned(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListAssigned(c.UserContext(), p)
	if err != nil {
		return err
	}
	return h.respondTickets(c, tickets)
}

// ListAll GET /api/tickets/all.
func (h *TicketsHandler) ListAll(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListAll(c.UserContext(), p)
	if err != nil {
		return err
	}
	return h.respondTickets(c, tickets)
}

// Search GET /api/tickets/search?keyword=&status=&priority=.
func (h *TicketsHandler) Search(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	criteria := search.Criteria{Keyword: optionalQuery(c, "keyword")}
	if raw := optionalQuery(c, "status"); raw != nil {
		status := domain.TicketStatus(strings.ToUpper(*raw))
		criteria.Status = &status
	}
	if raw := optionalQuery(c, "priority"); raw != nil {
		priority := domain.TicketPriority(strings.ToUpper(*raw))
		criteria.Priority = &priority
	}

	tickets, err := h.service.Search(c.UserContext(), p, criteria)
	if err != nil {
		return err
	}
	return h.respondTickets(c, tickets)
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return h.respondTicket(c, http.StatusOK, ticket)
}

// UpdateStatus PATCH /api/tickets/:id/status?status=.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	raw := queryOrBody(c, "status", func() string {
		var req dto.UpdateStatusRequest
		_ = c.BodyParser(&req)
		return req.Status
	})
	if raw == "" {
		return apperrors.NewValidationError("status is required", map[string]any{"status": "required"})
	}

	ticket, err := h.service.UpdateStatus(c.UserContext(), p, c.Params("id"), domain.TicketStatus(strings.ToUpper(raw)))
	if err != nil {
		return err
	}
	return h.respondTicket(c, http.StatusOK, ticket)
}

// Assign PATCH /api/tickets/:id/assign?assigneeId=.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	assigneeID := queryOrBody(c, "assigneeId", func() string {
		var req dto.AssignRequest
		_ = c.BodyParser(&req)
		return req.AssigneeID
	})

	ticket, err := h.service.Assign(c.UserContext(), p, c.Params("id"), assigneeID)
	if err != nil {
		return err
	}
	return h.respondTicket(c, http.StatusOK, ticket)
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.service.AddComment(c.UserContext(), p, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	users, err := h.users.Lookup(c.UserContext(), comment.AuthorID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment, users)})
}

// ListComments GET /api/tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(comments))
	for _, comment := range comments {
		ids = append(ids, comment.AuthorID)
	}
	users, err := h.users.Lookup(c.UserContext(), ids...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCommentResponses(comments, users)})
}

// Rate POST /api/tickets/:id/rate.
func (h *TicketsHandler) Rate(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.RateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Stars == nil {
		return apperrors.NewValidationError("stars are required", map[string]any{"stars": "required"})
	}

	rating, err := h.service.Rate(c.UserContext(), p, c.Params("id"), *req.Stars, req.Feedback)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRatingResponse(rating)})
}

func (h *TicketsHandler) respondTicket(c *fiber.Ctx, status int, ticket *domain.Ticket) error {
	users, err := h.users.Lookup(c.UserContext(), dto.TicketUserIDs(*ticket)...)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, users)})
}

func (h *TicketsHandler) respondTickets(c *fiber.Ctx, tickets []domain.Ticket) error {
	users, err := h.users.Lookup(c.UserContext(), dto.TicketUserIDs(tickets...)...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets, users)})
}
