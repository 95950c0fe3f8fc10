package events

import (
	"time"

	"github.com/spec-kit/ticketflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
)

// Event represents a domain event emitted after a ticket mutation commits.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	TicketID  string         `json:"ticket_id"`
	ActorID   string         `json:"actor_id"`
	Timestamp time.Time      `json:"timestamp"`
	Ticket    TicketSnapshot `json:"ticket"`
	Payload   interface{}    `json:"payload"`
}

// TicketSnapshot is the committed state of the ticket the event refers to.
type TicketSnapshot struct {
	ID         string                `json:"id"`
	Subject    string                `json:"subject"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	CreatorID  string                `json:"creator_id"`
	AssigneeID *string               `json:"assignee_id,omitempty"`
}

// Snapshot copies the fields notifications need out of t.
func Snapshot(t *domain.Ticket) TicketSnapshot {
	return TicketSnapshot{
		ID:         t.ID,
		Subject:    t.Subject,
		Status:     t.Status,
		Priority:   t.Priority,
		CreatorID:  t.CreatorID,
		AssigneeID: t.AssigneeID,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority domain.TicketPriority `json:"priority"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAssigneeID *string `json:"previous_assignee_id,omitempty"`
	AssigneeID         string  `json:"assignee_id"`
}
