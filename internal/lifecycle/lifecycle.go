// Package lifecycle owns ticket status transitions and the timestamps they
// stamp. Any valid status may follow any other; CLOSED is not terminal.
package lifecycle

import (
	"time"

	"github.com/spec-kit/ticketflow/internal/domain"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// Clock supplies the transition time.
type Clock func() time.Time

// Machine applies lifecycle changes to tickets in memory. Persisting the
// result is the caller's job.
type Machine struct {
	now Clock
}

// New builds a Machine. A nil clock uses time.Now in UTC.
func New(now Clock) *Machine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Machine{now: now}
}

// Now exposes the machine's clock so related records share the same time source.
func (m *Machine) Now() time.Time {
	return m.now()
}

// Transition records the outcome of a status write.
type Transition struct {
	From domain.TicketStatus
	To   domain.TicketStatus
	At   time.Time
}

// Open initializes a freshly filed ticket.
func (m *Machine) Open(t *domain.Ticket) {
	now := m.now()
	t.Status = domain.TicketStatusOpen
	t.CreatedAt = now
	t.UpdatedAt = now
	t.ResolvedAt = nil
	t.ClosedAt = nil
}

// SetStatus writes next onto t. RESOLVED restamps ResolvedAt on every entry,
// CLOSED stamps ClosedAt, other statuses keep earlier stamps untouched.
func (m *Machine) SetStatus(t *domain.Ticket, next domain.TicketStatus) (Transition, error) {
	if !next.Valid() {
		return Transition{}, apperrors.NewValidationError("unknown ticket status",
			map[string]any{"status": next})
	}
	now := m.now()
	tr := Transition{From: t.Status, To: next, At: now}

	switch next {
	case domain.TicketStatusResolved:
		t.ResolvedAt = timePtr(now)
	case domain.TicketStatusClosed:
		t.ClosedAt = timePtr(now)
	case domain.TicketStatusOpen, domain.TicketStatusInProgress:
	}
	t.Status = next
	t.UpdatedAt = now
	return tr, nil
}

// Assign sets the assignee. Status is never touched.
func (m *Machine) Assign(t *domain.Ticket, assigneeID string) (previous *string) {
	previous = t.AssigneeID
	id := assigneeID
	t.AssigneeID = &id
	t.UpdatedAt = m.now()
	return previous
}

func timePtr(t time.Time) *time.Time {
	return &t
}
