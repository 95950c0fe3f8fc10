package notify

import (
	"fmt"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/events"
)

const signature = "Best regards,\nTicketFlow Support Team"

// TicketCreatedMail confirms a new ticket to its creator.
func TicketCreatedMail(t events.TicketSnapshot, creator *domain.User) Message {
	return Message{
		To:      creator.Email,
		Subject: "Ticket Created - #" + t.ID,
		Body: fmt.Sprintf("Hello %s,\n\n"+
			"Your ticket has been created successfully.\n\n"+
			"Ticket #%s\nSubject: %s\nPriority: %s\nStatus: %s\n\n"+
			"We will review your ticket and get back to you soon.\n\n%s",
			displayName(creator), t.ID, t.Subject, t.Priority, t.Status, signature),
	}
}

// TicketAssignedMail tells the assignee about their new ticket.
func TicketAssignedMail(t events.TicketSnapshot, assignee, creator *domain.User) Message {
	return Message{
		To:      assignee.Email,
		Subject: "Ticket Assigned - #" + t.ID,
		Body: fmt.Sprintf("Hello %s,\n\n"+
			"A new ticket has been assigned to you.\n\n"+
			"Ticket #%s\nSubject: %s\nPriority: %s\nStatus: %s\nCreated by: %s\n\n"+
			"Please review and respond to the ticket.\n\n%s",
			displayName(assignee), t.ID, t.Subject, t.Priority, t.Status, displayName(creator), signature),
	}
}

// TicketStatusChangedMail tells the creator their ticket moved.
func TicketStatusChangedMail(t events.TicketSnapshot, creator *domain.User, from, to domain.TicketStatus) Message {
	return Message{
		To:      creator.Email,
		Subject: "Ticket Status Updated - #" + t.ID,
		Body: fmt.Sprintf("Hello %s,\n\n"+
			"The status of your ticket has been updated.\n\n"+
			"Ticket #%s\nSubject: %s\nPrevious Status: %s\nNew Status: %s\n\n"+
			"Thank you for using TicketFlow.\n\n%s",
			displayName(creator), t.ID, t.Subject, from, to, signature),
	}
}

func displayName(u *domain.User) string {
	if u == nil {
		return "there"
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
