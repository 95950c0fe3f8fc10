package events_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/events"
)

var _ = Describe("InMemoryDispatcher", func() {
	var (
		ctx        context.Context
		dispatcher events.Dispatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		dispatcher = events.NewInMemoryDispatcher(nil)
	})

	It("delivers only to subscribers of the event type", func() {
		var created, assigned []string
		dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
			created = append(created, e.TicketID)
			return nil
		})
		dispatcher.Subscribe(events.EventTicketAssigned, func(_ context.Context, e events.Event) error {
			assigned = append(assigned, e.TicketID)
			return nil
		})

		Expect(dispatcher.Publish(ctx, events.Event{Type: events.EventTicketCreated, TicketID: "t-1"})).To(Succeed())
		Expect(created).To(Equal([]string{"t-1"}))
		Expect(assigned).To(BeEmpty())
	})

	It("keeps calling handlers after one fails", func() {
		calls := 0
		dispatcher.Subscribe(events.EventTicketCreated, func(context.Context, events.Event) error {
			calls++
			return errors.New("smtp down")
		})
		dispatcher.Subscribe(events.EventTicketCreated, func(context.Context, events.Event) error {
			calls++
			return nil
		})
		Expect(dispatcher.Publish(ctx, events.Event{Type: events.EventTicketCreated})).To(Succeed())
		Expect(calls).To(Equal(2))
	})

	It("ignores events nobody listens to", func() {
		Expect(dispatcher.Publish(ctx, events.Event{Type: events.EventTicketStatusChanged})).To(Succeed())
	})
})

var _ = Describe("Snapshot", func() {
	It("copies the notification fields", func() {
		assignee := "a-1"
		snap := events.Snapshot(&domain.Ticket{
			ID:         "t-1",
			Subject:    "printer",
			Status:     domain.TicketStatusOpen,
			Priority:   domain.TicketPriorityHigh,
			CreatorID:  "u-1",
			AssigneeID: &assignee,
		})
		Expect(snap.ID).To(Equal("t-1"))
		Expect(snap.Subject).To(Equal("printer"))
		Expect(snap.Priority).To(Equal(domain.TicketPriorityHigh))
		Expect(*snap.AssigneeID).To(Equal("a-1"))
	})
})
