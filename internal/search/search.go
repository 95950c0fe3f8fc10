// Package search compiles ticket queries into a conjunctive Filter that is
// always intersected with the caller's visibility scope.
package search

import (
	"sort"
	"strings"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/policy"
)

// Order selects result ordering.
type Order int

const (
	// OrderNewestFirst sorts by creation time descending, id descending on ties.
	OrderNewestFirst Order = iota
	// OrderOldestFirst sorts by creation time ascending, id ascending on ties.
	OrderOldestFirst
)

// Criteria are the caller-supplied search inputs. Nil fields impose no constraint.
type Criteria struct {
	Keyword  *string
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
}

// Filter is the compiled, store-facing query. All present predicates are ANDed.
type Filter struct {
	Scope      policy.Scope
	CreatorID  *string
	AssigneeID *string
	// Keyword is lower-cased and matched as a substring of subject OR description.
	Keyword  *string
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Order    Order
	Limit    int
	Offset   int
}

// Compile builds the filter for a search by p.
func Compile(p domain.Principal, c Criteria) Filter {
	f := Filter{
		Scope:    policy.VisibilityScope(p),
		Status:   c.Status,
		Priority: c.Priority,
		Order:    OrderNewestFirst,
	}
	if c.Keyword != nil {
		if kw := strings.ToLower(strings.TrimSpace(*c.Keyword)); kw != "" {
			f.Keyword = &kw
		}
	}
	return f
}

// Mine lists tickets filed by p.
func Mine(p domain.Principal) Filter {
	id := p.UserID
	return Filter{Scope: policy.VisibilityScope(p), CreatorID: &id, Order: OrderNewestFirst}
}

// AssignedTo lists tickets currently assigned to p.
func AssignedTo(p domain.Principal) Filter {
	id := p.UserID
	return Filter{Scope: policy.VisibilityScope(p), AssigneeID: &id, Order: OrderNewestFirst}
}

// Everything lists every ticket p may see.
func Everything(p domain.Principal) Filter {
	return Filter{Scope: policy.VisibilityScope(p), Order: OrderNewestFirst}
}

// Matches reports whether t satisfies every predicate of f.
func (f Filter) Matches(t *domain.Ticket) bool {
	if !f.Scope.Admits(t) {
		return false
	}
	if f.CreatorID != nil && t.CreatorID != *f.CreatorID {
		return false
	}
	if f.AssigneeID != nil && !t.IsAssignedTo(*f.AssigneeID) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Keyword != nil {
		kw := *f.Keyword
		if !strings.Contains(strings.ToLower(t.Subject), kw) &&
			!strings.Contains(strings.ToLower(t.Description), kw) {
			return false
		}
	}
	return true
}

// Sort orders tickets in place according to f.Order.
func (f Filter) Sort(tickets []domain.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if f.Order == OrderOldestFirst {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if f.Order == OrderOldestFirst {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}

// Page applies Offset and Limit to an already sorted slice. Limit <= 0 means unbounded.
func (f Filter) Page(tickets []domain.Ticket) []domain.Ticket {
	if f.Offset > 0 {
		if f.Offset >= len(tickets) {
			return []domain.Ticket{}
		}
		tickets = tickets[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(tickets) {
		tickets = tickets[:f.Limit]
	}
	return tickets
}
