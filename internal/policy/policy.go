// Package policy decides whether a principal may perform an action on a
// ticket. Every function here is pure: no I/O, no clock, no globals.
package policy

import (
	"github.com/spec-kit/ticketflow/internal/domain"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// Action names carried by Unauthorized errors.
const (
	ActionViewTicket     = "view ticket"
	ActionComment        = "comment on ticket"
	ActionUpload         = "upload to ticket"
	ActionChangeStatus   = "change ticket status"
	ActionAssign         = "assign ticket"
	ActionRate           = "rate ticket"
	ActionTriage         = "list tickets across users"
	ActionAdministerUser = "administer users"
)

// CanView reports whether p may read t, its comments and its attachments.
func CanView(p domain.Principal, t *domain.Ticket) bool {
	switch p.Role {
	case domain.RoleAdmin, domain.RoleSupportAgent:
		return true
	case domain.RoleUser:
		return t.CreatorID == p.UserID
	default:
		return false
	}
}

// CanMutateContent gates comment creation and uploads. It follows the view rule.
func CanMutateContent(p domain.Principal, t *domain.Ticket) bool {
	return CanView(p, t)
}

// CanChangeStatus allows admins always and agents only on tickets assigned to them.
func CanChangeStatus(p domain.Principal, t *domain.Ticket) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleSupportAgent:
		return t.IsAssignedTo(p.UserID)
	case domain.RoleUser:
		return false
	default:
		return false
	}
}

// CanAssign is independent of ticket state: any agent or admin may assign any ticket.
func CanAssign(p domain.Principal) bool {
	return CanTriage(p)
}

// CanTriage reports whether p may see the cross-user ticket listings.
func CanTriage(p domain.Principal) bool {
	switch p.Role {
	case domain.RoleAdmin, domain.RoleSupportAgent:
		return true
	case domain.RoleUser:
		return false
	default:
		return false
	}
}

// CanAdministerUsers is reserved to admins.
func CanAdministerUsers(p domain.Principal) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleSupportAgent, domain.RoleUser:
		return false
	default:
		return false
	}
}

// CanRate reports whether the creator may leave the one rating on a finished ticket.
func CanRate(p domain.Principal, t *domain.Ticket) bool {
	return CheckRate(p, t) == nil
}

// CheckRate returns the precise reason a rating is refused. An existing rating
// wins over every other reason so repeat attempts always report a conflict.
func CheckRate(p domain.Principal, t *domain.Ticket) error {
	if t.Rating != nil {
		return apperrors.NewConflict("ticket has already been rated", map[string]any{"ticket_id": t.ID})
	}
	if t.CreatorID != p.UserID {
		return apperrors.NewUnauthorized(ActionRate)
	}
	if !t.Status.Finished() {
		return apperrors.NewInvalidState("only resolved or closed tickets can be rated",
			map[string]any{"ticket_id": t.ID, "status": t.Status})
	}
	return nil
}

// Scope is the baseline ticket set a principal may see. The zero value
// matches no ticket.
type Scope struct {
	Unrestricted bool
	// CreatorID restricts the set to tickets filed by that user.
	CreatorID string
}

// Admits reports whether t falls inside the scope.
func (s Scope) Admits(t *domain.Ticket) bool {
	if s.Unrestricted {
		return true
	}
	return s.CreatorID != "" && t.CreatorID == s.CreatorID
}

// VisibilityScope returns the filter intersected into every list and search.
func VisibilityScope(p domain.Principal) Scope {
	switch p.Role {
	case domain.RoleAdmin, domain.RoleSupportAgent:
		return Scope{Unrestricted: true}
	case domain.RoleUser:
		return Scope{CreatorID: p.UserID}
	default:
		return Scope{}
	}
}
