package policy

import (
	"github.com/spec-kit/ticketflow/internal/domain"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// RequireView fails with Unauthorized unless p may read t.
func RequireView(p domain.Principal, t *domain.Ticket) error {
	if !CanView(p, t) {
		return apperrors.NewUnauthorized(ActionViewTicket)
	}
	return nil
}

// RequireMutateContent uses action to distinguish comments from uploads.
func RequireMutateContent(p domain.Principal, t *domain.Ticket, action string) error {
	if !CanMutateContent(p, t) {
		return apperrors.NewUnauthorized(action)
	}
	return nil
}

// RequireChangeStatus fails unless p may write t's status.
func RequireChangeStatus(p domain.Principal, t *domain.Ticket) error {
	if !CanChangeStatus(p, t) {
		return apperrors.NewUnauthorized(ActionChangeStatus)
	}
	return nil
}

// RequireAssign fails unless p may hand tickets to an assignee.
func RequireAssign(p domain.Principal) error {
	if !CanAssign(p) {
		return apperrors.NewUnauthorized(ActionAssign)
	}
	return nil
}

// RequireTriage guards the cross-user ticket listings.
func RequireTriage(p domain.Principal) error {
	if !CanTriage(p) {
		return apperrors.NewUnauthorized(ActionTriage)
	}
	return nil
}

// RequireAdministerUsers guards account administration.
func RequireAdministerUsers(p domain.Principal) error {
	if !CanAdministerUsers(p) {
		return apperrors.NewUnauthorized(ActionAdministerUser)
	}
	return nil
}
