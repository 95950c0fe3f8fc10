package service

import (
	"errors"

	"github.com/spec-kit/ticketflow/internal/repository"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// storeErr translates repository sentinels into caller-facing errors.
// DomainErrors raised inside a transaction pass through untouched.
func storeErr(err error, resource string, details map[string]any) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	default:
		return apperrors.NewInternalError(err)
	}
}

func idDetails(key, id string) map[string]any {
	return map[string]any{key: id}
}
