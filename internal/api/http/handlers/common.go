package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketflow/internal/auth"
	"github.com/spec-kit/ticketflow/internal/domain"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

func principal(c *fiber.Ctx) (domain.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Principal{}, apperrors.NewUnauthenticated("authentication required")
	}
	return p, nil
}

// queryOrBody returns the query parameter key, or the value extracted from the
// JSON body when the query is empty.
func queryOrBody(c *fiber.Ctx, key string, body func() string) string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return v
	}
	if len(c.Body()) == 0 {
		return ""
	}
	return strings.TrimSpace(body())
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil
	}
	return &v
}
