package search

import (
	"context"

	"github.com/spec-kit/ticketflow/internal/domain"
)

// Source runs a compiled filter against stored tickets.
type Source interface {
	List(ctx context.Context, filter Filter) ([]domain.Ticket, error)
}

// Engine answers keyword/status/priority searches scoped to the caller.
type Engine struct {
	source Source
}

// NewEngine builds an Engine over source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Search returns the tickets p may see that match c, newest first.
func (e *Engine) Search(ctx context.Context, p domain.Principal, c Criteria) ([]domain.Ticket, error) {
	return e.source.List(ctx, Compile(p, c))
}
