package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/search"
)

const ticketSelect = `
        SELECT t.id, t.subject, t.description, t.status, t.priority, t.creator_id, t.assignee_id,
               t.created_at, t.updated_at, t.resolved_at, t.closed_at,
               (SELECT COUNT(*) FROM comments c WHERE c.ticket_id = t.id),
               (SELECT COUNT(*) FROM attachments a WHERE a.ticket_id = t.id),
               r.id, r.stars, r.feedback, r.rater_id, r.created_at
        FROM tickets t
        LEFT JOIN ratings r ON r.ticket_id = t.id`

type ticketRepository struct {
	db   DBTX
	inTx bool
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (subject, description, status, priority, creator_id, assignee_id,
                             created_at, updated_at, resolved_at, closed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatorID,
		ticket.AssigneeID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
	).Scan(&ticket.ID)
	return mapErr(err)
}

// Update writes the mutable columns. The creator is deliberately absent.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, status=$3, priority=$4, assignee_id=$5,
            updated_at=$6, resolved_at=$7, closed_at=$8
        WHERE id=$9`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssigneeID,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, ticketSelect+` WHERE t.id=$1`, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	if !r.inTx {
		return r.GetByID(ctx, id)
	}
	return r.fetchSingle(ctx, ticketSelect+` WHERE t.id=$1 FOR UPDATE OF t`, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapErr(err)
	}
	return ticket, nil
}

// List builds a conjunctive WHERE clause from the filter. It mirrors
// search.Filter.Matches so both stores agree on results.
func (r *ticketRepository) List(ctx context.Context, filter search.Filter) ([]domain.Ticket, error) {
	clauses := []string{}
	args := []any{}

	switch {
	case filter.Scope.Unrestricted:
	case filter.Scope.CreatorID != "":
		args = append(args, filter.Scope.CreatorID)
		clauses = append(clauses, fmt.Sprintf("t.creator_id=$%d", len(args)))
	default:
		clauses = append(clauses, "FALSE")
	}
	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("t.creator_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("t.assignee_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if filter.Keyword != nil && *filter.Keyword != "" {
		args = append(args, "%"+escapeLike(*filter.Keyword)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(t.subject) LIKE %s OR LOWER(t.description) LIKE %s)", placeholder, placeholder))
	}

	query := ticketSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.Order == search.OrderOldestFirst {
		query += " ORDER BY t.created_at ASC, t.id ASC"
	} else {
		query += " ORDER BY t.created_at DESC, t.id DESC"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket          domain.Ticket
		ratingID        *string
		ratingStars     *int
		ratingFeedback  *string
		ratingRater     *string
		ratingCreatedAt *time.Time
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatorID,
		&ticket.AssigneeID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.CommentCount,
		&ticket.AttachmentCount,
		&ratingID,
		&ratingStars,
		&ratingFeedback,
		&ratingRater,
		&ratingCreatedAt,
	); err != nil {
		return nil, err
	}
	if ratingID != nil {
		ticket.Rating = &domain.Rating{
			ID:       *ratingID,
			TicketID: ticket.ID,
			Feedback: ratingFeedback,
		}
		if ratingStars != nil {
			ticket.Rating.Stars = *ratingStars
		}
		if ratingRater != nil {
			ticket.Rating.RaterID = *ratingRater
		}
		if ratingCreatedAt != nil {
			ticket.Rating.CreatedAt = *ratingCreatedAt
		}
	}
	return &ticket, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
