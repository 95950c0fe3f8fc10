package repository

import (
	"context"

	"github.com/spec-kit/ticketflow/internal/domain"
)

type ratingRepository struct {
	db DBTX
}

// Create inserts the rating. The UNIQUE(ticket_id) constraint turns a second
// rating for the same ticket into ErrDuplicate.
func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	const query = `
        INSERT INTO ratings (ticket_id, stars, feedback, rater_id, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return mapErr(r.db.QueryRow(ctx, query,
		rating.TicketID,
		rating.Stars,
		rating.Feedback,
		rating.RaterID,
		rating.CreatedAt,
	).Scan(&rating.ID))
}

func (r *ratingRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error) {
	const query = `
        SELECT id, ticket_id, stars, feedback, rater_id, created_at
        FROM ratings WHERE ticket_id=$1`
	var rating domain.Rating
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&rating.ID,
		&rating.TicketID,
		&rating.Stars,
		&rating.Feedback,
		&rating.RaterID,
		&rating.CreatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &rating, nil
}
