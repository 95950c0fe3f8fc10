package dto

import (
	"time"

	"github.com/spec-kit/ticketflow/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// UpdateStatusRequest payload, used when the status is not in the query.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AssignRequest payload, used when the assignee is not in the query.
type AssignRequest struct {
	AssigneeID string `json:"assigneeId"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// RateRequest payload.
type RateRequest struct {
	Stars    *int    `json:"stars"`
	Feedback *string `json:"feedback"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID              string                `json:"id"`
	Subject         string                `json:"subject"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	CreatedBy       *UserSummary          `json:"createdBy"`
	AssignedTo      *UserSummary          `json:"assignedTo"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
	ResolvedAt      *time.Time            `json:"resolvedAt"`
	ClosedAt        *time.Time            `json:"closedAt"`
	CommentCount    int                   `json:"commentCount"`
	AttachmentCount int                   `json:"attachmentCount"`
	Rating          *RatingResponse       `json:"rating"`
}

// CommentResponse represents a thread entry.
type CommentResponse struct {
	ID        string       `json:"id"`
	TicketID  string       `json:"ticketId"`
	Content   string       `json:"content"`
	Author    *UserSummary `json:"author"`
	CreatedAt time.Time    `json:"createdAt"`
}

// RatingResponse represents the ticket rating.
type RatingResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	Stars     int       `json:"stars"`
	Feedback  *string   `json:"feedback"`
	CreatedAt time.Time `json:"createdAt"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID          string       `json:"id"`
	TicketID    string       `json:"ticketId"`
	FileName    string       `json:"fileName"`
	ContentType string       `json:"contentType"`
	SizeBytes   int64        `json:"fileSize"`
	UploadedBy  *UserSummary `json:"uploadedBy"`
	UploadedAt  time.Time    `json:"uploadedAt"`
	URL         string       `json:"url"`
}

// NewTicketResponse shapes t, resolving user references from users.
func NewTicketResponse(t *domain.Ticket, users map[string]*domain.User) TicketResponse {
	resp := TicketResponse{
		ID:              t.ID,
		Subject:         t.Subject,
		Description:     t.Description,
		Status:          t.Status,
		Priority:        t.Priority,
		CreatedBy:       summaryOf(users, t.CreatorID),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		ResolvedAt:      t.ResolvedAt,
		ClosedAt:        t.ClosedAt,
		CommentCount:    t.CommentCount,
		AttachmentCount: t.AttachmentCount,
	}
	if t.AssigneeID != nil {
		resp.AssignedTo = summaryOf(users, *t.AssigneeID)
	}
	if t.Rating != nil {
		rating := NewRatingResponse(t.Rating)
		resp.Rating = &rating
	}
	return resp
}

// NewTicketResponses shapes a listing.
func NewTicketResponses(tickets []domain.Ticket, users map[string]*domain.User) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i], users))
	}
	return items
}

// NewCommentResponses shapes a thread.
func NewCommentResponses(comments []domain.Comment, users map[string]*domain.User) []CommentResponse {
	items := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		items = append(items, NewCommentResponse(&c, users))
	}
	return items
}

// NewCommentResponse shapes a single comment.
func NewCommentResponse(c *domain.Comment, users map[string]*domain.User) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		TicketID:  c.TicketID,
		Content:   c.Content,
		Author:    summaryOf(users, c.AuthorID),
		CreatedAt: c.CreatedAt,
	}
}

// NewRatingResponse shapes a rating.
func NewRatingResponse(r *domain.Rating) RatingResponse {
	return RatingResponse{
		ID:        r.ID,
		TicketID:  r.TicketID,
		Stars:     r.Stars,
		Feedback:  r.Feedback,
		CreatedAt: r.CreatedAt,
	}
}

// NewAttachmentResponse shapes attachment metadata with its download URL.
func NewAttachmentResponse(a *domain.Attachment, users map[string]*domain.User) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		TicketID:    a.TicketID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		UploadedBy:  summaryOf(users, a.UploaderID),
		UploadedAt:  a.UploadedAt,
		URL:         "/api/files/download/" + a.ID,
	}
}

// TicketUserIDs collects every user referenced by tickets.
func TicketUserIDs(tickets ...domain.Ticket) []string {
	ids := make([]string, 0, len(tickets)*2)
	for _, t := range tickets {
		ids = append(ids, t.CreatorID)
		if t.AssigneeID != nil {
			ids = append(ids, *t.AssigneeID)
		}
	}
	return ids
}
