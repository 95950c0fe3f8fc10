package domain

import "time"

// Comment is an immutable entry in a ticket thread.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// Attachment stores metadata for a file uploaded to a ticket. The bytes live in
// file storage under StorageKey.
type Attachment struct {
	ID          string
	TicketID    string
	UploaderID  string
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	UploadedAt  time.Time
}

// Rating is the creator's single verdict on a finished ticket.
type Rating struct {
	ID        string
	TicketID  string
	Stars     int
	Feedback  *string
	RaterID   string
	CreatedAt time.Time
}

const (
	MinRatingStars = 1
	MaxRatingStars = 5
)
