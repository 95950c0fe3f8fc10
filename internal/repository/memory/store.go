// Package memory is an in-process repository.Store. Transactions are
// serialized by a single mutex and work on a private copy of the state that
// replaces the shared one only on commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/repository"
	"github.com/spec-kit/ticketflow/internal/search"
)

type state struct {
	users       map[string]domain.User
	tickets     map[string]domain.Ticket
	comments    map[string][]domain.Comment
	attachments map[string]domain.Attachment
	ratings     map[string]domain.Rating
}

func newState() *state {
	return &state{
		users:       map[string]domain.User{},
		tickets:     map[string]domain.Ticket{},
		comments:    map[string][]domain.Comment{},
		attachments: map[string]domain.Attachment{},
		ratings:     map[string]domain.Rating{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = append([]domain.Comment(nil), v...)
	}
	for k, v := range s.attachments {
		c.attachments[k] = v
	}
	for k, v := range s.ratings {
		c.ratings[k] = v
	}
	return c
}

// hydrate fills the read-model fields the Postgres store computes by join.
func (s *state) hydrate(t domain.Ticket) domain.Ticket {
	t.CommentCount = len(s.comments[t.ID])
	t.AttachmentCount = 0
	for _, a := range s.attachments {
		if a.TicketID == t.ID {
			t.AttachmentCount++
		}
	}
	t.Rating = nil
	if r, ok := s.ratings[t.ID]; ok {
		t.Rating = &r
	}
	return t
}

// Store implements repository.Store in memory.
type Store struct {
	// writeMu is held for the whole of a transaction and around each
	// standalone write, so a commit never overwrites a concurrent write.
	writeMu sync.Mutex
	mu      sync.RWMutex
	st      *state
	direct  *binding
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{st: newState()}
	s.direct = &binding{store: s}
	return s
}

func (s *Store) Tickets() repository.TicketRepository         { return ticketRepo{s.direct} }
func (s *Store) Comments() repository.CommentRepository       { return commentRepo{s.direct} }
func (s *Store) Attachments() repository.AttachmentRepository { return attachmentRepo{s.direct} }
func (s *Store) Ratings() repository.RatingRepository         { return ratingRepo{s.direct} }
func (s *Store) Users() repository.UserRepository             { return userRepo{s.direct} }

// WithTx runs fn with exclusive write access against a copy of the state.
// Readers outside the transaction see the copy only after fn succeeds; any
// error from fn discards it.
func (s *Store) WithTx(ctx context.Context, fn func(stores repository.StoreProvider) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	working := s.st.clone()
	s.mu.RUnlock()

	if err := fn(&binding{store: s, tx: working}); err != nil {
		return err
	}
	s.mu.Lock()
	s.st = working
	s.mu.Unlock()
	return nil
}

type binding struct {
	store *Store
	// tx is the transaction's private state; nil for direct access.
	tx *state
}

func (b *binding) Tickets() repository.TicketRepository         { return ticketRepo{b} }
func (b *binding) Comments() repository.CommentRepository       { return commentRepo{b} }
func (b *binding) Attachments() repository.AttachmentRepository { return attachmentRepo{b} }
func (b *binding) Ratings() repository.RatingRepository         { return ratingRepo{b} }
func (b *binding) Users() repository.UserRepository             { return userRepo{b} }

func (b *binding) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	return fn(b.store.st)
}

func (b *binding) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.writeMu.Lock()
	defer b.store.writeMu.Unlock()
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

type ticketRepo struct{ b *binding }

func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.b.write(ctx, func(st *state) error {
		if _, ok := st.users[ticket.CreatorID]; !ok {
			return repository.ErrNotFound
		}
		if ticket.AssigneeID != nil {
			if _, ok := st.users[*ticket.AssigneeID]; !ok {
				return repository.ErrNotFound
			}
		}
		ticket.ID = uuid.NewString()
		st.tickets[ticket.ID] = stripReadModel(*ticket)
		return nil
	})
}

func (r ticketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.b.write(ctx, func(st *state) error {
		current, ok := st.tickets[ticket.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if ticket.AssigneeID != nil {
			if _, ok := st.users[*ticket.AssigneeID]; !ok {
				return repository.ErrNotFound
			}
		}
		next := stripReadModel(*ticket)
		next.CreatorID = current.CreatorID
		next.CreatedAt = current.CreatedAt
		st.tickets[ticket.ID] = next
		return nil
	})
}

func (r ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var out domain.Ticket
	err := r.b.read(ctx, func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = st.hydrate(t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate needs no row lock: the enclosing transaction already excludes
// every other writer.
func (r ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r ticketRepo) List(ctx context.Context, filter search.Filter) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	err := r.b.read(ctx, func(st *state) error {
		for _, t := range st.tickets {
			if filter.Matches(&t) {
				result = append(result, st.hydrate(t))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	filter.Sort(result)
	return filter.Page(result), nil
}

func stripReadModel(t domain.Ticket) domain.Ticket {
	t.CommentCount = 0
	t.AttachmentCount = 0
	t.Rating = nil
	return t
}

type commentRepo struct{ b *binding }

func (r commentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	return r.b.write(ctx, func(st *state) error {
		if _, ok := st.tickets[comment.TicketID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.users[comment.AuthorID]; !ok {
			return repository.ErrNotFound
		}
		comment.ID = uuid.NewString()
		st.comments[comment.TicketID] = append(st.comments[comment.TicketID], *comment)
		return nil
	})
}

// ListByTicket returns comments ascending by creation time, insertion order on ties.
func (r commentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	var result []domain.Comment
	err := r.b.read(ctx, func(st *state) error {
		result = append([]domain.Comment{}, st.comments[ticketID]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type attachmentRepo struct{ b *binding }

func (r attachmentRepo) Create(ctx context.Context, attachment *domain.Attachment) error {
	return r.b.write(ctx, func(st *state) error {
		if _, ok := st.tickets[attachment.TicketID]; !ok {
			return repository.ErrNotFound
		}
		attachment.ID = uuid.NewString()
		st.attachments[attachment.ID] = *attachment
		return nil
	})
}

func (r attachmentRepo) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	var out domain.Attachment
	err := r.b.read(ctx, func(st *state) error {
		a, ok := st.attachments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r attachmentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	result := []domain.Attachment{}
	err := r.b.read(ctx, func(st *state) error {
		for _, a := range st.attachments {
			if a.TicketID == ticketID {
				result = append(result, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].UploadedAt.Before(result[j].UploadedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type ratingRepo struct{ b *binding }

func (r ratingRepo) Create(ctx context.Context, rating *domain.Rating) error {
	return r.b.write(ctx, func(st *state) error {
		if _, ok := st.tickets[rating.TicketID]; !ok {
			return repository.ErrNotFound
		}
		if _, exists := st.ratings[rating.TicketID]; exists {
			return repository.ErrDuplicate
		}
		rating.ID = uuid.NewString()
		st.ratings[rating.TicketID] = *rating
		return nil
	})
}

func (r ratingRepo) GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error) {
	var out domain.Rating
	err := r.b.read(ctx, func(st *state) error {
		rating, ok := st.ratings[ticketID]
		if !ok {
			return repository.ErrNotFound
		}
		out = rating
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type userRepo struct{ b *binding }

func (r userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.b.write(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
				return repository.ErrDuplicate
			}
		}
		user.ID = uuid.NewString()
		st.users[user.ID] = *user
		return nil
	})
}

func (r userRepo) Update(ctx context.Context, user *domain.User) error {
	return r.b.write(ctx, func(st *state) error {
		current, ok := st.users[user.ID]
		if !ok {
			return repository.ErrNotFound
		}
		for id, u := range st.users {
			if id != user.ID && strings.EqualFold(u.Email, user.Email) {
				return repository.ErrDuplicate
			}
		}
		next := *user
		next.Username = current.Username
		next.CreatedAt = current.CreatedAt
		st.users[user.ID] = next
		return nil
	})
}

func (r userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.find(ctx, func(u domain.User) bool { return u.ID == id })
}

func (r userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(ctx, func(u domain.User) bool { return u.Username == username })
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(ctx, func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r userRepo) find(ctx context.Context, match func(domain.User) bool) (*domain.User, error) {
	var out *domain.User
	err := r.b.read(ctx, func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				found := u
				out = &found
				return nil
			}
		}
		return repository.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r userRepo) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	result := []domain.User{}
	err := r.b.read(ctx, func(st *state) error {
		for _, u := range st.users {
			if filter.Role != nil && u.Role != *filter.Role {
				continue
			}
			result = append(result, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (r userRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.b.read(ctx, func(st *state) error {
		n = len(st.users)
		return nil
	})
	return n, err
}

var _ repository.Store = (*Store)(nil)
