package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/lifecycle"
	"github.com/spec-kit/ticketflow/internal/policy"
	"github.com/spec-kit/ticketflow/internal/repository"
	"github.com/spec-kit/ticketflow/internal/storage"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

const defaultContentType = "application/octet-stream"

// AttachmentService stores files against tickets.
type AttachmentService struct {
	store   repository.Store
	files   storage.FileStorage
	machine *lifecycle.Machine
	logger  *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(store repository.Store, files storage.FileStorage, machine *lifecycle.Machine, logger *zap.Logger) *AttachmentService {
	if machine == nil {
		machine = lifecycle.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{store: store, files: files, machine: machine, logger: logger}
}

// UploadInput describes an incoming file.
type UploadInput struct {
	TicketID    string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Upload stores the bytes, then records the metadata while holding the ticket
// row. A metadata failure removes a blob this call created.
func (s *AttachmentService) Upload(ctx context.Context, p domain.Principal, input UploadInput) (*domain.Attachment, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, input.TicketID)
	if err != nil {
		return nil, storeErr(err, "ticket", idDetails("ticket_id", input.TicketID))
	}
	if err := policy.RequireMutateContent(p, ticket, policy.ActionUpload); err != nil {
		return nil, err
	}

	name := filepath.Base(strings.TrimSpace(input.FileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, apperrors.NewValidationError("file name is required", map[string]any{"file": "required"})
	}
	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}

	obj, err := s.files.Put(ctx, ticket.ID, input.Body)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmpty):
			return nil, apperrors.NewValidationError("file is empty", map[string]any{"file": "empty"})
		case errors.Is(err, storage.ErrTooLarge):
			return nil, apperrors.NewValidationError("file is too large", map[string]any{"file": "too large"})
		default:
			return nil, apperrors.NewInternalError(err)
		}
	}

	attachment := &domain.Attachment{
		TicketID:    ticket.ID,
		UploaderID:  p.UserID,
		FileName:    name,
		ContentType: contentType,
		SizeBytes:   obj.Size,
		StorageKey:  obj.Key,
		UploadedAt:  s.machine.Now(),
	}
	err = s.store.WithTx(ctx, func(stores repository.StoreProvider) error {
		locked, err := stores.Tickets().GetForUpdate(ctx, ticket.ID)
		if err != nil {
			return storeErr(err, "ticket", idDetails("ticket_id", ticket.ID))
		}
		if err := policy.RequireMutateContent(p, locked, policy.ActionUpload); err != nil {
			return err
		}
		return stores.Attachments().Create(ctx, attachment)
	})
	if err != nil {
		if obj.Created {
			if delErr := s.files.Delete(context.WithoutCancel(ctx), obj.Key); delErr != nil {
				s.logger.Warn("orphaned attachment blob",
					zap.String("storage_key", obj.Key),
					zap.Error(delErr))
			}
		}
		return nil, storeErr(err, "ticket", idDetails("ticket_id", ticket.ID))
	}
	return attachment, nil
}

// ListAttachments returns the ticket's attachment metadata.
func (s *AttachmentService) ListAttachments(ctx context.Context, p domain.Principal, ticketID string) ([]domain.Attachment, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "ticket", idDetails("ticket_id", ticketID))
	}
	if err := policy.RequireView(p, ticket); err != nil {
		return nil, err
	}
	attachments, err := s.store.Attachments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "attachment", nil)
	}
	return attachments, nil
}

// Download opens the attachment's bytes. The caller closes the reader.
func (s *AttachmentService) Download(ctx context.Context, p domain.Principal, attachmentID string) (*domain.Attachment, io.ReadCloser, error) {
	attachment, err := s.store.Attachments().GetByID(ctx, attachmentID)
	if err != nil {
		return nil, nil, storeErr(err, "attachment", idDetails("attachment_id", attachmentID))
	}
	ticket, err := s.store.Tickets().GetByID(ctx, attachment.TicketID)
	if err != nil {
		return nil, nil, storeErr(err, "ticket", idDetails("ticket_id", attachment.TicketID))
	}
	if err := policy.RequireView(p, ticket); err != nil {
		return nil, nil, err
	}
	body, err := s.files.Open(ctx, attachment.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("file", idDetails("attachment_id", attachmentID))
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	return attachment, body, nil
}
