package handlers

import (
	"mime"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketflow/internal/api/dto"
	"github.com/spec-kit/ticketflow/internal/service"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// FilesHandler exposes attachment upload and download.
type FilesHandler struct {
	attachments *service.AttachmentService
	users       *service.UserService
}

// NewFilesHandler constructs handler.
func NewFilesHandler(attachments *service.AttachmentService, users *service.UserService) *FilesHandler {
	return &FilesHandler{attachments: attachments, users: users}
}

// Upload POST /api/files/upload (multipart: ticketId, file).
func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ticketID := c.FormValue("ticketId")
	if ticketID == "" {
		return apperrors.NewValidationError("ticketId is required", map[string]any{"ticketId": "required"})
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", map[string]any{"file": "required"})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	attachment, err := h.attachments.Upload(c.UserContext(), p, service.UploadInput{
		TicketID:    ticketID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		return err
	}
	users, err := h.users.Lookup(c.UserContext(), attachment.UploaderID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment, users)})
}

// ListByTicket GET /api/files/ticket/:ticketId.
func (h *FilesHandler) ListByTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	attachments, err := h.attachments.ListAttachments(c.UserContext(), p, c.Params("ticketId"))
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(attachments))
	for _, a := range attachments {
		ids = append(ids, a.UploaderID)
	}
	users, err := h.users.Lookup(c.UserContext(), ids...)
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, dto.NewAttachmentResponse(&attachments[i], users))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Download GET /api/files/download/:attachmentId.
func (h *FilesHandler) Download(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	attachment, body, err := h.attachments.Download(c.UserContext(), p, c.Params("attachmentId"))
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, attachment.ContentType)
	c.Set(fiber.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": attachment.FileName}))
	// fasthttp closes body once the response is written.
	return c.SendStream(body, int(attachment.SizeBytes))
}
