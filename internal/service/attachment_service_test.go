package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/repository"
	"github.com/spec-kit/ticketflow/internal/service"
	"github.com/spec-kit/ticketflow/internal/storage"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

// txFailingStore lets reads through but fails every transaction.
type txFailingStore struct {
	repository.Store
}

func (s txFailingStore) WithTx(context.Context, func(repository.StoreProvider) error) error {
	return errors.New("database unavailable")
}

var _ = Describe("AttachmentService", func() {
	var (
		f      *fixture
		root   string
		files  *storage.Disk
		svc    *service.AttachmentService
		ticket *domain.Ticket

		creator, stranger, agent domain.Principal
	)

	upload := func(p domain.Principal, name, body string) (*domain.Attachment, error) {
		return svc.Upload(f.ctx, p, service.UploadInput{
			TicketID:    ticket.ID,
			FileName:    name,
			ContentType: "text/plain",
			Body:        strings.NewReader(body),
		})
	}

	BeforeEach(func() {
		f = newFixture()
		root = GinkgoT().TempDir()
		var err error
		files, err = storage.NewDisk(storage.DiskOptions{Root: root, Compress: true, MaxBytes: 1024})
		Expect(err).NotTo(HaveOccurred())
		svc = service.NewAttachmentService(f.store, files, f.machine, nil)

		creator = f.addUser("creator", domain.RoleUser)
		stranger = f.addUser("stranger", domain.RoleUser)
		agent = f.addUser("agent", domain.RoleSupportAgent)

		tickets := service.NewTicketService(service.TicketDependencies{Store: f.store, Machine: f.machine})
		ticket, err = tickets.CreateTicket(f.ctx, creator, service.TicketCreateInput{
			Subject: "Screenshot", Description: "see attached", Priority: domain.TicketPriorityMedium,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("stores, lists and streams back an upload", func() {
		att, err := upload(creator, "../../screen shot.txt", "pixels")
		Expect(err).NotTo(HaveOccurred())
		Expect(att.FileName).To(Equal("screen shot.txt"))
		Expect(att.SizeBytes).To(Equal(int64(6)))
		Expect(att.UploaderID).To(Equal(creator.UserID))
		Expect(att.UploadedAt).To(Equal(f.clock.Now()))

		listed, err := svc.ListAttachments(f.ctx, agent, ticket.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(listed).To(HaveLen(1))
		Expect(listed[0].ID).To(Equal(att.ID))

		meta, body, err := svc.Download(f.ctx, creator, att.ID)
		Expect(err).NotTo(HaveOccurred())
		defer body.Close()
		Expect(meta.ContentType).To(Equal("text/plain"))
		data, err := io.ReadAll(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("pixels"))
	})

	It("defaults the content type", func() {
		att, err := svc.Upload(f.ctx, creator, service.UploadInput{TicketID: ticket.ID, FileName: "blob", Body: strings.NewReader("x")})
		Expect(err).NotTo(HaveOccurred())
		Expect(att.ContentType).To(Equal("application/octet-stream"))
	})

	It("follows the view rule for every operation", func() {
		_, err := upload(stranger, "a.txt", "data")
		expectCode(err, apperrors.CodeUnauthorized)
		Expect(apperrors.ToDomainError(err).Details).To(HaveKeyWithValue("action", "upload to ticket"))

		att, err := upload(agent, "a.txt", "data")
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.ListAttachments(f.ctx, stranger, ticket.ID)
		expectCode(err, apperrors.CodeUnauthorized)
		_, _, err = svc.Download(f.ctx, stranger, att.ID)
		expectCode(err, apperrors.CodeUnauthorized)
	})

	It("rejects empty, oversized and nameless files", func() {
		_, err := upload(creator, "a.txt", "")
		expectCode(err, apperrors.CodeValidation)
		_, err = upload(creator, "a.txt", strings.Repeat("x", 2048))
		expectCode(err, apperrors.CodeValidation)
		_, err = upload(creator, "  ", "data")
		expectCode(err, apperrors.CodeValidation)
	})

	It("reports unknown tickets, attachments and blobs as NotFound", func() {
		_, err := svc.Upload(f.ctx, creator, service.UploadInput{TicketID: "missing", FileName: "a", Body: strings.NewReader("x")})
		expectCode(err, apperrors.CodeNotFound)
		_, _, err = svc.Download(f.ctx, creator, "missing")
		expectCode(err, apperrors.CodeNotFound)

		att, err := upload(creator, "a.txt", "data")
		Expect(err).NotTo(HaveOccurred())
		Expect(files.Delete(f.ctx, att.StorageKey)).To(Succeed())
		_, _, err = svc.Download(f.ctx, creator, att.ID)
		expectCode(err, apperrors.CodeNotFound)
		Expect(apperrors.ToDomainError(err).Message).To(Equal("file not found"))
	})

	It("removes the stored blob when the metadata cannot be saved", func() {
		broken := service.NewAttachmentService(txFailingStore{f.store}, files, f.machine, nil)
		_, err := broken.Upload(f.ctx, creator, service.UploadInput{TicketID: ticket.ID, FileName: "a.txt", Body: strings.NewReader("data")})
		expectCode(err, apperrors.CodeInternal)

		entries, err := os.ReadDir(filepath.Join(root, ticket.ID))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("keeps a shared blob when a duplicate upload fails", func() {
		att, err := upload(creator, "a.txt", "data")
		Expect(err).NotTo(HaveOccurred())

		broken := service.NewAttachmentService(txFailingStore{f.store}, files, f.machine, nil)
		_, err = broken.Upload(f.ctx, creator, service.UploadInput{TicketID: ticket.ID, FileName: "b.txt", Body: strings.NewReader("data")})
		Expect(err).To(HaveOccurred())

		_, body, err := svc.Download(f.ctx, creator, att.ID)
		Expect(err).NotTo(HaveOccurred())
		body.Close()
	})
})
