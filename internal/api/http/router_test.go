package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/ticketflow/internal/api/http"
	"github.com/spec-kit/ticketflow/internal/api/http/handlers"
	"github.com/spec-kit/ticketflow/internal/auth"
	"github.com/spec-kit/ticketflow/internal/observability"
	"github.com/spec-kit/ticketflow/internal/repository/memory"
	"github.com/spec-kit/ticketflow/internal/seed"
	"github.com/spec-kit/ticketflow/internal/service"
	"github.com/spec-kit/ticketflow/internal/storage"
)

type response struct {
	Status  int
	Body    map[string]any
	Raw     []byte
	Headers map[string]string
}

func (r response) data() map[string]any {
	GinkgoHelper()
	data, ok := r.Body["data"].(map[string]any)
	Expect(ok).To(BeTrue(), string(r.Raw))
	return data
}

func (r response) list() []any {
	GinkgoHelper()
	items, ok := r.Body["data"].([]any)
	Expect(ok).To(BeTrue(), string(r.Raw))
	return items
}

func (r response) errorCode() string {
	GinkgoHelper()
	body, ok := r.Body["error"].(map[string]any)
	Expect(ok).To(BeTrue(), string(r.Raw))
	return body["code"].(string)
}

var _ = Describe("HTTP API", func() {
	var (
		app     *fiber.App
		metrics *observability.Metrics
		tokens  map[string]string
		userIDs map[string]string
	)

	send := func(method, path, token string, body io.Reader, contentType string) response {
		GinkgoHelper()
		req := httptest.NewRequest(method, path, body)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		out := response{Status: resp.StatusCode, Raw: raw, Headers: map[string]string{}}
		for key := range resp.Header {
			out.Headers[key] = resp.Header.Get(key)
		}
		if strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
			Expect(json.Unmarshal(raw, &out.Body)).To(Succeed())
		}
		return out
	}

	call := func(method, path, token string, payload any) response {
		GinkgoHelper()
		if payload == nil {
			return send(method, path, token, nil, "")
		}
		encoded, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		return send(method, path, token, bytes.NewReader(encoded), fiber.MIMEApplicationJSON)
	}

	login := func(username, password string) {
		GinkgoHelper()
		resp := call(fiber.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
		Expect(resp.Status).To(Equal(fiber.StatusOK), string(resp.Raw))
		data := resp.data()
		tokens[username] = data["auth"].(map[string]any)["token"].(string)
		userIDs[username] = data["user"].(map[string]any)["id"].(string)
	}

	createTicket := func(token, subject string) string {
		GinkgoHelper()
		resp := call(fiber.MethodPost, "/api/tickets", token, map[string]string{
			"subject": subject, "description": "details for " + subject, "priority": "high",
		})
		Expect(resp.Status).To(Equal(fiber.StatusCreated), string(resp.Raw))
		return resp.data()["id"].(string)
	}

	BeforeEach(func() {
		ctx := context.Background()
		store := memory.NewStore()
		now := func() time.Time { return time.Now().UTC() }
		metrics = observability.NewMetrics()

		files, err := storage.NewDisk(storage.DiskOptions{Root: GinkgoT().TempDir(), Compress: true, MaxBytes: 1 << 20})
		Expect(err).NotTo(HaveOccurred())

		tokenMgr := auth.NewTokenManager("http-test-secret", time.Hour)
		authSvc := service.NewAuthService(store, tokenMgr, bcrypt.MinCost, now)
		userSvc := service.NewUserService(store, bcrypt.MinCost, now)
		ticketSvc := service.NewTicketService(service.TicketDependencies{Store: store})
		attachmentSvc := service.NewAttachmentService(store, files, nil, nil)

		_, err = userSvc.Bootstrap(ctx, seed.Defaults())
		Expect(err).NotTo(HaveOccurred())

		app = httptransport.NewApp(httptransport.AppOptions{
			BodyLimit: 2 << 20,
			Timeout:   5 * time.Second,
			Logger:    zap.NewNop(),
			Metrics:   metrics,
		}, httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler("ticketflow", "test", metrics, nil),
			Users:          handlers.NewUsersHandler(authSvc, userSvc),
			Tickets:        handlers.NewTicketsHandler(ticketSvc, userSvc),
			Files:          handlers.NewFilesHandler(attachmentSvc, userSvc),
			Admin:          handlers.NewAdminHandler(userSvc),
			AuthMiddleware: auth.NewAuthMiddleware(tokenMgr, store.Users()).Handle,
		})

		tokens = map[string]string{}
		userIDs = map[string]string{}
		login("admin", "admin123")
		login("agent", "agent123")
		login("user", "user123")
	})

	Describe("health", func() {
		It("reports liveness, readiness and metrics without a token", func() {
			Expect(call(fiber.MethodGet, "/health/live", "", nil).Status).To(Equal(fiber.StatusOK))
			Expect(call(fiber.MethodGet, "/health/ready", "", nil).Status).To(Equal(fiber.StatusOK))
			resp := call(fiber.MethodGet, "/health/metrics", "", nil)
			Expect(resp.Status).To(Equal(fiber.StatusOK))
			Expect(resp.data()["total_requests"]).To(BeNumerically(">", 0))
		})
	})

	Describe("authentication", func() {
		It("keeps sign-up public and issues a USER token", func() {
			resp := call(fiber.MethodPost, "/api/auth/register", "", map[string]string{
				"username": "carol", "email": "carol@example.com", "password": "secret1", "fullName": "Carol",
			})
			Expect(resp.Status).To(Equal(fiber.StatusCreated), string(resp.Raw))
			user := resp.data()["user"].(map[string]any)
			Expect(user["role"]).To(Equal("USER"))
			Expect(user).NotTo(HaveKey("passwordHash"))
		})

		It("maps duplicate sign-ups to 409", func() {
			resp := call(fiber.MethodPost, "/api/auth/register", "", map[string]string{
				"username": "user", "email": "fresh@example.com", "password": "secret1",
			})
			Expect(resp.Status).To(Equal(fiber.StatusConflict))
			Expect(resp.errorCode()).To(Equal("CONFLICT"))
		})

		It("rejects bad credentials with 401", func() {
			resp := call(fiber.MethodPost, "/api/auth/login", "", map[string]string{"username": "user", "password": "nope"})
			Expect(resp.Status).To(Equal(fiber.StatusUnauthorized))
			Expect(resp.errorCode()).To(Equal("UNAUTHENTICATED"))
		})

		It("requires a valid bearer token on protected routes", func() {
			Expect(call(fiber.MethodGet, "/api/tickets/my-tickets", "", nil).Status).To(Equal(fiber.StatusUnauthorized))
			Expect(call(fiber.MethodGet, "/api/tickets/my-tickets", "garbage", nil).Status).To(Equal(fiber.StatusUnauthorized))
		})

		It("stops honouring tokens of disabled accounts", func() {
			resp := call(fiber.MethodPatch, "/api/admin/users/"+userIDs["user"]+"/toggle-status", tokens["admin"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusOK))
			Expect(resp.data()["enabled"]).To(BeFalse())

			resp = call(fiber.MethodGet, "/api/tickets/my-tickets", tokens["user"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusUnauthorized))
		})

		It("applies role changes to live tokens", func() {
			Expect(call(fiber.MethodGet, "/api/tickets/all", tokens["user"], nil).Status).To(Equal(fiber.StatusForbidden))
			resp := call(fiber.MethodPatch, "/api/admin/users/"+userIDs["user"]+"/role?role=support_agent", tokens["admin"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusOK), string(resp.Raw))
			Expect(call(fiber.MethodGet, "/api/tickets/all", tokens["user"], nil).Status).To(Equal(fiber.StatusOK))
		})
	})

	Describe("tickets", func() {
		It("walks a ticket from creation to rating", func() {
			id := createTicket(tokens["user"], "Cannot login")

			resp := call(fiber.MethodGet, "/api/tickets/"+id, tokens["user"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusOK))
			ticket := resp.data()
			Expect(ticket["status"]).To(Equal("OPEN"))
			Expect(ticket["priority"]).To(Equal("HIGH"))
			Expect(ticket["createdBy"].(map[string]any)["username"]).To(Equal("user"))
			Expect(ticket["assignedTo"]).To(BeNil())

			resp = call(fiber.MethodPatch, "/api/tickets/"+id+"/status?status=IN_PROGRESS", tokens["agent"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusForbidden))
			Expect(resp.errorCode()).To(Equal("UNAUTHORIZED"))

			resp = call(fiber.MethodPatch, "/api/tickets/"+id+"/assign?assigneeId="+userIDs["agent"], tokens["admin"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusOK), string(resp.Raw))
			Expect(resp.data()["assignedTo"].(map[string]any)["username"]).To(Equal("agent"))

			resp = call(fiber.MethodPatch, "/api/tickets/"+id+"/status?status=IN_PROGRESS", tokens["agent"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusOK), string(resp.Raw))

			resp = call(fiber.MethodPatch, "/api/tickets/"+id+"/status", tokens["agent"], map[string]string{"status": "resolved"})
			Expect(resp.Status).To(Equal(fiber.StatusOK), string(resp.Raw))
			Expect(resp.data()["resolvedAt"]).NotTo(BeNil())

			resp = call(fiber.MethodPost, "/api/tickets/"+id+"/rate", tokens["user"], map[string]any{"stars": 5, "feedback": "great"})
			Expect(resp.Status).To(Equal(fiber.StatusCreated), string(resp.Raw))
			Expect(resp.data()["stars"]).To(BeEquivalentTo(5))

			resp = call(fiber.MethodPost, "/api/tickets/"+id+"/rate", tokens["user"], map[string]any{"stars": 4})
			Expect(resp.Status).To(Equal(fiber.StatusConflict))

			resp = call(fiber.MethodGet, "/api/tickets/"+id, tokens["agent"], nil)
			Expect(resp.data()["rating"].(map[string]any)["feedback"]).To(Equal("great"))
		})

		It("keeps query values stored by earlier requests intact", func() {
			id := createTicket(tokens["user"], "Sticky assignee")

			resp := call(fiber.MethodPatch, "/api/tickets/"+id+"/assign?assigneeId="+userIDs["agent"], tokens["admin"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusOK), string(resp.Raw))
			resp = call(fiber.MethodPatch, "/api/admin/users/"+userIDs["user"]+"/role?role=ADMIN", tokens["admin"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusOK), string(resp.Raw))

			for i := 0; i < 20; i++ {
				keyword := strings.Repeat("x", i+30)
				Expect(call(fiber.MethodGet, "/api/tickets/search?keyword="+keyword+"&status=CLOSED", tokens["agent"], nil).Status).
					To(Equal(fiber.StatusOK))
			}

			resp = call(fiber.MethodPatch, "/api/tickets/"+id+"/status?status=CLOSED", tokens["agent"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusOK), string(resp.Raw))

			ticket := call(fiber.MethodGet, "/api/tickets/"+id, tokens["admin"], nil).data()
			Expect(ticket["status"]).To(Equal("CLOSED"))
			Expect(ticket["assignedTo"].(map[string]any)["id"]).To(Equal(userIDs["agent"]))

			account := call(fiber.MethodGet, "/api/admin/users/"+userIDs["user"], tokens["admin"], nil).data()
			Expect(account["role"]).To(Equal("ADMIN"))
		})

		It("maps rating on an open ticket to 422", func() {
			id := createTicket(tokens["user"], "Printer")
			resp := call(fiber.MethodPost, "/api/tickets/"+id+"/rate", tokens["user"], map[string]any{"stars": 3})
			Expect(resp.Status).To(Equal(fiber.StatusUnprocessableEntity))
			Expect(resp.errorCode()).To(Equal("INVALID_STATE"))

			resp = call(fiber.MethodPost, "/api/tickets/"+id+"/rate", tokens["user"], map[string]any{})
			Expect(resp.Status).To(Equal(fiber.StatusBadRequest))
		})

		It("validates payloads", func() {
			resp := call(fiber.MethodPost, "/api/tickets", tokens["user"], map[string]string{"subject": "", "priority": "NOW"})
			Expect(resp.Status).To(Equal(fiber.StatusBadRequest))
			Expect(resp.errorCode()).To(Equal("VALIDATION_FAILED"))
			details := resp.Body["error"].(map[string]any)["details"].(map[string]any)
			Expect(details).To(HaveKey("subject"))
			Expect(details).To(HaveKey("priority"))

			resp = send(fiber.MethodPost, "/api/tickets", tokens["user"], strings.NewReader("{not json"), fiber.MIMEApplicationJSON)
			Expect(resp.Status).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 404 for unknown tickets and routes", func() {
			resp := call(fiber.MethodGet, "/api/tickets/does-not-exist", tokens["admin"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusNotFound))
			Expect(resp.errorCode()).To(Equal("NOT_FOUND"))
			Expect(call(fiber.MethodGet, "/nowhere", "", nil).Status).To(Equal(fiber.StatusNotFound))
		})

		It("keeps staff listings away from users", func() {
			createTicket(tokens["user"], "Mine")
			for _, path := range []string{"/api/tickets/all", "/api/tickets/assigned", "/api/users/support-agents"} {
				resp := call(fiber.MethodGet, path, tokens["user"], nil)
				Expect(resp.Status).To(Equal(fiber.StatusForbidden), path)
			}
			Expect(call(fiber.MethodGet, "/api/tickets/my-tickets", tokens["user"], nil).list()).To(HaveLen(1))
			Expect(call(fiber.MethodGet, "/api/tickets/all", tokens["agent"], nil).list()).To(HaveLen(1))
			agents := call(fiber.MethodGet, "/api/users/support-agents", tokens["admin"], nil).list()
			Expect(agents).To(HaveLen(1))
		})

		It("searches within the caller's scope", func() {
			createTicket(tokens["user"], "Login loop")
			createTicket(tokens["admin"], "LOGIN for admin")
			createTicket(tokens["user"], "Printer")

			staff := call(fiber.MethodGet, "/api/tickets/search?keyword=login&status=open", tokens["agent"], nil).list()
			Expect(staff).To(HaveLen(2))
			Expect(staff[0].(map[string]any)["subject"]).To(Equal("LOGIN for admin"))

			own := call(fiber.MethodGet, "/api/tickets/search?keyword=login", tokens["user"], nil).list()
			Expect(own).To(HaveLen(1))

			resp := call(fiber.MethodGet, "/api/tickets/search?status=DONE", tokens["user"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusBadRequest))
		})

		It("threads comments in order with their authors", func() {
			id := createTicket(tokens["user"], "Thread")
			Expect(call(fiber.MethodPost, "/api/tickets/"+id+"/comments", tokens["user"], map[string]string{"content": "first"}).Status).To(Equal(fiber.StatusCreated))
			Expect(call(fiber.MethodPost, "/api/tickets/"+id+"/comments", tokens["agent"], map[string]string{"content": "second"}).Status).To(Equal(fiber.StatusCreated))

			comments := call(fiber.MethodGet, "/api/tickets/"+id+"/comments", tokens["user"], nil).list()
			Expect(comments).To(HaveLen(2))
			Expect(comments[0].(map[string]any)["content"]).To(Equal("first"))
			Expect(comments[1].(map[string]any)["author"].(map[string]any)["username"]).To(Equal("agent"))

			resp := call(fiber.MethodPost, "/api/tickets/"+id+"/comments", tokens["user"], map[string]string{"content": "  "})
			Expect(resp.Status).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("files", func() {
		upload := func(token, ticketID, name, content string) response {
			GinkgoHelper()
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			Expect(w.WriteField("ticketId", ticketID)).To(Succeed())
			part, err := w.CreateFormFile("file", name)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte(content))
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Close()).To(Succeed())
			return send(fiber.MethodPost, "/api/files/upload", token, &buf, w.FormDataContentType())
		}

		It("uploads, lists and downloads attachments", func() {
			id := createTicket(tokens["user"], "Logs")
			resp := upload(tokens["user"], id, "app.log", "line 1\nline 2\n")
			Expect(resp.Status).To(Equal(fiber.StatusCreated), string(resp.Raw))
			att := resp.data()
			Expect(att["fileName"]).To(Equal("app.log"))
			Expect(att["fileSize"]).To(BeEquivalentTo(14))
			Expect(att["url"]).To(Equal("/api/files/download/" + att["id"].(string)))

			items := call(fiber.MethodGet, "/api/files/ticket/"+id, tokens["agent"], nil).list()
			Expect(items).To(HaveLen(1))

			download := send(fiber.MethodGet, att["url"].(string), tokens["user"], nil, "")
			Expect(download.Status).To(Equal(fiber.StatusOK))
			Expect(string(download.Raw)).To(Equal("line 1\nline 2\n"))
			Expect(download.Headers["Content-Disposition"]).To(ContainSubstring(`filename=app.log`))

			ticket := call(fiber.MethodGet, "/api/tickets/"+id, tokens["user"], nil).data()
			Expect(ticket["attachmentCount"]).To(BeEquivalentTo(1))
		})

		It("refuses uploads to tickets the caller cannot see", func() {
			id := createTicket(tokens["admin"], "Private")
			resp := upload(tokens["user"], id, "a.txt", "data")
			Expect(resp.Status).To(Equal(fiber.StatusForbidden))
		})

		It("requires the multipart fields", func() {
			resp := send(fiber.MethodPost, "/api/files/upload", tokens["user"], strings.NewReader(""), fiber.MIMEApplicationJSON)
			Expect(resp.Status).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("administration", func() {
		It("is reserved to admins", func() {
			Expect(call(fiber.MethodGet, "/api/admin/users", tokens["agent"], nil).Status).To(Equal(fiber.StatusForbidden))
			users := call(fiber.MethodGet, "/api/admin/users", tokens["admin"], nil).list()
			Expect(users).To(HaveLen(3))
		})

		It("creates accounts and rejects unknown roles", func() {
			resp := call(fiber.MethodPost, "/api/admin/users", tokens["admin"], map[string]string{
				"username": "agent2", "email": "agent2@example.com", "password": "secret1", "role": "SUPPORT_AGENT",
			})
			Expect(resp.Status).To(Equal(fiber.StatusCreated), string(resp.Raw))
			Expect(resp.data()["role"]).To(Equal("SUPPORT_AGENT"))

			got := call(fiber.MethodGet, "/api/admin/users/"+resp.data()["id"].(string), tokens["admin"], nil)
			Expect(got.Status).To(Equal(fiber.StatusOK))

			resp = call(fiber.MethodPatch, "/api/admin/users/"+userIDs["user"]+"/role?role=ROOT", tokens["admin"], nil)
			Expect(resp.Status).To(Equal(fiber.StatusBadRequest))
		})
	})
})
