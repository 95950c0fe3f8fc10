package auth_test

import (
	"context"
	"io"
	"net/http/httptest"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/ticketflow/internal/auth"
	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/repository/memory"
	apperrors "github.com/spec-kit/ticketflow/pkg/util/errorutil"
)

var _ = Describe("AuthMiddleware", func() {
	var (
		ctx    context.Context
		store  *memory.Store
		tokens *auth.TokenManager
		app    *fiber.App
		agent  *domain.User
	)

	addUser := func(username string, role domain.Role, enabled bool) *domain.User {
		GinkgoHelper()
		u := &domain.User{
			Username:     username,
			Email:        username + "@example.com",
			PasswordHash: "x",
			Role:         role,
			Enabled:      enabled,
			CreatedAt:    time.Now(),
		}
		Expect(store.Users().Create(ctx, u)).To(Succeed())
		return u
	}

	tokenFor := func(u *domain.User, role domain.Role) string {
		GinkgoHelper()
		token, _, err := tokens.GenerateToken(u.ID, role)
		Expect(err).NotTo(HaveOccurred())
		return token
	}

	get := func(path, header string) (int, string) {
		GinkgoHelper()
		req := httptest.NewRequest(fiber.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, string(body)
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewStore()
		tokens = auth.NewTokenManager("mw-secret", time.Hour)
		agent = addUser("agent", domain.RoleSupportAgent, true)

		app = fiber.New(fiber.Config{
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				de := apperrors.ToDomainError(err)
				return c.Status(de.HTTPStatus).SendString(de.Code)
			},
		})
		mw := auth.NewAuthMiddleware(tokens, store.Users())
		app.Get("/me", mw.Handle, auth.RequireAuthenticated(), func(c *fiber.Ctx) error {
			p, _ := auth.PrincipalFromContext(c)
			return c.SendString(string(p.Role) + ":" + p.UserID)
		})
		app.Get("/staff", mw.Handle, auth.RequireStaff("triage"), func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})
		app.Get("/admin", mw.Handle, auth.RequireAdmin("administer_user"), func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})
		app.Get("/open", auth.RequireAuthenticated(), func(c *fiber.Ctx) error {
			return c.SendString("unreachable")
		})
	})

	It("loads the principal from a valid bearer token", func() {
		status, body := get("/me", "Bearer "+tokenFor(agent, domain.RoleSupportAgent))
		Expect(status).To(Equal(fiber.StatusOK))
		Expect(body).To(Equal("SUPPORT_AGENT:" + agent.ID))
	})

	It("accepts the scheme in any case", func() {
		status, _ := get("/me", "bearer "+tokenFor(agent, domain.RoleSupportAgent))
		Expect(status).To(Equal(fiber.StatusOK))
	})

	DescribeTable("rejects unusable credentials",
		func(header string) {
			status, body := get("/me", header)
			Expect(status).To(Equal(fiber.StatusUnauthorized))
			Expect(body).To(Equal(apperrors.CodeUnauthenticated))
		},
		Entry("missing header", ""),
		Entry("wrong scheme", "Basic abc"),
		Entry("no token", "Bearer"),
		Entry("garbage token", "Bearer nonsense"),
	)

	It("rejects tokens of unknown accounts", func() {
		ghost := &domain.User{ID: "ghost"}
		status, _ := get("/me", "Bearer "+tokenFor(ghost, domain.RoleAdmin))
		Expect(status).To(Equal(fiber.StatusUnauthorized))
	})

	It("rejects tokens of disabled accounts", func() {
		off := addUser("off", domain.RoleAdmin, false)
		status, _ := get("/me", "Bearer "+tokenFor(off, domain.RoleAdmin))
		Expect(status).To(Equal(fiber.StatusUnauthorized))
	})

	It("authorizes with the stored role rather than the token claim", func() {
		user := addUser("plain", domain.RoleUser, true)
		forged := tokenFor(user, domain.RoleAdmin)

		status, body := get("/admin", "Bearer "+forged)
		Expect(status).To(Equal(fiber.StatusForbidden))
		Expect(body).To(Equal(apperrors.CodeUnauthorized))

		status, _ = get("/staff", "Bearer "+forged)
		Expect(status).To(Equal(fiber.StatusForbidden))
	})

	It("admits staff roles to staff routes only", func() {
		token := "Bearer " + tokenFor(agent, domain.RoleSupportAgent)
		status, _ := get("/staff", token)
		Expect(status).To(Equal(fiber.StatusOK))
		status, _ = get("/admin", token)
		Expect(status).To(Equal(fiber.StatusForbidden))
	})

	It("requires a principal when no middleware ran", func() {
		status, _ := get("/open", "")
		Expect(status).To(Equal(fiber.StatusUnauthorized))
	})
})
