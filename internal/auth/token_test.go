package auth_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticketflow/internal/auth"
	"github.com/spec-kit/ticketflow/internal/domain"
)

var _ = Describe("TokenManager", func() {
	var (
		now    time.Time
		tokens *auth.TokenManager
	)

	BeforeEach(func() {
		now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		tokens = auth.NewTokenManager("top-secret", time.Hour).WithClock(func() time.Time { return now })
	})

	It("round-trips the subject and role", func() {
		token, exp, err := tokens.GenerateToken("user-1", domain.RoleSupportAgent)
		Expect(err).NotTo(HaveOccurred())
		Expect(exp).To(Equal(now.Add(time.Hour)))

		claims, err := tokens.ParseToken(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Subject).To(Equal("user-1"))
		Expect(claims.Role).To(Equal(domain.RoleSupportAgent))
	})

	It("rejects expired tokens", func() {
		token, _, err := tokens.GenerateToken("user-1", domain.RoleUser)
		Expect(err).NotTo(HaveOccurred())

		now = now.Add(2 * time.Hour)
		_, err = tokens.ParseToken(token)
		Expect(err).To(HaveOccurred())
	})

	It("rejects tokens signed with another secret", func() {
		other := auth.NewTokenManager("other-secret", time.Hour).WithClock(func() time.Time { return now })
		token, _, err := other.GenerateToken("user-1", domain.RoleAdmin)
		Expect(err).NotTo(HaveOccurred())

		_, err = tokens.ParseToken(token)
		Expect(err).To(HaveOccurred())
	})

	It("rejects garbage", func() {
		_, err := tokens.ParseToken("not.a.token")
		Expect(err).To(HaveOccurred())
	})

	It("defaults a non-positive ttl to one hour", func() {
		mgr := auth.NewTokenManager("s", 0).WithClock(func() time.Time { return now })
		_, exp, err := mgr.GenerateToken("u", domain.RoleUser)
		Expect(err).NotTo(HaveOccurred())
		Expect(exp).To(Equal(now.Add(time.Hour)))
	})
})

var _ = Describe("passwords", func() {
	It("verifies only the original password", func() {
		hash, err := auth.HashPassword("hunter22", bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		Expect(hash).NotTo(Equal("hunter22"))

		Expect(auth.ComparePassword(hash, "hunter22")).To(Succeed())
		Expect(auth.ComparePassword(hash, "hunter23")).NotTo(Succeed())
	})

	It("falls back to the default cost for out-of-range values", func() {
		for _, cost := range []int{0, bcrypt.MaxCost + 1} {
			hash, err := auth.HashPassword("hunter22", cost)
			Expect(err).NotTo(HaveOccurred())
			got, err := bcrypt.Cost([]byte(hash))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(bcrypt.DefaultCost))
		}
	})
})
