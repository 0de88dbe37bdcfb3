package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSession(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Suite")
}

// signedToken builds a JWT expiring at the given time. The signing key is
// irrelevant: the store only peeks at claims without verifying.
func signedToken(expiresAt time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	Expect(err).NotTo(HaveOccurred())
	return token
}

var _ = Describe("BoltStore", func() {
	var (
		store *BoltStore
		user  User
	)

	BeforeEach(func() {
		var err error
		store, err = NewBoltStore(filepath.Join(GinkgoT().TempDir(), "session.db"))
		Expect(err).NotTo(HaveOccurred())
		user = User{ID: 7, Name: "Jo", Email: "jo@example.com"}
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("Token", func() {
		When("no session is stored", func() {
			It("should return ErrNoToken", func() {
				_, err := store.Token()
				Expect(errors.Is(err, ErrNoToken)).To(BeTrue())
			})
		})

		When("a session is stored", func() {
			BeforeEach(func() {
				Expect(store.Set("opaque-token", user)).To(Succeed())
			})

			It("should return the token", func() {
				token, err := store.Token()
				Expect(err).NotTo(HaveOccurred())
				Expect(token).To(Equal("opaque-token"))
			})

			It("should return the user", func() {
				got, err := store.User()
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(user))
			})
		})

		When("the stored token is an expired JWT", func() {
			BeforeEach(func() {
				Expect(store.Set(signedToken(time.Now().Add(-time.Hour)), user)).To(Succeed())
			})

			It("should read as absent", func() {
				_, err := store.Token()
				Expect(errors.Is(err, ErrNoToken)).To(BeTrue())
			})
		})

		When("the stored token is a live JWT", func() {
			BeforeEach(func() {
				Expect(store.Set(signedToken(time.Now().Add(time.Hour)), user)).To(Succeed())
			})

			It("should return the token", func() {
				_, err := store.Token()
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("Set", func() {
		It("should replace a previous session", func() {
			Expect(store.Set("first", user)).To(Succeed())
			Expect(store.Set("second", User{ID: 8, Name: "Sam", Email: "sam@example.com"})).To(Succeed())

			token, err := store.Token()
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("second"))

			got, err := store.User()
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Sam"))
		})
	})

	Describe("Clear", func() {
		BeforeEach(func() {
			Expect(store.Set("opaque-token", user)).To(Succeed())
		})

		It("should remove the token and user", func() {
			Expect(store.Clear()).To(Succeed())

			_, err := store.Token()
			Expect(errors.Is(err, ErrNoToken)).To(BeTrue())

			_, err = store.User()
			Expect(errors.Is(err, ErrNoToken)).To(BeTrue())
		})

		It("should be safe to call on an empty store", func() {
			Expect(store.Clear()).To(Succeed())
			Expect(store.Clear()).To(Succeed())
		})
	})

	Describe("persistence", func() {
		It("should survive a close and reopen", func() {
			path := filepath.Join(GinkgoT().TempDir(), "persist.db")
			first, err := NewBoltStore(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Set("opaque-token", user)).To(Succeed())
			Expect(first.Close()).To(Succeed())

			second, err := NewBoltStore(path)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			token, err := second.Token()
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("opaque-token"))
		})
	})
})

var _ = Describe("MemoryStore", func() {
	var store *MemoryStore

	BeforeEach(func() {
		store = NewMemoryStore()
	})

	It("should start empty", func() {
		_, err := store.Token()
		Expect(errors.Is(err, ErrNoToken)).To(BeTrue())
	})

	It("should round-trip a session", func() {
		user := User{ID: 1, Name: "Jo", Email: "jo@example.com"}
		Expect(store.Set("opaque-token", user)).To(Succeed())

		token, err := store.Token()
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("opaque-token"))

		got, err := store.User()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(user))
	})

	It("should clear", func() {
		Expect(store.Set("opaque-token", User{})).To(Succeed())
		Expect(store.Clear()).To(Succeed())
		_, err := store.Token()
		Expect(errors.Is(err, ErrNoToken)).To(BeTrue())
	})

	It("should treat an expired JWT as absent", func() {
		Expect(store.Set(signedToken(time.Now().Add(-time.Minute)), User{})).To(Succeed())
		_, err := store.Token()
		Expect(errors.Is(err, ErrNoToken)).To(BeTrue())
	})

	It("should treat a JWT without an exp claim as live", func() {
		claims := jwt.RegisteredClaims{Subject: "7"}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
		Expect(err).NotTo(HaveOccurred())

		Expect(store.Set(token, User{})).To(Succeed())
		_, err = store.Token()
		Expect(err).NotTo(HaveOccurred())
	})
})
