package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/example/receipt-console/internal/receipt"
	"github.com/example/receipt-console/internal/session"
)

func TestBackend(t *testing.T) {
	// Disable logging during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Backend Suite")
}

// mockTokens is a mock implementation of TokenSource
type mockTokens struct {
	token    string
	tokenErr error
	cleared  bool
}

func (m *mockTokens) Token() (string, error) {
	if m.tokenErr != nil {
		return "", m.tokenErr
	}
	return m.token, nil
}

func (m *mockTokens) Clear() error {
	m.cleared = true
	m.token = ""
	return nil
}

var _ = Describe("Client", func() {
	var (
		server *ghttp.Server
		tokens *mockTokens
		client *Client
		ctx    context.Context
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		tokens = &mockTokens{token: "token-abc"}
		client = New(server.URL(), tokens)
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Login", func() {
		var (
			result *AuthResult
			err    error
		)

		JustBeforeEach(func() {
			result, err = client.Login(ctx, "jo@example.com", "hunter22hunter22")
		})

		When("credentials are accepted", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/users/login"),
					ghttp.VerifyJSON(`{"email":"jo@example.com","password":"hunter22hunter22"}`),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"token": "fresh-token",
						"user":  map[string]any{"id": 7, "name": "Jo", "email": "jo@example.com"},
					}),
				))
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the token and user", func() {
				Expect(result.Token).To(Equal("fresh-token"))
				Expect(result.User.Name).To(Equal("Jo"))
			})
		})

		When("credentials are rejected", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusUnauthorized, map[string]string{
					"message": "invalid credentials",
				}))
			})

			It("should surface the backend message", func() {
				var apiErr *APIError
				Expect(errors.As(err, &apiErr)).To(BeTrue())
				Expect(apiErr.Status).To(Equal(http.StatusUnauthorized))
				Expect(apiErr.Message).To(Equal("invalid credentials"))
			})
		})
	})

	Describe("ListReceipts", func() {
		var (
			query  ListQuery
			result *ListResult
			err    error
		)

		BeforeEach(func() {
			query = ListQuery{}
		})

		JustBeforeEach(func() {
			result, err = client.ListReceipts(ctx, query)
		})

		When("the fetch succeeds", func() {
			BeforeEach(func() {
				query = ListQuery{
					Status:    receipt.TabValidate,
					SortBy:    receipt.SortByCreatedAt,
					SortOrder: receipt.Descending,
					Search:    "shell",
				}
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/receipts", "search=shell&sortBy=createdAt&sortOrder=desc&status=validate"),
					ghttp.VerifyHeaderKV("Authorization", "Bearer token-abc"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"receipts": []map[string]any{
							{"id": "r1", "fileName": "shell.pdf", "status": map[string]any{"currentStage": "pending_validation"}},
						},
						"stats": map[string]any{"totalFiles": 1, "validFiles": 0, "processedFiles": 0, "totalAmount": 0},
					}),
				))
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should decode receipts and stats", func() {
				Expect(result.Receipts).To(HaveLen(1))
				Expect(result.Receipts[0].ID).To(Equal("r1"))
				Expect(result.Stats.TotalFiles).To(Equal(1))
			})
		})

		When("the backend returns no receipts array", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"stats": map[string]any{},
				}))
			})

			It("should return an empty slice, not nil", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Receipts).NotTo(BeNil())
				Expect(result.Receipts).To(BeEmpty())
			})
		})

		When("no token is stored", func() {
			BeforeEach(func() {
				tokens.tokenErr = session.ErrNoToken
			})

			It("should fail before issuing a request", func() {
				Expect(errors.Is(err, session.ErrNoToken)).To(BeTrue())
				Expect(server.ReceivedRequests()).To(BeEmpty())
			})
		})

		When("the backend answers 401", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, nil))
			})

			It("should clear the stored token", func() {
				Expect(err).To(HaveOccurred())
				Expect(tokens.cleared).To(BeTrue())
			})
		})
	})

	Describe("Upload", func() {
		var (
			result *UploadResult
			err    error
		)

		JustBeforeEach(func() {
			result, err = client.Upload(ctx, "receipt.pdf", strings.NewReader("fake pdf bytes"))
		})

		When("the upload is accepted", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/receipts/upload"),
					ghttp.VerifyHeaderKV("Authorization", "Bearer token-abc"),
					func(w http.ResponseWriter, r *http.Request) {
						file, header, formErr := r.FormFile("file")
						Expect(formErr).NotTo(HaveOccurred())
						defer file.Close()
						Expect(header.Filename).To(Equal("receipt.pdf"))
						data, readErr := io.ReadAll(file)
						Expect(readErr).NotTo(HaveOccurred())
						Expect(string(data)).To(Equal("fake pdf bytes"))
					},
					ghttp.RespondWithJSONEncoded(http.StatusCreated, map[string]any{
						"message": "uploaded",
						"id":      "new-id",
					}),
				))
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the new record id", func() {
				Expect(result.ID).To(Equal("new-id"))
				Expect(result.Message).To(Equal("uploaded"))
			})
		})

		When("the backend rejects the file", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusBadRequest, map[string]string{
					"message": "only PDF and image files are accepted",
				}))
			})

			It("should surface the backend message", func() {
				Expect(err).To(MatchError(ContainSubstring("only PDF and image files are accepted")))
			})
		})
	})

	Describe("Validate", func() {
		var err error

		JustBeforeEach(func() {
			err = client.Validate(ctx, "r1")
		})

		When("validation succeeds", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/receipts/r1/validate"),
					ghttp.RespondWith(http.StatusOK, nil),
				))
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})

		When("validation is rejected", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusUnprocessableEntity, map[string]string{
					"message": "file is not a readable PDF",
				}))
			})

			It("should surface the backend message", func() {
				Expect(err).To(MatchError(ContainSubstring("file is not a readable PDF")))
			})
		})
	})

	Describe("Process", func() {
		var (
			result *ProcessResult
			err    error
		)

		JustBeforeEach(func() {
			result, err = client.Process(ctx, "r1")
		})

		When("extraction succeeds", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/receipts/r1/process"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{
						"status": "completed", "message": "extracted 4 items",
					}),
				))
			})

			It("should report success", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Succeeded()).To(BeTrue())
			})
		})

		When("the backend reports failure inside a 200 response", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{
					"status": "failed", "message": "low extraction confidence",
				}))
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should report the in-body failure", func() {
				Expect(result.Succeeded()).To(BeFalse())
				Expect(result.Message).To(Equal("low extraction confidence"))
			})
		})
	})

	Describe("Delete", func() {
		var err error

		JustBeforeEach(func() {
			err = client.Delete(ctx, "r1")
		})

		When("deletion succeeds", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("DELETE", "/receipts/r1"),
					ghttp.RespondWith(http.StatusOK, nil),
				))
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})

		When("the record does not exist", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, nil))
			})

			It("should return an API error", func() {
				var apiErr *APIError
				Expect(errors.As(err, &apiErr)).To(BeTrue())
				Expect(apiErr.Status).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("Stats", func() {
		When("the fetch succeeds", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/receipts/stats"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"totalSpent":       123.45,
						"averageAmount":    41.15,
						"totalReceipts":    3,
						"monthlyBreakdown": map[string]float64{"2024-03": 123.45},
					}),
				))
			})

			It("should decode the aggregates", func() {
				stats, err := client.Stats(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.TotalSpent).To(Equal(123.45))
				Expect(stats.MonthlyBreakdown).To(HaveKeyWithValue("2024-03", 123.45))
			})
		})
	})

	Describe("error bodies", func() {
		When("the body carries an error field instead of message", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusBadRequest, map[string]string{
					"error": "something went wrong",
				}))
			})

			It("should use the error field", func() {
				err := client.Validate(ctx, "r1")
				Expect(err).To(MatchError(ContainSubstring("something went wrong")))
			})
		})

		When("the body is not JSON", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "<html>oops</html>"))
			})

			It("should fall back to the status code", func() {
				err := client.Validate(ctx, "r1")
				Expect(err).To(MatchError(ContainSubstring("500")))
			})
		})
	})
})
