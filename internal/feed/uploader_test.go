package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/example/receipt-console/internal/backend"
	"github.com/example/receipt-console/internal/session"
)

func batchOf(names ...string) []File {
	files := make([]File, 0, len(names))
	for _, name := range names {
		files = append(files, File{
			Name: name,
			Size: int64(len(name)),
			Data: strings.NewReader("content of " + name),
		})
	}
	return files
}

var _ = Describe("Uploader", func() {
	var (
		api      *mockBackend
		uploader *Uploader
		reports  []BatchReport
		ctx      context.Context
	)

	BeforeEach(func() {
		api = newMockBackend()
		reports = nil
		uploader = NewUploader(api, func(r BatchReport) {
			reports = append(reports, r)
		})
		ctx = context.Background()
	})

	When("every file uploads cleanly", func() {
		BeforeEach(func() {
			api.uploadResults["a.pdf"] = &backend.UploadResult{ID: "id-a", Message: "ok"}
			api.uploadResults["b.pdf"] = &backend.UploadResult{ID: "id-b", Message: "ok"}
		})

		It("should upload sequentially in order", func() {
			report := uploader.UploadAll(ctx, batchOf("a.pdf", "b.pdf"))
			Expect(api.uploaded).To(Equal([]string{"a.pdf", "b.pdf"}))
			Expect(report.Succeeded()).To(Equal(2))
			Expect(report.Failed()).To(BeZero())
		})

		It("should record the backend id per file", func() {
			report := uploader.UploadAll(ctx, batchOf("a.pdf", "b.pdf"))
			Expect(report.Files[0].ID).To(Equal("id-a"))
			Expect(report.Files[1].ID).To(Equal("id-b"))
		})

		It("should assign each batch a distinct id", func() {
			first := uploader.UploadAll(ctx, batchOf("a.pdf"))
			second := uploader.UploadAll(ctx, batchOf("b.pdf"))
			Expect(first.BatchID).NotTo(BeEmpty())
			Expect(first.BatchID).NotTo(Equal(second.BatchID))
		})

		It("should run the completion callback exactly once", func() {
			report := uploader.UploadAll(ctx, batchOf("a.pdf", "b.pdf"))
			Expect(reports).To(HaveLen(1))
			Expect(reports[0].BatchID).To(Equal(report.BatchID))
		})
	})

	When("one file in the middle fails", func() {
		BeforeEach(func() {
			api.uploadErrs["b.pdf"] = errors.New("file too large")
		})

		It("should keep uploading the files after it", func() {
			report := uploader.UploadAll(ctx, batchOf("a.pdf", "b.pdf", "c.pdf"))
			Expect(api.uploaded).To(Equal([]string{"a.pdf", "b.pdf", "c.pdf"}))
			Expect(report.Succeeded()).To(Equal(2))
			Expect(report.Failed()).To(Equal(1))
		})

		It("should pin the failure to the right file", func() {
			report := uploader.UploadAll(ctx, batchOf("a.pdf", "b.pdf", "c.pdf"))
			Expect(report.Files[0].Err).NotTo(HaveOccurred())
			Expect(report.Files[1].Err).To(MatchError(ContainSubstring("file too large")))
			Expect(report.Files[2].Err).NotTo(HaveOccurred())
		})

		It("should still run the completion callback once", func() {
			uploader.UploadAll(ctx, batchOf("a.pdf", "b.pdf", "c.pdf"))
			Expect(reports).To(HaveLen(1))
		})
	})

	When("the session token is missing", func() {
		BeforeEach(func() {
			api.uploadErrs["b.pdf"] = fmt.Errorf("creating request: %w", session.ErrNoToken)
		})

		It("should abort the rest of the batch", func() {
			report := uploader.UploadAll(ctx, batchOf("a.pdf", "b.pdf", "c.pdf", "d.pdf"))
			Expect(api.uploaded).To(Equal([]string{"a.pdf", "b.pdf"}))
			Expect(report.Succeeded()).To(Equal(1))
			Expect(report.Failed()).To(Equal(3))
		})

		It("should mark the skipped files with the missing-token error", func() {
			report := uploader.UploadAll(ctx, batchOf("a.pdf", "b.pdf", "c.pdf"))
			Expect(report.Files[2].Err).To(MatchError(session.ErrNoToken))
		})
	})

	When("the batch is empty", func() {
		It("should report nothing and still run the callback", func() {
			report := uploader.UploadAll(ctx, nil)
			Expect(report.Files).To(BeEmpty())
			Expect(reports).To(HaveLen(1))
		})
	})

	When("no completion callback is set", func() {
		It("should not panic", func() {
			u := NewUploader(api, nil)
			Expect(func() { u.UploadAll(ctx, batchOf("a.pdf")) }).NotTo(Panic())
		})
	})
})
