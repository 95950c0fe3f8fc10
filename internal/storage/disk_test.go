package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/ticketflow/internal/storage"
)

var _ = Describe("Disk", func() {
	var (
		ctx  context.Context
		root string
	)

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
	})

	readAll := func(d *storage.Disk, key string) string {
		rc, err := d.Open(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()
		data, err := io.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	DescribeTable("round-trips content",
		func(compress bool) {
			d, err := storage.NewDisk(storage.DiskOptions{Root: root, Compress: compress})
			Expect(err).NotTo(HaveOccurred())

			payload := strings.Repeat("log line with repeated text\n", 500)
			obj, err := d.Put(ctx, "ticket-1", strings.NewReader(payload))
			Expect(err).NotTo(HaveOccurred())
			Expect(obj.Created).To(BeTrue())
			Expect(obj.Size).To(Equal(int64(len(payload))))
			Expect(obj.Key).To(HavePrefix("ticket-1/"))
			Expect(strings.HasSuffix(obj.Key, ".zst")).To(Equal(compress))
			Expect(readAll(d, obj.Key)).To(Equal(payload))

			info, err := os.Stat(filepath.Join(root, filepath.FromSlash(obj.Key)))
			Expect(err).NotTo(HaveOccurred())
			if compress {
				Expect(info.Size()).To(BeNumerically("<", len(payload)))
			} else {
				Expect(info.Size()).To(Equal(int64(len(payload))))
			}
		},
		Entry("uncompressed", false),
		Entry("zstd compressed", true),
	)

	It("deduplicates identical content within a ticket", func() {
		d, _ := storage.NewDisk(storage.DiskOptions{Root: root, Compress: true})
		first, err := d.Put(ctx, "ticket-1", strings.NewReader("same bytes"))
		Expect(err).NotTo(HaveOccurred())
		second, err := d.Put(ctx, "ticket-1", strings.NewReader("same bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Key).To(Equal(first.Key))
		Expect(second.Created).To(BeFalse())

		entries, err := os.ReadDir(filepath.Join(root, "ticket-1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("lets exactly one concurrent writer of identical bytes own the blob", func() {
		d, _ := storage.NewDisk(storage.DiskOptions{Root: root, Compress: true})
		const writers = 8
		results := make(chan storage.Object, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				obj, err := d.Put(ctx, "ticket-1", strings.NewReader("shared attachment body"))
				Expect(err).NotTo(HaveOccurred())
				results <- obj
			}()
		}
		wg.Wait()
		close(results)

		created := 0
		keys := map[string]bool{}
		for obj := range results {
			keys[obj.Key] = true
			if obj.Created {
				created++
			}
		}
		Expect(created).To(Equal(1))
		Expect(keys).To(HaveLen(1))

		entries, err := os.ReadDir(filepath.Join(root, "ticket-1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("rejects empty uploads and leaves nothing behind", func() {
		d, _ := storage.NewDisk(storage.DiskOptions{Root: root, Compress: true})
		_, err := d.Put(ctx, "ticket-1", bytes.NewReader(nil))
		Expect(err).To(MatchError(storage.ErrEmpty))
		entries, _ := os.ReadDir(filepath.Join(root, "ticket-1"))
		Expect(entries).To(BeEmpty())
	})

	It("enforces the size limit", func() {
		d, _ := storage.NewDisk(storage.DiskOptions{Root: root, MaxBytes: 8})
		_, err := d.Put(ctx, "ticket-1", strings.NewReader("123456789"))
		Expect(err).To(MatchError(storage.ErrTooLarge))
		obj, err := d.Put(ctx, "ticket-1", strings.NewReader("12345678"))
		Expect(err).NotTo(HaveOccurred())
		Expect(obj.Size).To(Equal(int64(8)))
	})

	It("rejects keys that escape the root", func() {
		d, _ := storage.NewDisk(storage.DiskOptions{Root: root})
		_, err := d.Put(ctx, "../evil", strings.NewReader("x"))
		Expect(err).To(MatchError(storage.ErrInvalidKey))
		_, err = d.Open(ctx, "ticket-1/../../etc")
		Expect(err).To(MatchError(storage.ErrInvalidKey))
		_, err = d.Open(ctx, "no-slash")
		Expect(err).To(MatchError(storage.ErrInvalidKey))
	})

	It("reports unknown keys and deletes idempotently", func() {
		d, _ := storage.NewDisk(storage.DiskOptions{Root: root})
		_, err := d.Open(ctx, "ticket-1/missing")
		Expect(err).To(MatchError(storage.ErrNotFound))

		obj, err := d.Put(ctx, "ticket-1", strings.NewReader("bye"))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Delete(ctx, obj.Key)).To(Succeed())
		Expect(d.Delete(ctx, obj.Key)).To(Succeed())
		_, err = d.Open(ctx, obj.Key)
		Expect(err).To(MatchError(storage.ErrNotFound))
	})

	It("stops on a cancelled context", func() {
		d, _ := storage.NewDisk(storage.DiskOptions{Root: root})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := d.Put(cancelled, "ticket-1", strings.NewReader("data"))
		Expect(err).To(MatchError(context.Canceled))
	})

	It("requires a root", func() {
		_, err := storage.NewDisk(storage.DiskOptions{})
		Expect(err).To(HaveOccurred())
	})
})
