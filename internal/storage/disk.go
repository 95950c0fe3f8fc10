package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const compressedSuffix = ".zst"

// DiskOptions configures a Disk store.
type DiskOptions struct {
	Root     string
	Compress bool
	// MaxBytes bounds the uncompressed size of a blob. Zero disables the limit.
	MaxBytes int64
}

// Disk is a content-addressed FileStorage on the local filesystem. Keys have
// the form <ticketID>/<blake3 hex>, with a .zst suffix when compressed.
type Disk struct {
	root     string
	compress bool
	maxBytes int64
}

// NewDisk prepares the root directory and returns the store.
func NewDisk(opts DiskOptions) (*Disk, error) {
	if opts.Root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(opts.Root, 0o750); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &Disk{root: opts.Root, compress: opts.Compress, maxBytes: opts.MaxBytes}, nil
}

// Put streams r into a temporary file while hashing the uncompressed bytes,
// then hard-links it into place.
func (d *Disk) Put(ctx context.Context, ticketID string, r io.Reader) (Object, error) {
	if err := validSegment(ticketID); err != nil {
		return Object{}, err
	}
	dir := filepath.Join(d.root, ticketID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Object{}, fmt.Errorf("creating ticket directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	var encoder *zstd.Encoder
	defer func() {
		if !committed {
			if encoder != nil {
				_ = encoder.Close()
			}
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	var sink io.Writer = tmp
	if d.compress {
		encoder, err = zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return Object{}, fmt.Errorf("zstd encoder: %w", err)
		}
		sink = encoder
	}

	hasher := blake3.New()
	src := r
	if d.maxBytes > 0 {
		src = io.LimitReader(r, d.maxBytes+1)
	}
	size, err := io.Copy(io.MultiWriter(sink, hasher), &ctxReader{ctx: ctx, r: src})
	if err != nil {
		return Object{}, fmt.Errorf("writing blob: %w", err)
	}
	if size == 0 {
		return Object{}, ErrEmpty
	}
	if d.maxBytes > 0 && size > d.maxBytes {
		return Object{}, ErrTooLarge
	}
	if encoder != nil {
		err := encoder.Close()
		encoder = nil
		if err != nil {
			return Object{}, fmt.Errorf("zstd flush: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		return Object{}, fmt.Errorf("syncing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("closing blob: %w", err)
	}

	name := hex.EncodeToString(hasher.Sum(nil))
	if d.compress {
		name += compressedSuffix
	}
	key := ticketID + "/" + name
	final := filepath.Join(dir, name)

	// Link fails with EEXIST when the blob is already published, so exactly
	// one concurrent writer of the same bytes reports Created.
	err = os.Link(tmpName, final)
	_ = os.Remove(tmpName)
	committed = true
	switch {
	case err == nil:
		return Object{Key: key, Size: size, Created: true}, nil
	case errors.Is(err, fs.ErrExist):
		return Object{Key: key, Size: size}, nil
	default:
		return Object{}, fmt.Errorf("publishing blob: %w", err)
	}
}

// Open returns a reader of the original bytes stored under key.
func (d *Disk) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	if !strings.HasSuffix(key, compressedSuffix) {
		return f, nil
	}
	decoder, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &decompressingReader{decoder: decoder, file: f}, nil
}

// Delete removes the blob. A missing blob is not an error.
func (d *Disk) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}

func (d *Disk) resolve(key string) (string, error) {
	ticketID, name, ok := strings.Cut(key, "/")
	if !ok {
		return "", ErrInvalidKey
	}
	if err := validSegment(ticketID); err != nil {
		return "", err
	}
	if err := validSegment(name); err != nil {
		return "", err
	}
	return filepath.Join(d.root, ticketID, name), nil
}

func validSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return ErrInvalidKey
	}
	return nil
}

type decompressingReader struct {
	decoder *zstd.Decoder
	file    *os.File
}

func (r *decompressingReader) Read(p []byte) (int, error) { return r.decoder.Read(p) }

func (r *decompressingReader) Close() error {
	r.decoder.Close()
	return r.file.Close()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ FileStorage = (*Disk)(nil)
