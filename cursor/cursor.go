// Package cursor implements the stateful read-at / sequential-read
// object clients actually call. It drives resolver.Resolve span by
// span, dispatching each span to the current image's source, a
// recursive parent read, or a zero-fill, and retries short reads a
// bounded number of times before surfacing them.
package cursor

import (
	"io"

	"vhdi/errs"
	"vhdi/image"
	"vhdi/resolver"
)

const defaultMaxRetries = 3

// Cursor is a stateful position into one image's logical address
// space. It is not safe for concurrent use by multiple goroutines
// (spec.md §5): share an image's immutable Descriptor/Chain across
// goroutines, but give each goroutine its own Cursor.
type Cursor struct {
	chain      *image.Chain
	pos        uint64
	maxRetries int
}

// Option configures a Cursor at construction.
type Option func(*Cursor)

// WithMaxRetries overrides the default bounded short-read retry count.
func WithMaxRetries(n int) Option {
	return func(c *Cursor) { c.maxRetries = n }
}

// New builds a Cursor positioned at offset 0 of chain's logical
// address space.
func New(chain *image.Chain, opts ...Option) *Cursor {
	c := &Cursor{chain: chain, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Size returns the logical disk size.
func (c *Cursor) Size() uint64 { return c.chain.Descriptor().MediaSize }

// Position returns the cursor's current offset.
func (c *Cursor) Position() uint64 { return c.pos }

// Seek repositions the cursor. Seeking beyond the end of the disk is
// permitted; only a subsequent read there returns 0 bytes.
func (c *Cursor) Seek(offset int64, whence int) (uint64, error) {
	const op = "cursor.Cursor.Seek"
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(c.pos) + offset
	case io.SeekEnd:
		next = int64(c.Size()) + offset
	default:
		return c.pos, errs.New(errs.KindArgument, op, errBadWhence(whence))
	}
	if next < 0 {
		return c.pos, errs.New(errs.KindArgument, op, errNegativePosition(next))
	}
	c.pos = uint64(next)
	return c.pos, nil
}

// ReadNext reads from the current position and advances it by the
// number of bytes actually read.
func (c *Cursor) ReadNext(buf []byte) (int, error) {
	n, err := c.ReadAt(c.pos, buf)
	c.pos += uint64(n)
	return n, err
}

// ReadAt fills buf starting at logical offset, without moving the
// cursor's own position. It clamps to the media size rather than
// erroring: reading at or past the end returns 0 bytes, and a read
// spanning the end returns exactly the bytes available.
func (c *Cursor) ReadAt(logical uint64, buf []byte) (int, error) {
	size := c.Size()
	if logical >= size || len(buf) == 0 {
		return 0, nil
	}
	if remaining := size - logical; uint64(len(buf)) > remaining {
		buf = buf[:remaining]
	}
	return readChain(c.chain, logical, buf, c.maxRetries)
}

// readChain performs one bounded read against chain, recursing into
// the parent chain (if any) for spans the resolver defers.
func readChain(chain *image.Chain, logical uint64, buf []byte, maxRetries int) (int, error) {
	const op = "cursor.readChain"
	desc := chain.Descriptor()

	var written int
	for written < len(buf) {
		if chain.AbortRequested() {
			return written, errs.New(errs.KindAborted, op, errAborted())
		}

		span, err := resolver.Resolve(desc, logical+uint64(written), uint64(len(buf)-written))
		if err != nil {
			return written, err
		}

		dst := buf[written : written+int(span.Length)]
		switch span.Kind {
		case resolver.Zero:
			for i := range dst {
				dst[i] = 0
			}

		case resolver.Physical:
			if err := readWithRetry(desc.Source, span.Offset, dst, maxRetries); err != nil {
				return written, err
			}

		case resolver.Parent:
			parent := chain.Parent()
			if parent == nil {
				return written, errs.New(errs.KindParentMismatch, op, errNoParentAttached())
			}
			n, err := readChain(parent, span.Offset, dst, maxRetries)
			written += n
			if err != nil || n < len(dst) {
				return written, err
			}
			continue
		}

		written += len(dst)
	}
	return written, nil
}

// readWithRetry issues source.ReadAt(offset, buf) and retries a short
// read (one that isn't explained by end-of-source) up to maxRetries
// times before surfacing an IoError.
func readWithRetry(source interface {
	ReadAt(offset uint64, buf []byte) (int, error)
	Size() uint64
}, offset uint64, buf []byte, maxRetries int) error {
	const op = "cursor.readWithRetry"

	attempt := 0
	got := 0
	for got < len(buf) {
		n, err := source.ReadAt(offset+uint64(got), buf[got:])
		if err != nil {
			return errs.NewAt(errs.KindIO, op, offset+uint64(got), err)
		}
		got += n
		if got == len(buf) {
			return nil
		}
		if offset+uint64(got) >= source.Size() {
			return errs.NewAt(errs.KindIO, op, offset+uint64(got), errShortReadAtEOF(got, len(buf)))
		}
		attempt++
		if attempt > maxRetries {
			return errs.NewAt(errs.KindIO, op, offset+uint64(got), errRetriesExhausted(maxRetries))
		}
	}
	return nil
}
