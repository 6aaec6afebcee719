package corehttp

import (
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/corehttpio/corehttp/bodycodec"
	"github.com/corehttpio/corehttp/internal/werr"
)

// reclaimer is implemented by whatever owns the underlying transport (the H1
// engine or the H2 adapter). Body calls Reclaim at most once: with the
// Limiter's TerminatesCleanly result when a read reaches io.EOF, with false
// when a read fails, and with false from the finalizer when an undrained
// Body is garbage-collected, so the connection can decide whether it is
// eligible for reuse.
type reclaimer interface {
	Reclaim(terminatedCleanly bool)
}

// Body is a pull-based, at-most-once-configured response body. A fresh Body
// wraps the raw Limiter chosen for the response's transfer-coding; Configure
// layers content-decoding and charset transcoding on top exactly once, using
// the response's final headers, since headers are known before the first
// body byte is ever requested.
type Body struct {
	mu sync.Mutex

	raw        bodycodec.Limiter
	configured bool
	reader     io.Reader // raw, or raw wrapped in decode/charset layers
	reclaim    reclaimer
	reclaimed  bool
	err        error

	// Warn receives non-fatal degradation notices (unrecognized
	// content-encoding, unsupported charset label); defaults to a no-op.
	Warn bodycodec.Warnf
}

// newBody wraps a just-selected Limiter. It is unexported: callers obtain a
// Body only as part of a Response, via the H1 engine or H2 adapter. The
// reader stays nil until Configure runs, so a Read before configuration
// fails fast instead of silently returning undecoded bytes. A finalizer is
// registered as a last-resort backstop: if the caller drops the Body
// without ever draining it to a clean end-of-body, Reclaim(false) still
// fires once the garbage collector reaps it, so a queued request on the
// same connection doesn't wait forever for a reclaim that was never coming.
// Draining the body the normal way clears the finalizer immediately.
func newBody(raw bodycodec.Limiter, reclaim reclaimer) *Body {
	b := &Body{raw: raw, reclaim: reclaim}
	runtime.SetFinalizer(b, (*Body).forfeit)
	return b
}

// forfeit is the finalizer backstop: it reclaims as not-cleanly-terminated,
// the same outcome an explicit abandon-without-draining would produce.
func (b *Body) forfeit() {
	b.finish(false)
}

// Configure layers content-decoding and charset transcoding over the raw
// limiter according to hdr. Calling it more than once is a programming
// error — body transformation is decided exactly once, before any byte is
// read — and fails fast rather than silently keeping the first decision.
func (b *Body) Configure(hdr *Header, decodeContentEncoding bool, charset string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.configured {
		return StaticError("corehttp: Body.Configure called more than once")
	}
	b.configured = true

	r := io.Reader(b.raw)
	if decodeContentEncoding {
		raw := hdr.ContentEncoding()
		enc := bodycodec.ParseContentEncoding(raw)
		dr, err := bodycodec.NewDecodeReader(r, enc, raw, b.warnf)
		if err != nil {
			return werr.Wrap(werr.IO, "configure content-decoding", err)
		}
		r = dr
	}
	if charset != "" {
		cc, err := bodycodec.NewCharCodec(r, charset)
		if err != nil {
			if b.Warn != nil {
				b.Warn("corehttp: unsupported charset %q, leaving body undecoded: %s", charset, err)
			}
		} else {
			r = cc
		}
	}
	b.reader = r
	return nil
}

func (b *Body) warnf(format string, args ...any) {
	if b.Warn != nil {
		b.Warn(format, args...)
	}
}

// Read implements io.Reader. Once the underlying Limiter reaches a clean
// end-of-body, the owning connection is reclaimed (if it declared itself
// reusable) exactly once.
func (b *Body) Read(p []byte) (int, error) {
	b.mu.Lock()
	if !b.configured {
		b.mu.Unlock()
		return 0, StaticError("corehttp: Body read before Configure")
	}
	r := b.reader
	b.mu.Unlock()

	n, err := r.Read(p)
	if err == io.EOF {
		b.finish(b.raw.TerminatesCleanly())
	} else if err != nil {
		b.finish(false)
	}
	return n, err
}

// finish runs the reclaim callback at most once.
func (b *Body) finish(cleanly bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reclaimed || b.reclaim == nil {
		return
	}
	b.reclaimed = true
	runtime.SetFinalizer(b, nil)
	b.reclaim.Reclaim(cleanly)
}

// Discard reads the body to completion without retaining any bytes, used to
// drain a response the caller doesn't want so the connection can still be
// reclaimed for keep-alive even though the caller never consumed the bytes.
func (b *Body) Discard() error {
	_, err := io.Copy(io.Discard, b)
	if err == io.EOF {
		return nil
	}
	return err
}

// AsBytes reads the body to completion and returns it as a single slice.
func (b *Body) AsBytes() ([]byte, error) {
	buf := acquireByteBuffer()
	defer releaseByteBuffer(buf)
	if _, err := io.Copy(buf, b); err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.B))
	copy(out, buf.B)
	return out, nil
}

// AsString reads the body to completion and returns it as a string. Any
// charset transcoding configured via Configure has already run by the time
// bytes reach here; any bytes that are still not valid UTF-8 are replaced
// with U+FFFD, so the result is always valid UTF-8.
func (b *Body) AsString() (string, error) {
	raw, err := b.AsBytes()
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(raw), "�"), nil
}
