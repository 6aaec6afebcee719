package bodycodec

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// CompressFast is the compression level used by the encode direction:
// a client compressing its own request body favors throughput over ratio.
const CompressFast = gzip.BestSpeed

// ContentEncoding names a recognized (or merely labeled) Content-Encoding
// value. Only Gzip is ever actively decoded or encoded; everything else is
// a label used for the pass-through warning message.
type ContentEncoding int

const (
	Identity ContentEncoding = iota
	Gzip
	Unknown
)

// ParseContentEncoding maps a Content-Encoding header value to a
// ContentEncoding. Deflate/br/zstd and anything else fall into Unknown:
// only gzip is decoded; everything else passes through with a warning.
func ParseContentEncoding(v []byte) ContentEncoding {
	switch string(v) {
	case "", "identity":
		return Identity
	case "gzip", "x-gzip":
		return Gzip
	default:
		return Unknown
	}
}

func (c ContentEncoding) String() string {
	switch c {
	case Identity:
		return "identity"
	case Gzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// Warnf is called by NewDecodeReader when it falls through to a
// pass-through decode for an unrecognized encoding. Body wires this to its
// configured Logger; tests can override it to capture the message.
type Warnf func(format string, args ...any)

// NewDecodeReader wraps src according to the response's Content-Encoding.
// Gzip is actively decoded; anything else (including a genuinely unknown
// value) is passed through unchanged after a warning — content-encoding
// recognition failures degrade gracefully rather than erroring the body.
func NewDecodeReader(src io.Reader, enc ContentEncoding, rawValue []byte, warn Warnf) (io.Reader, error) {
	switch enc {
	case Gzip:
		zr, err := acquireGzipReader(src)
		if err != nil {
			return nil, err
		}
		return &gzipDecodeReader{zr: zr, src: src}, nil
	case Identity:
		return src, nil
	default:
		if warn != nil {
			warn("corehttp: unrecognized Content-Encoding %q, passing through undecoded", rawValue)
		}
		return src, nil
	}
}

// gzipDecodeReader returns a pooled *gzip.Reader after the wrapped stream
// is exhausted, avoiding a fresh allocation per decoded response body.
type gzipDecodeReader struct {
	zr   *gzip.Reader
	src  io.Reader
	done bool
}

func (g *gzipDecodeReader) Read(p []byte) (int, error) {
	if g.done {
		return 0, io.EOF
	}
	n, err := g.zr.Read(p)
	if err == io.EOF {
		g.done = true
		releaseGzipReader(g.zr)
	}
	return n, err
}

var gzipReaderPool sync.Pool

func acquireGzipReader(r io.Reader) (*gzip.Reader, error) {
	v := gzipReaderPool.Get()
	if v == nil {
		return gzip.NewReader(r)
	}
	zr := v.(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

func releaseGzipReader(zr *gzip.Reader) {
	gzipReaderPool.Put(zr)
}

// NewEncodeReader returns an io.Reader over src's bytes gzip-encoded at
// CompressFast. Since this body pipeline is pull-based rather than
// buffer-everything, the encoder runs as a goroutine piping through
// io.Pipe: each Read on the result pulls exactly as much compressed
// output as the klauspost writer has produced, with no intermediate
// full-body buffer.
func NewEncodeReader(src io.Reader) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		zw := acquireGzipWriter(pw)
		_, err := io.Copy(zw, src)
		if err != nil {
			releaseGzipWriter(zw)
			pw.CloseWithError(err)
			return
		}
		if err := zw.Close(); err != nil {
			releaseGzipWriter(zw)
			pw.CloseWithError(err)
			return
		}
		releaseGzipWriter(zw)
		pw.Close()
	}()
	return pr
}

var gzipWriterPool sync.Pool

func acquireGzipWriter(w io.Writer) *gzip.Writer {
	v := gzipWriterPool.Get()
	if v == nil {
		zw, err := gzip.NewWriterLevel(w, CompressFast)
		if err != nil {
			panic(fmt.Sprintf("BUG: invalid gzip level %d: %s", CompressFast, err))
		}
		return zw
	}
	zw := v.(*gzip.Writer)
	zw.Reset(w)
	return zw
}

func releaseGzipWriter(zw *gzip.Writer) {
	gzipWriterPool.Put(zw)
}
