package bodycodec

import (
	"bufio"
	"io"

	"github.com/corehttpio/corehttp/internal/werr"
)

// Limiter is the sole authority over when a response body ends. It wraps
// a transport-level reader and stops presenting bytes once its boundary
// condition is reached, regardless of how much more data the underlying
// connection might still deliver.
type Limiter interface {
	io.Reader

	// TerminatesCleanly reports whether this limiter signals end-of-body
	// without relying on the transport being closed. True for chunked and
	// content-length; false for until-EOF, which by construction can only
	// detect the end by observing a closed connection.
	TerminatesCleanly() bool
}

// SelectLimiter chooses a Limiter from response transfer-coding headers:
//
//   - Transfer-Encoding: chunked present -> chunked decoder.
//   - else Content-Length present and parseable -> content-length limiter.
//   - else -> until-EOF limiter.
func SelectLimiter(r *bufio.Reader, chunked bool, contentLength int64, hasContentLength bool) Limiter {
	switch {
	case chunked:
		return &chunkedLimiter{d: NewChunkedDecoder(r)}
	case hasContentLength:
		return &contentLengthLimiter{r: r, remaining: contentLength}
	default:
		return &untilEOFLimiter{r: r}
	}
}

type chunkedLimiter struct {
	d *ChunkedDecoder
}

func (l *chunkedLimiter) Read(p []byte) (int, error) { return l.d.Read(p) }
func (l *chunkedLimiter) TerminatesCleanly() bool     { return true }

type contentLengthLimiter struct {
	r         *bufio.Reader
	remaining int64
}

func (l *contentLengthLimiter) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if err == io.EOF && l.remaining > 0 {
		return n, werr.Wrap(werr.IO, "connection closed before content-length satisfied", io.ErrUnexpectedEOF)
	}
	return n, err
}

func (l *contentLengthLimiter) TerminatesCleanly() bool { return true }

type untilEOFLimiter struct {
	r *bufio.Reader
}

func (l *untilEOFLimiter) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *untilEOFLimiter) TerminatesCleanly() bool     { return false }
