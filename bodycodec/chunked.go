// Package bodycodec implements the transport-level and content codecs that
// sit between a connection's raw bytes and the Body a caller reads from:
// the chunked transfer decoder, the content-length/until-EOF/chunked
// limiter selection, the optional gzip content-encoding, and the optional
// charset-to-UTF-8 transcoder.
package bodycodec

import (
	"bufio"
	"fmt"
	"io"

	"github.com/corehttpio/corehttp/internal/werr"
)

type chunkedState int

const (
	stateReadSize chunkedState = iota
	stateReadSizeLF
	stateReadChunk
	stateReadChunkLF
	stateReadTrailerCR
	stateEnd
)

// maxChunkSize bounds a single chunk's announced size to what fits in 32
// bits; a chunk claiming more is rejected as malformed rather than trusted.
const maxChunkSize = 1<<32 - 1

// ChunkedDecoder is a pull-based decoder for Transfer-Encoding: chunked. It
// reads from an upstream byte source one chunk at a time and presents a
// single flattened io.Reader to callers; it never reads more from its
// *bufio.Reader than the current chunk requires, so a *bufio.Reader passed
// to NewChunkedDecoder is left positioned exactly at the start of whatever
// follows the terminating "0\r\n\r\n". Any other source is wrapped in a new
// bufio.Reader, which may read ahead past that point.
type ChunkedDecoder struct {
	r         *bufio.Reader
	state     chunkedState
	remaining int64
}

// NewChunkedDecoder wraps r. If r is not already a *bufio.Reader it is
// wrapped in one, since the decoder needs byte-at-a-time access while
// hunting for CRLFs and hex chunk sizes.
func NewChunkedDecoder(r io.Reader) *ChunkedDecoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &ChunkedDecoder{r: br}
}

// Read implements io.Reader. It returns 0, io.EOF once the terminating
// zero-length chunk and its trailing CRLF have been consumed, and on every
// call after that (or after a decode error has been returned).
func (d *ChunkedDecoder) Read(p []byte) (int, error) {
	for {
		switch d.state {
		case stateEnd:
			return 0, io.EOF

		case stateReadSize:
			n, err := readChunkSize(d.r)
			if err != nil {
				d.state = stateEnd
				return 0, err
			}
			d.remaining = n
			d.state = stateReadSizeLF
			continue

		case stateReadSizeLF:
			if err := expectCRLF(d.r); err != nil {
				d.state = stateEnd
				return 0, err
			}
			if d.remaining == 0 {
				d.state = stateReadTrailerCR
				continue
			}
			d.state = stateReadChunk
			continue

		case stateReadChunk:
			if len(p) == 0 {
				return 0, nil
			}
			toRead := int64(len(p))
			if toRead > d.remaining {
				toRead = d.remaining
			}
			nn, err := d.r.Read(p[:toRead])
			d.remaining -= int64(nn)
			if d.remaining == 0 {
				d.state = stateReadChunkLF
			}
			if nn > 0 {
				return nn, nil
			}
			if err != nil {
				d.state = stateEnd
				if err == io.EOF {
					return 0, werr.Wrap(werr.IO, "premature EOF inside chunk", io.ErrUnexpectedEOF)
				}
				return 0, err
			}
			continue

		case stateReadChunkLF:
			if err := expectCRLF(d.r); err != nil {
				d.state = stateEnd
				return 0, err
			}
			d.state = stateReadSize
			continue

		case stateReadTrailerCR:
			// No trailer headers are surfaced by this core; a bare
			// terminating CRLF is all that's expected after the 0-chunk.
			if err := expectCRLF(d.r); err != nil {
				d.state = stateEnd
				return 0, err
			}
			d.state = stateEnd
			return 0, io.EOF
		}
	}
}

func expectCRLF(r *bufio.Reader) error {
	c, err := r.ReadByte()
	if err != nil {
		return werr.Wrap(werr.Message, "expected CR", err)
	}
	if c != '\r' {
		return werr.New(werr.Message, fmt.Sprintf("malformed chunk: expected CR, got %q", c))
	}
	c, err = r.ReadByte()
	if err != nil {
		return werr.Wrap(werr.Message, "expected LF", err)
	}
	if c != '\n' {
		return werr.New(werr.Message, fmt.Sprintf("malformed chunk: expected LF, got %q", c))
	}
	return nil
}

// readChunkSize reads a hex chunk-size line up to (but not including) the
// trailing CRLF. Chunk extensions (";name=value") are skipped.
func readChunkSize(r *bufio.Reader) (int64, error) {
	var n int64
	sawDigit := false
	for {
		c, err := r.ReadByte()
		if err != nil {
			return 0, werr.Wrap(werr.Message, "reading chunk size", err)
		}
		if c == ';' {
			if err := skipChunkExtension(r); err != nil {
				return 0, err
			}
			return n, nil
		}
		if c == '\r' {
			if err := r.UnreadByte(); err != nil {
				return 0, werr.Wrap(werr.Message, "unreading chunk size terminator", err)
			}
			if !sawDigit {
				return 0, werr.New(werr.Message, "malformed chunk size: no digits")
			}
			return n, nil
		}
		v, ok := hexVal(c)
		if !ok {
			return 0, werr.New(werr.Message, fmt.Sprintf("malformed chunk size: unexpected byte %q", c))
		}
		sawDigit = true
		n = n<<4 | int64(v)
		if n > maxChunkSize {
			return 0, werr.New(werr.Message, "chunk size exceeds 2^32-1")
		}
	}
}

func skipChunkExtension(r *bufio.Reader) error {
	for {
		c, err := r.ReadByte()
		if err != nil {
			return werr.Wrap(werr.Message, "reading chunk extension", err)
		}
		if c == '\r' {
			return r.UnreadByte()
		}
	}
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
