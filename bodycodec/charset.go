package bodycodec

import (
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// CharCodec lazily transcodes a declared charset to UTF-8. It never
// returns a decode error: malformed byte sequences are replaced with
// U+FFFD, the same "warn and degrade rather than fail the body" posture
// content-encoding recognition uses, extended here to charsets.
type CharCodec struct {
	src io.Reader
	dec *encoding.Decoder
	buf []byte // undecoded bytes carried over from the previous poll
	out []byte // decoded bytes that didn't fit the previous caller's buffer
	eof bool
}

// NewCharCodec resolves charset (an IANA/MIME label such as "iso-8859-1" or
// "shift_jis") via golang.org/x/text/encoding/htmlindex, the same registry
// html/charset and most Go HTTP tooling use, and returns a CharCodec
// wrapping src. "utf-8" and the empty string resolve to a no-op passthrough
// so callers need not special-case the common case.
func NewCharCodec(src io.Reader, charset string) (*CharCodec, error) {
	if charset == "" || isUTF8Label(charset) {
		return &CharCodec{src: src, dec: nil}, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, err
	}
	return &CharCodec{src: src, dec: enc.NewDecoder()}, nil
}

func isUTF8Label(s string) bool {
	switch s {
	case "utf-8", "UTF-8", "utf8", "UTF8":
		return true
	default:
		return false
	}
}

// Read implements io.Reader, filling an internal buffer from the upstream
// source and decoding as much of it as will fit into p, retaining any
// incomplete trailing multi-byte sequence for the next call.
func (c *CharCodec) Read(p []byte) (int, error) {
	if c.dec == nil {
		return c.src.Read(p)
	}
	if len(c.out) > 0 {
		n := copy(p, c.out)
		c.out = c.out[n:]
		return n, nil
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) < utf8.UTFMax {
		// Guarantee forward progress: a destination smaller than the
		// longest possible decoded rune is served from a rune-sized
		// scratch buffer, and whatever doesn't fit is kept for the next
		// call instead of returning (0, nil) forever.
		var tmp [utf8.UTFMax]byte
		n, err := c.Read(tmp[:])
		c.out = append(c.out[:0], tmp[:n]...)
		m := copy(p, c.out)
		c.out = c.out[m:]
		return m, err
	}
	for {
		if len(c.buf) > 0 {
			nDst, nSrc, err := c.dec.Transform(p, c.buf, c.eof)
			if nSrc > 0 {
				copy(c.buf, c.buf[nSrc:])
				c.buf = c.buf[:len(c.buf)-nSrc]
			}
			if nDst > 0 {
				return nDst, nil
			}
			switch err {
			case nil:
				// Made no progress with no error and nothing left: fall
				// through to refill or signal EOF below.
			case transform.ErrShortSrc:
				if c.eof {
					// No more input coming and the decoder still wants
					// more: treat the tail as malformed and drop it.
					c.buf = c.buf[:0]
					n := utf8.EncodeRune(p, utf8.RuneError)
					return n, nil
				}
				// fall through to refill from upstream
			case transform.ErrShortDst:
				// p guaranteed >= utf8.UTFMax above; shouldn't happen.
			default:
				// Malformed input byte: emit U+FFFD and drop one byte so
				// forward progress is guaranteed and the body never errors.
				if len(c.buf) > 0 {
					c.buf = c.buf[1:]
				}
				n := utf8.EncodeRune(p, utf8.RuneError)
				return n, nil
			}
		}
		if c.eof && len(c.buf) == 0 {
			return 0, io.EOF
		}
		tmp := make([]byte, 4096)
		n, err := c.src.Read(tmp)
		if n > 0 {
			c.buf = append(c.buf, tmp[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				return 0, err
			}
			c.eof = true
		}
	}
}
