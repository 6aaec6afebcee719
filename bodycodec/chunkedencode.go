package bodycodec

import (
	"io"
	"strconv"
)

// ChunkedEncoder frames each Write as one chunk of Transfer-Encoding:
// chunked ("<hex-size>\r\n<data>\r\n"), the wire format ChunkedDecoder
// consumes on the response side. It is the outgoing-request counterpart
// used whenever a request body's length isn't known up front.
type ChunkedEncoder struct {
	w io.Writer
}

// NewChunkedEncoder wraps w, which receives chunk-framed bytes.
func NewChunkedEncoder(w io.Writer) *ChunkedEncoder {
	return &ChunkedEncoder{w: w}
}

// Write frames p as a single chunk. A zero-length p writes nothing: callers
// signal end-of-body with Close, not an empty Write, since a chunk-sized
// write of zero bytes would otherwise collide with the terminating chunk.
func (c *ChunkedEncoder) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := io.WriteString(c.w, strconv.FormatInt(int64(len(p)), 16)+"\r\n"); err != nil {
		return 0, err
	}
	if _, err := c.w.Write(p); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(c.w, "\r\n"); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close emits the terminating zero-length chunk and final CRLF. No trailer
// headers are ever emitted, matching ChunkedDecoder's trailer-free
// expectations on the receiving side.
func (c *ChunkedEncoder) Close() error {
	_, err := io.WriteString(c.w, "0\r\n\r\n")
	return err
}
