package h1

import (
	"io"

	"github.com/corehttpio/corehttp/bodycodec"
)

// SendStream is a request body the caller writes to incrementally instead
// of handing SendRequest a complete io.Reader up front. It is backed by
// an in-memory pipe: writes block until the engine's goroutine for this
// task has drained them onto the wire. Since a stream source has no
// predetermined length, every write is framed as a chunk of
// Transfer-Encoding: chunked before it reaches the pipe — the head this
// request was opened with must declare chunked encoding.
type SendStream struct {
	pw  *io.PipeWriter
	enc *bodycodec.ChunkedEncoder
}

// Write implements io.Writer.
func (s *SendStream) Write(p []byte) (int, error) { return s.enc.Write(p) }

// Close signals end of body, emitting the terminating zero-length chunk
// before closing the underlying pipe.
func (s *SendStream) Close() error {
	if err := s.enc.Close(); err != nil {
		_ = s.pw.CloseWithError(err)
		return err
	}
	return s.pw.Close()
}

// CloseWithError aborts the stream, surfacing err to the engine so it can
// fail the request instead of sending a truncated body.
func (s *SendStream) CloseWithError(err error) error { return s.pw.CloseWithError(err) }

// StreamResult is what OpenStream's channel delivers: the raw response head
// and Handle on success, or the error that ended sending or receiving. The
// SendRequest behind it runs in a background goroutine, so the head is
// written once that request's turn on the connection comes, not when
// OpenStream returns.
type StreamResult struct {
	RawHead []byte
	Handle  *Handle
	Err     error
}

// OpenStream returns a SendStream to write the request body to, and a
// channel that receives exactly one StreamResult once the response head has
// been read (or sending/receiving failed).
func (e *Engine) OpenStream(head []byte) (*SendStream, <-chan StreamResult) {
	pr, pw := io.Pipe()
	result := make(chan StreamResult, 1)
	go func() {
		rawHead, handle, err := e.SendRequest(head, pr)
		result <- StreamResult{RawHead: rawHead, Handle: handle, Err: err}
	}()
	return &SendStream{pw: pw, enc: bodycodec.NewChunkedEncoder(pw)}, result
}
