package h1

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"time"

	"github.com/corehttpio/corehttp/internal/werr"
)

var errConnectionNotReusable = werr.New(werr.RemoteClosed, "connection no longer reusable")

// strHeaderEnd is the header-block terminator; duplicated from the root
// package's wire constants for the same reason as the buffer-size defaults
// in inner.go.
var strHeaderEnd = []byte("\r\n\r\n")

// str100ContinuePrefix is the fixed-length prefix of a "100 Continue"
// status line, long enough to distinguish it from any other status code
// without needing to find a line terminator first.
var str100ContinuePrefix = []byte("HTTP/1.1 100")

// expectContinueTimeout bounds how long SendRequestExpectContinue waits for
// an interim 100-response before giving up and sending the body anyway. A
// server that doesn't understand Expect: 100-continue simply never sends
// one; this core must not hang waiting for it.
const expectContinueTimeout = 1 * time.Second

// Engine drives one connection's worth of request/response cycles. It is
// safe for concurrent use: callers queue requests by calling SendRequest
// from any number of goroutines, and the engine serializes them onto the
// wire in submission order.
type Engine struct {
	in *Inner
}

// NewEngine wraps a live connection. The caller has already completed
// dialing and any TLS handshake; connection establishment is left to
// that caller.
func NewEngine(conn net.Conn) *Engine {
	return &Engine{in: NewInner(conn)}
}

// Handle represents a task's ownership of the connection's response-body
// phase. It is returned by SendRequest alongside the raw response head and
// must be finished with Reclaim exactly once.
type Handle struct {
	eng *Engine
	seq Seq
}

// BodyReader exposes the connection's buffered reader for constructing a
// bodycodec.Limiter over the response body. It must only be read from
// until Reclaim is called.
func (h *Handle) BodyReader() *bufio.Reader { return h.eng.in.br }

// Reclaim releases the connection for the next queued task. reusable
// reflects the connection-facade's full keep-alive decision (clean
// body-termination AND no Connection: close on either side, AND not
// HTTP/1.0 without an explicit keep-alive).
func (h *Handle) Reclaim(reusable bool) { h.eng.in.release(reusable) }

// Close tears down the connection immediately, failing any queued or
// future SendRequest calls with err.
func (e *Engine) Close(err error) { e.in.fail(err) }

// SendRequest writes head (the already-serialized request line and
// headers, terminated with "\r\n") followed by body (nil for a bodyless
// request), then reads and returns the raw response head block: the status
// line and header lines, each with its own "\r\n", without the final blank
// line. The returned Handle must be used to read the
// response body and then released.
//
// Requests are admitted strictly in the order SendRequest is called: a
// call blocks until every earlier-queued request has both sent its
// head/body and had its response body fully reclaimed.
func (e *Engine) SendRequest(head []byte, body io.Reader) ([]byte, *Handle, error) {
	seq := e.in.nextTicket()
	if err := e.in.awaitTurn(seq); err != nil {
		return nil, nil, err
	}

	if err := e.writeRequest(head, body); err != nil {
		e.in.fail(err)
		return nil, nil, err
	}

	rawHead, err := e.readHead()
	if err != nil {
		e.in.fail(err)
		return nil, nil, err
	}
	return rawHead, &Handle{eng: e, seq: seq}, nil
}

// SendRequestExpectContinue is SendRequest's counterpart for a request that
// sent Expect: 100-continue: head is written and flushed on its own, then
// the engine waits up to expectContinueTimeout for an interim "100
// Continue" status line before writing body. A server that answers with
// its real final response instead (e.g. rejecting the request outright)
// leaves those bytes buffered for the subsequent readHead call, same as a
// server that never replies to Expect at all.
func (e *Engine) SendRequestExpectContinue(head []byte, body io.Reader) ([]byte, *Handle, error) {
	seq := e.in.nextTicket()
	if err := e.in.awaitTurn(seq); err != nil {
		return nil, nil, err
	}

	if _, err := e.in.bw.Write(head); err != nil {
		err = werr.Wrap(werr.IO, "write request head", err)
		e.in.fail(err)
		return nil, nil, err
	}
	if err := e.in.bw.Flush(); err != nil {
		err = werr.Wrap(werr.IO, "flush request head", err)
		e.in.fail(err)
		return nil, nil, err
	}

	if err := e.awaitContinue(); err != nil {
		e.in.fail(err)
		return nil, nil, err
	}

	if body != nil {
		if _, err := io.Copy(e.in.bw, body); err != nil {
			err = werr.Wrap(werr.IO, "write request body", err)
			e.in.fail(err)
			return nil, nil, err
		}
	}
	if err := e.in.bw.Flush(); err != nil {
		err = werr.Wrap(werr.IO, "flush request body", err)
		e.in.fail(err)
		return nil, nil, err
	}

	rawHead, err := e.readHead()
	if err != nil {
		e.in.fail(err)
		return nil, nil, err
	}
	return rawHead, &Handle{eng: e, seq: seq}, nil
}

// awaitContinue peeks for a "100 Continue" interim response within
// expectContinueTimeout. A match is discarded up to and including its
// blank-line terminator so the next readHead call starts clean at the real
// response; a timeout or any other mismatch leaves the buffered reader
// untouched, so bytes that turn out to belong to the real response (a
// server that skipped the 100 and replied immediately) aren't lost.
func (e *Engine) awaitContinue() error {
	if err := e.in.setReadDeadline(expectContinueTimeout); err != nil {
		return werr.Wrap(werr.IO, "set expect-continue read deadline", err)
	}
	defer e.in.clearReadDeadline()

	peek, err := e.in.br.Peek(len(str100ContinuePrefix))
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		if err == io.EOF {
			return werr.Wrap(werr.RemoteClosed, "connection closed awaiting 100-continue", io.EOF)
		}
		return werr.Wrap(werr.IO, "read awaiting 100-continue", err)
	}
	if !bytes.Equal(peek, str100ContinuePrefix) {
		return nil
	}

	if _, err := e.in.br.Discard(len(str100ContinuePrefix)); err != nil {
		return werr.Wrap(werr.IO, "discard 100-continue status line", err)
	}
	if err := e.discardToBlankLine(); err != nil {
		return werr.Wrap(werr.IO, "discard 100-continue interim head", err)
	}
	return nil
}

// discardToBlankLine consumes the rest of the interim response line-by-line
// up to and including its terminating blank line. It reads exactly as much
// as it needs to find that terminator (bufio.Reader.ReadString never asks
// for more than one fill's worth beyond the delimiter); the interim
// response is typically just "100 Continue\r\n\r\n" with nothing queued
// behind it.
func (e *Engine) discardToBlankLine() error {
	for {
		line, err := e.in.br.ReadString('\n')
		if err != nil {
			return err
		}
		if line == "\r\n" || line == "\n" {
			return nil
		}
	}
}

func (e *Engine) writeRequest(head []byte, body io.Reader) error {
	if _, err := e.in.bw.Write(head); err != nil {
		return werr.Wrap(werr.IO, "write request head", err)
	}
	if body != nil {
		if _, err := io.Copy(e.in.bw, body); err != nil {
			return werr.Wrap(werr.IO, "write request body", err)
		}
	}
	if err := e.in.bw.Flush(); err != nil {
		return werr.Wrap(werr.IO, "flush request", err)
	}
	return nil
}

// readHead accumulates bytes from the connection until it has seen a full
// "\r\n\r\n" terminator, by repeatedly Peek-ing one byte more than is
// already buffered and scanning everything buffered — the same technique
// fasthttp's header reader uses instead of a byte-by-byte ReadByte loop.
// Each Peek waits only for that one extra byte, so a short head on an open
// connection is found as soon as it arrives. Peek never consumes bytes, so
// once the terminator is found, Discard drops exactly the head block and
// leaves any already-buffered body bytes in place for the caller's
// subsequent body reads.
func (e *Engine) readHead() ([]byte, error) {
	br := e.in.br
	n := 1
	for {
		_, err := br.Peek(n)
		b, _ := br.Peek(br.Buffered())
		if idx := bytes.Index(b, strHeaderEnd); idx >= 0 {
			head := make([]byte, idx+2) // keep one trailing \r\n, drop the blank line
			copy(head, b[:idx+2])
			if _, derr := br.Discard(idx + len(strHeaderEnd)); derr != nil {
				return nil, werr.Wrap(werr.IO, "discard response head", derr)
			}
			return head, nil
		}
		switch err {
		case nil:
			if len(b) >= defaultMaxHeaderBytes {
				return nil, werr.New(werr.BadHeader, "response head exceeds maximum size")
			}
			n = len(b) + 1
		case bufio.ErrBufferFull:
			return nil, werr.New(werr.BadHeader, "response head exceeds maximum size")
		case io.EOF:
			return nil, werr.Wrap(werr.RemoteClosed, "connection closed before response head", io.EOF)
		default:
			return nil, werr.Wrap(werr.IO, "read response head", err)
		}
	}
}
