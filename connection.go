package corehttp

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/corehttpio/corehttp/bodycodec"
	"github.com/corehttpio/corehttp/h1"
	"github.com/corehttpio/corehttp/h2"
	"github.com/corehttpio/corehttp/internal/werr"
)

// protoVariant names which wire protocol a Connection drives.
type protoVariant int

const (
	protoH1 protoVariant = iota
	protoH2
)

// Connection is the facade unifying HTTP/1.1 and HTTP/2 behind one
// send-request/receive-response API. Callers never see h1.Engine or
// h2.Adapter directly.
type Connection struct {
	variant protoVariant
	h1eng   *h1.Engine
	h2ad    *h2.Adapter

	// DecodeContentEncoding controls whether Body.Configure decompresses a
	// recognized Content-Encoding automatically. Defaults true.
	DecodeContentEncoding bool

	// Charset, when non-empty, is applied to every response body that
	// doesn't declare its own via Content-Type's charset parameter. Most
	// callers leave this empty and rely on per-response detection performed
	// before Body.Configure is called.
	Charset string

	Logger Logger
}

// NewH1Connection wraps an established connection (already dialed, and
// already past any TLS handshake) for HTTP/1.1 use.
func NewH1Connection(conn net.Conn) *Connection {
	return &Connection{variant: protoH1, h1eng: h1.NewEngine(conn), DecodeContentEncoding: true}
}

// NewH2Connection wraps an HTTP/2 transport; dial is used by the
// underlying http2.Transport to open additional connections if it decides
// it needs one (h2 permits connection reuse across a coalesced set of
// origins).
func NewH2Connection(dial h2.DialFunc) *Connection {
	return &Connection{variant: protoH2, h2ad: h2.NewAdapter(dial), DecodeContentEncoding: true}
}

// Close tears down an HTTP/1.1 connection, failing any in-flight or queued
// request with err. On an HTTP/2 connection it does nothing: in-flight
// requests are not interrupted.
func (c *Connection) Close(err error) {
	if c.variant == protoH1 {
		c.h1eng.Close(err)
	}
	// http2.Transport connections are closed by the underlying net.Conn's
	// lifecycle; nothing additional to do on the adapter itself.
}

// Do sends req and returns its response head with a Body ready to be read
// (or Configure'd first). It defaults Content-Length/Transfer-Encoding: a
// request with a known, fixed body gets Content-Length; a request with a
// body but no predetermined length (a caller-provided io.Reader without a
// length) gets chunked Transfer-Encoding; a bodyless request gets neither.
func (c *Connection) Do(req *Request) (*Response, error) {
	if req.Deadline.IsZero() {
		return c.do(req)
	}
	return c.doDeadline(req)
}

func (c *Connection) do(req *Request) (*Response, error) {
	switch c.variant {
	case protoH2:
		return c.doH2(req)
	default:
		return c.doH1(req)
	}
}

// doDeadline races c.do against req.Deadline, the same goroutine-plus-timer
// pattern used elsewhere for bounding a blocking call: the request keeps
// running in its own goroutine
// even past the deadline (it still holds this connection's H1 ticket, and
// stopping it mid-flight would require tearing down the connection), but
// the caller gets ErrTimeout back as soon as the clock runs out.
func (c *Connection) doDeadline(req *Request) (*Response, error) {
	timeout := time.Until(req.Deadline)
	if timeout <= 0 {
		return nil, ErrTimeout
	}

	type result struct {
		resp *Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := c.do(req)
		ch <- result{resp: resp, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (c *Connection) doH1(req *Request) (*Response, error) {
	c.applyDefaults(req)

	head := c.serializeHead(req)
	var rawHead []byte
	var handle *h1.Handle
	var err error
	switch {
	case req.BodyReader != nil:
		rawHead, handle, err = c.sendStreamed(head, req.BodyReader)
	case req.Header.ExpectsContinue():
		rawHead, handle, err = c.h1eng.SendRequestExpectContinue(head, bodyReaderFor(req))
	default:
		rawHead, handle, err = c.h1eng.SendRequest(head, bodyReaderFor(req))
	}
	if err != nil {
		return nil, err
	}

	respHead, err := ParseResponseHead(rawHead)
	if err != nil {
		return nil, err
	}

	cl, hasCL := respHead.Header.ContentLength()
	chunked := respHead.Header.TransferEncodingChunked()
	// A response to a HEAD request, or a 204/304, never has a body
	// regardless of what the headers claim (RFC 7230 §3.3.3); treat it as
	// a zero-length content-length body so callers can still call
	// Body.Read and get a clean EOF.
	if req.Method == strHEAD || respHead.StatusCode == 204 || respHead.StatusCode == 304 {
		chunked = false
		cl, hasCL = 0, true
	}

	limiter := bodycodec.SelectLimiter(handle.BodyReader(), chunked, cl, hasCL)
	reusable := c.keepAliveDecision(req, respHead, limiter)
	body := newBody(limiter, h1Reclaimer{handle: handle, reusable: reusable})
	body.Warn = c.logf
	if err := body.Configure(&respHead.Header, c.DecodeContentEncoding, c.resolveCharset(respHead)); err != nil {
		return nil, err
	}

	return &Response{Head: respHead, Body: body}, nil
}

// resolveCharset picks the charset a response body should be transcoded
// from: the Content-Type header's charset parameter takes priority over
// the Connection-wide default.
func (c *Connection) resolveCharset(head *ResponseHead) string {
	if ct := head.Header.ContentType(); ct != nil {
		if cs := charsetFromContentType(ct); cs != "" {
			return cs
		}
	}
	return c.Charset
}

// h1Reclaimer adapts a *h1.Handle to the reclaimer interface, folding in
// the keep-alive decision computed once the response head is known: the
// Limiter's own clean-termination signal still gates reuse (a body that
// dies mid-stream can never be reused even if headers said keep-alive).
type h1Reclaimer struct {
	handle   *h1.Handle
	reusable bool
}

func (r h1Reclaimer) Reclaim(terminatedCleanly bool) {
	r.handle.Reclaim(r.reusable && terminatedCleanly)
}

// keepAliveDecision: reuse requires the limiter to be able to terminate
// cleanly, neither side sent Connection: close, and for HTTP/1.0 responses
// an explicit Connection: keep-alive — HTTP/1.0 without an explicit
// keep-alive is treated as non-reusable rather than assumed persistent.
func (c *Connection) keepAliveDecision(req *Request, resp *ResponseHead, limiter bodycodec.Limiter) bool {
	if !limiter.TerminatesCleanly() {
		return false
	}
	if req.Header.ConnectionClose() || resp.Header.ConnectionClose() {
		return false
	}
	if resp.IsHTTP10() && !resp.Header.ConnectionKeepAlive() {
		return false
	}
	return true
}

func (c *Connection) applyDefaults(req *Request) {
	if req.Header.Get(string(strHost)) == "" {
		req.Header.Set(string(strHost), req.hostHeader())
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", string(defaultUserAgent))
	}
	if req.BodyReader != nil {
		req.Header.SetTransferEncodingChunked()
		return
	}
	if req.Body != nil {
		if !req.Header.TransferEncodingChunked() {
			if _, ok := req.Header.ContentLength(); !ok {
				req.Header.SetContentLength(int64(len(req.Body)))
			}
		}
	}
}

func (c *Connection) serializeHead(req *Request) []byte {
	buf := acquireByteBuffer()
	defer releaseByteBuffer(buf)

	buf.WriteString(req.Method)
	buf.WriteByte(' ')
	buf.WriteString(req.requestTarget())
	buf.WriteByte(' ')
	buf.Write(strHTTP11)
	buf.Write(strCRLF)

	w := bufio.NewWriter(buf)
	_ = req.Header.writeTo(w)
	_ = w.Flush()
	buf.Write(strCRLF)

	out := make([]byte, len(buf.B))
	copy(out, buf.B)
	return out
}

// sendStreamed drains src onto the wire via the engine's incremental
// SendStream instead of reading it into memory first, for a request whose
// body length isn't known up front (req.BodyReader). The copy runs on this
// goroutine; the engine's own goroutine drains the other end of the pipe
// and reports the response head once it's read.
func (c *Connection) sendStreamed(head []byte, src io.Reader) ([]byte, *h1.Handle, error) {
	stream, resultCh := c.h1eng.OpenStream(head)
	if _, err := io.Copy(stream, src); err != nil {
		_ = stream.CloseWithError(err)
		result := <-resultCh
		if result.Err != nil {
			return nil, nil, result.Err
		}
		return nil, nil, werr.Wrap(werr.IO, "copy streamed request body", err)
	}
	if err := stream.Close(); err != nil {
		result := <-resultCh
		if result.Err != nil {
			return nil, nil, result.Err
		}
		return nil, nil, werr.Wrap(werr.IO, "close streamed request body", err)
	}
	result := <-resultCh
	return result.RawHead, result.Handle, result.Err
}

// bodyReaderFor returns nil (the untyped io.Reader nil, not a typed nil
// pointer boxed in an interface) for a bodyless request, so h1.Engine's
// `if body != nil` check behaves correctly.
func bodyReaderFor(req *Request) io.Reader {
	if req.Body == nil {
		return nil
	}
	return bytes.NewReader(req.Body)
}

func (c *Connection) doH2(req *Request) (*Response, error) {
	httpReq, err := toHTTPRequest(req)
	if err != nil {
		return nil, err
	}
	handle, resultCh := c.h2ad.SendRequest(httpReq)
	switch {
	case req.BodyReader != nil:
		if _, err := io.Copy(handle, req.BodyReader); err != nil {
			handle.CloseWithError(err)
			return nil, werr.Wrap(werr.IO, "copy streamed http2 request body", err)
		}
	case req.Body != nil:
		if _, err := handle.Write(req.Body); err != nil {
			handle.CloseWithError(err)
			return nil, werr.Wrap(werr.IO, "write http2 request body", err)
		}
	}
	if err := handle.Close(); err != nil {
		return nil, werr.Wrap(werr.IO, "close http2 request body", err)
	}
	result := <-resultCh
	if result.Err != nil {
		return nil, result.Err
	}
	return c.fromHTTPResponse(result.Response), nil
}

func toHTTPRequest(req *Request) (*http.Request, error) {
	hr, err := http.NewRequest(req.Method, req.URL.String(), nil)
	if err != nil {
		return nil, werr.Wrap(werr.BadURL, "build http2 request", err)
	}
	req.Header.Range(func(name, value []byte) bool {
		hr.Header.Add(string(name), string(value))
		return true
	})
	return hr, nil
}

func (c *Connection) fromHTTPResponse(hr *http.Response) *Response {
	head := &ResponseHead{
		Proto:      []byte(hr.Proto),
		StatusCode: hr.StatusCode,
	}
	for name, values := range hr.Header {
		for _, v := range values {
			head.Header.AddBytes([]byte(name), []byte(v))
		}
	}
	stream := h2.ReceiveStream(hr.Body)
	limiter := h2BodyLimiter{rc: stream}
	body := newBody(limiter, h2Reclaimer{rc: stream})
	body.Warn = c.logf
	_ = body.Configure(&head.Header, c.DecodeContentEncoding, c.resolveCharset(head))
	return &Response{Head: head, Body: body}
}

// h2BodyLimiter adapts an h2 receive stream (which always terminates
// cleanly via HTTP/2's own END_STREAM framing, never relying on the
// transport closing) to the bodycodec.Limiter interface.
type h2BodyLimiter struct {
	rc interface {
		Read([]byte) (int, error)
		Close() error
	}
}

func (l h2BodyLimiter) Read(p []byte) (int, error) { return l.rc.Read(p) }
func (l h2BodyLimiter) TerminatesCleanly() bool     { return true }

// h2Reclaimer closes the underlying HTTP/2 response stream once the body
// finishes. Unlike H1, a finished h2 body never gates reuse of the
// connection itself: http2.Transport already multiplexes many requests
// over one connection, so there is no keep-alive decision to make here.
type h2Reclaimer struct {
	rc io.Closer
}

func (r h2Reclaimer) Reclaim(bool) { _ = r.rc.Close() }
