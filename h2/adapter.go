// Package h2 adapts golang.org/x/net/http2's Transport to the same
// send-handle/receive-stream shape the H1 engine exposes, so the
// connection facade above can treat both protocol variants uniformly.
// http2.Transport.RoundTrip is a single blocking call that wants a
// complete *http.Request up front and hands back a complete *http.Response
// whose Body streams lazily; SendRequest below splits that into a
// SendHandle (an io.WriteCloser the caller streams a request body into)
// and a background goroutine that starts the RoundTrip right away, reading
// the request body from the handle as it is written, and reports the
// response through a channel.
package h2

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"

	"golang.org/x/net/http2"

	"github.com/corehttpio/corehttp/internal/werr"
)

// Adapter owns one HTTP/2 connection (an already-negotiated net.Conn,
// typically via ALPN during TLS setup, dialed and negotiated by a
// collaborator — the adapter only needs the resulting connection and the
// fact that it speaks h2).
type Adapter struct {
	tr *http2.Transport
}

// DialFunc mirrors http2.Transport.DialTLS's shape: callers who have
// already completed a TLS handshake (or a cleartext h2c upgrade) supply a
// function that just returns the live connection. net/http2 calls it once
// per new connection the Transport decides it needs.
type DialFunc func(network, addr string, cfg *tls.Config) (net.Conn, error)

// NewAdapter builds an Adapter around a Transport configured to dial via
// dial instead of performing its own TLS handshake — the core never dials
// or negotiates ALPN itself; that is left to the caller that supplies dial.
func NewAdapter(dial DialFunc) *Adapter {
	tr := &http2.Transport{
		AllowHTTP: true,
	}
	if dial != nil {
		tr.DialTLS = dial
	}
	return &Adapter{tr: tr}
}

// SendHandle is the request-body write side, analogous to h1.SendStream.
type SendHandle struct {
	pw *io.PipeWriter
}

func (h *SendHandle) Write(p []byte) (int, error) { return h.pw.Write(p) }
func (h *SendHandle) Close() error                { return h.pw.Close() }
func (h *SendHandle) CloseWithError(err error) error {
	return h.pw.CloseWithError(err)
}

// Result is delivered once after RoundTrip returns.
type Result struct {
	Response *http.Response // Body is the receive stream
	Err      error
}

// SendRequest issues req (whose Body should be nil — the body is written
// through the returned SendHandle instead) and returns immediately with a
// handle to stream the body into and a channel that receives the result
// once headers arrive. req.Body is replaced with the read side of an
// internal pipe.
func (a *Adapter) SendRequest(req *http.Request) (*SendHandle, <-chan Result) {
	pr, pw := io.Pipe()
	req.Body = pr
	result := make(chan Result, 1)
	go func() {
		resp, err := a.tr.RoundTrip(req)
		if err != nil {
			result <- Result{Err: werr.Wrap(werr.IO, "http2 round trip", err)}
			return
		}
		result <- Result{Response: resp}
	}()
	return &SendHandle{pw: pw}, result
}

// leftoverReader serves any bytes held in its single leftover slot before
// reading from src. Reads from src go straight into the caller's buffer, so
// Read itself never stores a remainder in leftover.
type leftoverReader struct {
	src      io.Reader
	leftover []byte
}

func newLeftoverReader(src io.Reader) *leftoverReader { return &leftoverReader{src: src} }

func (l *leftoverReader) Read(p []byte) (int, error) {
	if len(l.leftover) > 0 {
		n := copy(p, l.leftover)
		l.leftover = l.leftover[n:]
		return n, nil
	}
	return l.src.Read(p)
}

// ReceiveStream wraps an *http.Response.Body in a leftoverReader, keeping
// Close delegated to the original body.
func ReceiveStream(body io.ReadCloser) io.ReadCloser {
	return &receiveStream{leftoverReader: newLeftoverReader(body), closer: body}
}

type receiveStream struct {
	*leftoverReader
	closer io.Closer
}

func (r *receiveStream) Close() error { return r.closer.Close() }
