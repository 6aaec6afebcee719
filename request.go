package corehttp

import (
	"bytes"
	"io"
	"net/url"
	"time"

	"github.com/corehttpio/corehttp/bodycodec"
	"github.com/corehttpio/corehttp/internal/werr"
)

// Request is an outgoing HTTP request head plus an optional fixed body.
// Parsing the request-target itself (percent-decoding, relative resolution,
// query construction) is left to net/url and to the rdr package's
// convenience layer; Request only needs a parsed *url.URL and a method.
type Request struct {
	Method string
	URL    *url.URL
	Header Header

	// Body is the request body, or nil for a bodyless request (GET, HEAD,
	// or any method the caller didn't attach a body to).
	Body []byte

	// BodyReader, when set, replaces Body with a streamed source of unknown
	// length: Connection.Do reads from it incrementally instead of
	// buffering it up front, and the wire body is sent chunked (RFC 7230
	// §4.1) since there is no length to put in Content-Length. Setting
	// BodyReader takes priority over Body.
	BodyReader io.Reader

	// Deadline, when non-zero, bounds how long Connection.Do waits for this
	// request to complete. Past it, Do returns ErrTimeout while the request
	// keeps running against the connection in the background — the same
	// trade-off a slow upstream forces regardless of who gave up waiting on
	// this side first.
	Deadline time.Time
}

// NewRequest builds a Request for method and rawURL, validating only that
// rawURL parses and names a scheme this core understands (http or https;
// scheme-to-transport dispatch itself lives in Connection).
func NewRequest(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, werr.Wrap(werr.BadURL, "parse request URL", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, werr.New(werr.UnknownScheme, "unsupported scheme "+u.Scheme)
	}
	if method == "" {
		method = strGET
	}
	return &Request{Method: method, URL: u}, nil
}

// SetBody attaches a fixed-length body, setting Content-Length unless the
// caller has already requested chunked transfer encoding via
// Header.SetTransferEncodingChunked.
func (r *Request) SetBody(body []byte) {
	r.Body = body
	if !r.Header.TransferEncodingChunked() {
		r.Header.SetContentLength(int64(len(body)))
	}
}

// SetGzipBody gzip-compresses body at bodycodec.CompressFast and attaches
// the result as the request body with Content-Encoding: gzip set — the
// encode-direction counterpart to the response path's gzip decode. Most
// servers don't expect a compressed request body; this exists for the
// minority that do (bulk ingest endpoints, some proxies).
func (r *Request) SetGzipBody(body []byte) error {
	compressed, err := io.ReadAll(bodycodec.NewEncodeReader(bytes.NewReader(body)))
	if err != nil {
		return werr.Wrap(werr.IO, "gzip-compress request body", err)
	}
	r.Header.SetContentEncoding("gzip")
	r.SetBody(compressed)
	return nil
}

// SetBodyReader attaches a streamed body source whose length isn't known
// up front, clearing any previously-set fixed Body and switching the
// request to Transfer-Encoding: chunked.
func (r *Request) SetBodyReader(body io.Reader) {
	r.Body = nil
	r.BodyReader = body
	r.Header.SetTransferEncodingChunked()
}

// requestTarget returns the origin-form request-target ("/path?query"),
// falling back to "/" for an empty path, matching RFC 7230 §5.3.1.
func (r *Request) requestTarget() string {
	rt := r.URL.RequestURI()
	if rt == "" {
		return "/"
	}
	return rt
}

func (r *Request) hostHeader() string {
	if h := r.Header.Get(string(strHost)); h != "" {
		return h
	}
	return r.URL.Host
}
