package corehttp

import (
	"crypto/tls"
	"net"
	"sync/atomic"
	"time"

	"github.com/corehttpio/corehttp/h2"
	"github.com/corehttpio/corehttp/internal/werr"
)

// DialTimeout bounds how long Client.Do waits to establish a new
// connection before giving up. Connection establishment itself — the
// actual dialing and TLS handshake — is the one piece of transport setup
// this convenience type still has to perform somewhere, since a caller just
// wants to hand it a URL.
var DialTimeout = 10 * time.Second

// Client is a bare single-connection-per-call convenience wrapper: it
// dials, negotiates a protocol, performs one request, and closes. It
// exists for callers who don't need pooling or redirect-following; those
// live in the rdr package, layered on top of Connection rather than Client,
// since a connection pool and a redirect-following driver are both policy
// decisions a minimal core has no business making for every caller.
type Client struct {
	// TLSConfig is used for https:// targets. A nil value uses Go's
	// default configuration with NextProtos set to negotiate h2 via ALPN.
	TLSConfig *tls.Config

	DecodeContentEncoding bool
	Charset               string
	Logger                Logger
}

// Do performs req against a freshly dialed connection. The caller drains
// resp.Body to let the connection be torn down cleanly; Client does not
// pool connections across calls (see rdr.Pool for that).
func (c *Client) Do(req *Request) (*Response, error) {
	conn, negotiatedH2, err := c.dial(req)
	if err != nil {
		return nil, err
	}

	conn2 := NewConnectionFromDialedConn(conn, negotiatedH2, c.TLSConfig)
	conn2.DecodeContentEncoding = c.DecodeContentEncoding
	conn2.Charset = c.Charset
	conn2.Logger = c.Logger

	return conn2.Do(req)
}

// NewConnectionFromDialedConn builds a Connection around an already-dialed
// net.Conn, choosing H1 or H2 based on negotiatedH2 (the caller's own ALPN
// check, e.g. tlsConn.ConnectionState().NegotiatedProtocol == "h2"). For H2
// it hands conn to the adapter as-is instead of dialing a second one;
// tlsConfig is only used if http2.Transport later decides it needs another
// connection to the same origin. rdr.Pool uses this directly so pooled
// connections get the same H1/H2 dispatch Client.Do does.
func NewConnectionFromDialedConn(conn net.Conn, negotiatedH2 bool, tlsConfig *tls.Config) *Connection {
	if negotiatedH2 {
		return NewH2Connection(reuseThenDial(conn, tlsConfig))
	}
	return NewH1Connection(conn)
}

// NegotiatedH2 reports whether conn is a *tls.Conn whose ALPN handshake
// settled on "h2". Non-TLS connections (including connections that don't
// wrap crypto/tls directly, e.g. a test net.Conn) always report false.
func NegotiatedH2(conn net.Conn) bool {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return false
	}
	return tlsConn.ConnectionState().NegotiatedProtocol == h2ALPNProtoID
}

// dial establishes the transport connection for req.URL, returning whether
// ALPN negotiated h2. For http:// targets h2 is never negotiated: this
// core doesn't implement the cleartext h2c upgrade dance.
func (c *Client) dial(req *Request) (net.Conn, bool, error) {
	addr := req.URL.Host
	if req.URL.Port() == "" {
		if req.URL.Scheme == "https" {
			addr = net.JoinHostPort(req.URL.Hostname(), "443")
		} else {
			addr = net.JoinHostPort(req.URL.Hostname(), "80")
		}
	}

	if req.URL.Scheme != "https" {
		conn, err := net.DialTimeout("tcp", addr, DialTimeout)
		if err != nil {
			return nil, false, werr.Wrap(werr.IO, "dial", err)
		}
		return conn, false, nil
	}

	cfg := c.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if len(cfg.NextProtos) == 0 {
		cfg = cfg.Clone()
		cfg.NextProtos = []string{"h2", "http/1.1"}
	}

	dialer := &net.Dialer{Timeout: DialTimeout}
	tlsConn, err := tls.DialWithDialer(dialer, "tcp", addr, cfg)
	if err != nil {
		return nil, false, werr.Wrap(werr.IO, "tls dial", err)
	}
	return tlsConn, NegotiatedH2(tlsConn), nil
}

const h2ALPNProtoID = "h2"

// reuseThenDial returns a h2.DialFunc that hands back conn the first time
// it's called, then falls back to a fresh TLS dial for any subsequent call
// http2.Transport makes (e.g. it decides it wants a second connection to
// the same origin under load).
func reuseThenDial(conn net.Conn, tlsConfig *tls.Config) h2.DialFunc {
	var used int32
	return func(network, addr string, cfg *tls.Config) (net.Conn, error) {
		if atomic.CompareAndSwapInt32(&used, 0, 1) {
			return conn, nil
		}
		if cfg == nil {
			cfg = tlsConfig
		}
		return tls.Dial(network, addr, cfg)
	}
}
