/*
Package corehttp provides the core of an HTTP/1.1 and HTTP/2 client that
speaks both protocols through a single Connection/Request/Response/Body API.

The hard engineering lives in two places:

  - The HTTP/1.1 protocol engine (package h1): a cooperative, task-driven
    state machine that multiplexes request submission, request-body
    streaming, response-header parsing and response-body streaming over a
    single connection while preserving request ordering and enabling
    keep-alive reuse.
  - The body/codec pipeline (this package and package bodycodec): a
    pull-based byte stream that composes a transport-level reader
    (chunked/content-length/until-EOF) with optional gzip decoding and
    optional charset transcoding, resolved lazily once response headers are
    known.

Connection itself does not dial, negotiate ALPN, manage a cookie jar, or
decide a redirect/pooling policy: those are the caller's responsibility, or
live in the companion rdr package. Connection consumes an already-established
net.Conn (HTTP/1.1) or dial function for golang.org/x/net/http2 (HTTP/2) and
exposes Do as a unified send-request/receive-response call. Client is a
minimal convenience wrapper that does dial, for callers who don't want to
manage connection lifecycle or pooling themselves.
*/
package corehttp
