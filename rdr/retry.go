package rdr

import (
	"errors"

	"github.com/corehttpio/corehttp"
)

// isIdempotent reports whether req is safe to silently replay against a
// second connection: only GET/HEAD/PUT have no side effect the first,
// dead-connection attempt could already have triggered server-side.
func isIdempotent(req *corehttp.Request) bool {
	switch req.Method {
	case "GET", "HEAD", "PUT":
		return true
	default:
		return false
	}
}

// Do acquires a pooled connection for addr and performs req, handing the
// connection straight back to the pool once the send/response-head phase
// succeeds (the underlying h1 engine's own ticket queue, not Pool, is what
// serializes a second caller's use of the same Connection until this
// response's Body is fully reclaimed — see Connection.Do). If the attempt
// fails with an I/O or remote-closed error — the signature of a pooled
// connection that died silently between Release and this Acquire — or with
// an error that is not a *corehttp.Error (such as one from Pool.Dial), and
// req is idempotent, Do retries exactly once with a second Acquire: the
// failed connection has been closed, so that is another idle pooled
// connection if one exists, otherwise a fresh dial.
func Do(pool *Pool, addr string, req *corehttp.Request) (*corehttp.Response, error) {
	resp, err := attempt(pool, addr, req)
	if err == nil {
		return resp, nil
	}
	if !isRetryable(err) || !isIdempotent(req) {
		return nil, err
	}
	return attempt(pool, addr, req)
}

func attempt(pool *Pool, addr string, req *corehttp.Request) (*corehttp.Response, error) {
	conn, err := pool.Acquire(addr)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Do(req)
	if err != nil {
		pool.Release(conn, false)
		return nil, err
	}

	// The connection is handed back immediately: whether it is actually
	// still usable (keep-alive vs. close) was already decided inside
	// Connection.Do and is enforced by the h1 engine's ticket queue, which
	// blocks a subsequent SendRequest on this same Connection until resp.Body
	// reaches a clean EOF, and refuses it outright if the connection turned
	// out non-reusable. Pool only needs to track how many Connections exist
	// for addr, not when each one's body finishes.
	pool.Release(conn, true)
	return resp, nil
}

func isRetryable(err error) bool {
	var e *corehttp.Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Kind {
	case corehttp.KindIO, corehttp.KindRemoteClosed:
		return true
	default:
		return false
	}
}
