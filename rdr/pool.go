// Package rdr layers the conveniences the core deliberately leaves out —
// redirect-following and per-origin connection pooling — on top of
// corehttp.Connection.
package rdr

import (
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/corehttpio/corehttp"
)

// DefaultMaxConnsPerHost bounds connections opened to a single origin:
// enough headroom for a bursty client without unbounded fan-out to one
// origin.
const DefaultMaxConnsPerHost = 512

// idleTimeout is how long a pooled connection can sit idle before the
// cleaner closes it rather than keeping it warm.
const idleTimeout = 10 * time.Second

// Pool holds idle, reusable connections to a single origin (scheme + host
// + port), handing them out to callers and reclaiming them once a request
// completes with a connection the facade says is still usable.
//
// It is grounded on HostClient's acquireConn/releaseConn/connsCleaner
// (client.go), adapted from fasthttp's pooled *clientConn wrapper around a
// raw net.Conn to pooling corehttp.Connection directly, since Connection
// already owns the buffered reader/writer pair that was the expensive part
// to re-create.
type Pool struct {
	// Dial opens a new transport connection to addr (host:port). Callers
	// typically supply one built around crypto/tls for https origins and
	// plain net.Dial for http origins.
	Dial func(addr string) (net.Conn, error)

	// TLSConfig is handed to each new HTTP/2 Connection for any further
	// TLS dials http2.Transport makes. The choice between H1 and H2 is made
	// from the connection Dial returns (corehttp.NegotiatedH2), not from
	// this field.
	TLSConfig *tls.Config

	// MaxConns bounds how many connections this pool opens to its origin
	// at once. Zero means DefaultMaxConnsPerHost.
	MaxConns int

	mu         sync.Mutex
	idle       []*pooledConn
	openCount  int
	cleanerRun bool
}

type pooledConn struct {
	conn       *corehttp.Connection
	lastUsedAt time.Time
}

// Acquire returns a pooled connection if one is idle, otherwise dials a
// new one (bounded by MaxConns), matching acquireConn's "try-to-reuse,
// else-create-if-under-cap, else-ErrNoFreeConns" shape.
func (p *Pool) Acquire(addr string) (*corehttp.Connection, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		pc := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return pc.conn, nil
	}
	max := p.MaxConns
	if max <= 0 {
		max = DefaultMaxConnsPerHost
	}
	if p.openCount >= max {
		p.mu.Unlock()
		return nil, corehttp.NewError(corehttp.KindIO, "rdr: no free connections to "+addr)
	}
	p.openCount++
	startCleaner := !p.cleanerRun
	p.cleanerRun = true
	p.mu.Unlock()

	if startCleaner {
		go p.cleanIdleLoop()
	}

	conn, err := p.Dial(addr)
	if err != nil {
		p.mu.Lock()
		p.openCount--
		p.mu.Unlock()
		return nil, err
	}
	return corehttp.NewConnectionFromDialedConn(conn, corehttp.NegotiatedH2(conn), p.TLSConfig), nil
}

// Release returns conn to the pool if reusable is true; otherwise it is
// closed and the pool's open-connection budget is freed for a new dial.
func (p *Pool) Release(conn *corehttp.Connection, reusable bool) {
	if !reusable {
		conn.Close(nil)
		p.mu.Lock()
		p.openCount--
		p.mu.Unlock()
		return
	}
	p.mu.Lock()
	p.idle = append(p.idle, &pooledConn{conn: conn, lastUsedAt: time.Now()})
	p.mu.Unlock()
}

// cleanIdleLoop periodically evicts connections idle longer than
// idleTimeout, exactly as HostClient.connsCleaner does, stopping itself
// once the pool has nothing left open.
func (p *Pool) cleanIdleLoop() {
	for {
		time.Sleep(idleTimeout)

		p.mu.Lock()
		cutoff := time.Now().Add(-idleTimeout)
		kept := p.idle[:0]
		for _, pc := range p.idle {
			if pc.lastUsedAt.Before(cutoff) {
				pc.conn.Close(nil)
				p.openCount--
			} else {
				kept = append(kept, pc)
			}
		}
		p.idle = kept
		stop := p.openCount == 0
		if stop {
			p.cleanerRun = false
		}
		p.mu.Unlock()

		if stop {
			return
		}
	}
}
