package h1

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// Wire-level tuning constants, duplicated from the connection facade's
// defaults rather than imported, since h1 must not depend on the root
// package (the root package depends on h1 to drive Connection).
const (
	defaultReadBufferSize  = 4096
	defaultWriteBufferSize = 4096

	// defaultMaxHeaderBytes bounds accumulated response-header bytes before
	// readHead gives up, so a server that never terminates its headers
	// can't grow this buffer without limit.
	defaultMaxHeaderBytes = 64 * 1024
)

// Inner is the state shared by every task queued against one connection: a
// single buffered reader/writer pair and a ticket queue enforcing that
// tasks own the wire in the order they were submitted — only one task may
// be in the send/wait/receive phase at a time.
//
// Fields are guarded by mu except br/bw/conn, which are only ever touched
// by whichever task currently holds the ticket (nowServing == its seq) —
// actual socket I/O always happens outside the lock.
type Inner struct {
	mu   sync.Mutex
	cond *sync.Cond

	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer

	nextSeq     Seq
	nextToServe Seq // the only seq awaitTurn may currently admit
	nowServing  Seq // 0 means idle; the connection is free for nextToServe

	closed   bool
	closeErr error

	// reusable reflects the keep-alive decision made by the connection
	// facade after the most recently completed task: false once any task
	// (or the transport itself) has signaled the connection must not serve
	// another request.
	reusable bool
}

// NewInner wraps conn with buffered I/O sized per the defaults above.
func NewInner(conn net.Conn) *Inner {
	in := &Inner{
		conn: conn,
		// Sized to defaultMaxHeaderBytes so readHead's growing Peek can
		// always inspect the whole accumulated head without the buffer
		// itself becoming the limiting factor; body reads afterward reuse
		// the same buffered reader.
		br:          bufio.NewReaderSize(conn, defaultMaxHeaderBytes),
		bw:          bufio.NewWriterSize(conn, defaultWriteBufferSize),
		reusable:    true,
		nextToServe: 1,
	}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// nextTicket issues the next Seq, starting at 1.
func (in *Inner) nextTicket() Seq {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.nextSeq++
	return in.nextSeq
}

// awaitTurn blocks until seq is next in line and the connection hasn't
// already failed, then marks it as the connection's current holder.
func (in *Inner) awaitTurn(seq Seq) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	for {
		if in.closed {
			return in.closeErr
		}
		if in.nowServing == 0 && seq == in.nextToServe {
			in.nowServing = seq
			return nil
		}
		in.cond.Wait()
	}
}

// release hands the connection to the next queued ticket, recording
// whether it may still be reused.
func (in *Inner) release(reusable bool) {
	in.mu.Lock()
	in.nowServing = 0
	in.nextToServe++
	in.reusable = in.reusable && reusable
	if !in.reusable {
		in.closed = true
		if in.closeErr == nil {
			in.closeErr = errConnectionNotReusable
		}
		_ = in.conn.Close()
	}
	in.mu.Unlock()
	in.cond.Broadcast()
}

// setReadDeadline and clearReadDeadline bound a single read on the
// underlying connection. Only the current ticket holder ever calls these,
// outside the lock, same as every other conn/br/bw access — see the type
// doc comment.
func (in *Inner) setReadDeadline(d time.Duration) error {
	return in.conn.SetReadDeadline(time.Now().Add(d))
}

func (in *Inner) clearReadDeadline() error {
	return in.conn.SetReadDeadline(time.Time{})
}

// fail marks the connection permanently closed with err, waking every
// blocked waiter so they can return it instead of hanging.
func (in *Inner) fail(err error) {
	in.mu.Lock()
	if !in.closed {
		in.closed = true
		in.closeErr = err
		_ = in.conn.Close()
	}
	in.mu.Unlock()
	in.cond.Broadcast()
}
