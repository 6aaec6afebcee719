package h2

import (
	"bytes"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
)

func TestNewAdapterWiresDialTLS(t *testing.T) {
	called := false
	dial := func(network, addr string, cfg *tls.Config) (net.Conn, error) {
		called = true
		return nil, errors.New("boom")
	}
	a := NewAdapter(dial)
	if a.tr.DialTLS == nil {
		t.Fatalf("expecting DialTLS to be set")
	}
	if !a.tr.AllowHTTP {
		t.Fatalf("expecting AllowHTTP to be set so a plaintext dial still works")
	}
	if _, err := a.tr.DialTLS("tcp", "example.com:443", nil); err == nil || !called {
		t.Fatalf("expecting the supplied dial func to be invoked")
	}
}

func TestNewAdapterNilDialLeavesDefaultDialTLS(t *testing.T) {
	a := NewAdapter(nil)
	if a.tr.DialTLS != nil {
		t.Fatalf("expecting DialTLS to be left nil when no dial func is supplied")
	}
}

func TestLeftoverReaderServesBufferedSliceFirst(t *testing.T) {
	l := newLeftoverReader(strings.NewReader("rest-of-stream"))
	l.leftover = []byte("buffered-")

	buf := make([]byte, 9)
	n, err := l.Read(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(buf[:n]) != "buffered-" {
		t.Fatalf("unexpected read: %q", buf[:n])
	}

	rest, err := io.ReadAll(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(rest) != "rest-of-stream" {
		t.Fatalf("unexpected remaining read: %q", rest)
	}
}

func TestLeftoverReaderPartialConsumeKeepsRemainder(t *testing.T) {
	l := newLeftoverReader(strings.NewReader(""))
	l.leftover = []byte("abcdef")

	small := make([]byte, 2)
	n, err := l.Read(small)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(small[:n]) != "ab" {
		t.Fatalf("unexpected read: %q", small[:n])
	}
	if string(l.leftover) != "cdef" {
		t.Fatalf("unexpected leftover remaining: %q", l.leftover)
	}
}

type fakeReadCloser struct {
	io.Reader
	closed bool
}

func (f *fakeReadCloser) Close() error {
	f.closed = true
	return nil
}

func TestReceiveStreamCloseDelegatesToUnderlyingBody(t *testing.T) {
	body := &fakeReadCloser{Reader: bytes.NewReader([]byte("payload"))}
	rs := ReceiveStream(body)

	got, err := io.ReadAll(rs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("unexpected body: %q", got)
	}
	if err := rs.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !body.closed {
		t.Fatalf("expecting Close to delegate to the underlying body")
	}
}
