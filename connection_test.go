package corehttp

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/corehttpio/corehttp/bodycodec"
	"github.com/corehttpio/corehttp/connpipe"
)

// scriptedServer replies with a fixed response for each request-target it
// sees, in the order requests arrive, until a target with no scripted
// response is requested or the connection closes.
func scriptedServer(conn net.Conn, responses map[string][]byte) {
	br := bufio.NewReader(conn)
	for {
		target, err := readRequestTarget(br)
		if err != nil {
			return
		}
		resp, ok := responses[target]
		if !ok {
			return
		}
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

func readRequestTarget(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	parts := bytes.Split(bytes.TrimRight([]byte(line), "\r\n"), []byte(" "))
	if len(parts) < 2 {
		return "", io.ErrUnexpectedEOF
	}
	target := string(parts[1])
	for {
		l, err := br.ReadString('\n')
		if err != nil {
			return "", err
		}
		if l == "\r\n" {
			return target, nil
		}
	}
}

func newTestRequest(t *testing.T, target string) *Request {
	t.Helper()
	req, err := NewRequest("GET", "http://example.com"+target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return req
}

func TestConnectionSimpleContentLengthResponse(t *testing.T) {
	p := connpipe.New()
	defer p.Close()
	go scriptedServer(p.End2(), map[string][]byte{
		"/plain": []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"),
	})

	conn := NewH1Connection(p.End1())
	resp, err := conn.Do(newTestRequest(t, "/plain"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	body, err := resp.Body.AsString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "hello" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestConnectionChunkedResponse(t *testing.T) {
	p := connpipe.New()
	defer p.Close()
	go scriptedServer(p.End2(), map[string][]byte{
		"/chunked": []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"),
	})

	conn := NewH1Connection(p.End1())
	resp, err := conn.Do(newTestRequest(t, "/chunked"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := resp.Body.AsString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "hello world" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestConnectionKeepAliveReuseAcrossRequests(t *testing.T) {
	p := connpipe.New()
	defer p.Close()
	go scriptedServer(p.End2(), map[string][]byte{
		"/a": []byte("HTTP/1.1 200 OK\r\nContent-Length: 1\r\n\r\nA"),
		"/b": []byte("HTTP/1.1 200 OK\r\nContent-Length: 1\r\n\r\nB"),
	})

	conn := NewH1Connection(p.End1())

	respA, err := conn.Do(newTestRequest(t, "/a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bodyA, err := respA.Body.AsString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bodyA != "A" {
		t.Fatalf("unexpected body: %q", bodyA)
	}

	// The connection must still be usable for a second request once the
	// first response's body was drained to a clean EOF.
	respB, err := conn.Do(newTestRequest(t, "/b"))
	if err != nil {
		t.Fatalf("unexpected error on reused connection: %v", err)
	}
	bodyB, err := respB.Body.AsString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bodyB != "B" {
		t.Fatalf("unexpected body: %q", bodyB)
	}
}

func TestConnectionEarlyAbandonedBodyStillAllowsReuseAfterDiscard(t *testing.T) {
	p := connpipe.New()
	defer p.Close()
	go scriptedServer(p.End2(), map[string][]byte{
		"/a": []byte("HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\nhello there"),
		"/b": []byte("HTTP/1.1 200 OK\r\nContent-Length: 1\r\n\r\nB"),
	})

	conn := NewH1Connection(p.End1())

	respA, err := conn.Do(newTestRequest(t, "/a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The caller only wants the first few bytes; Discard flushes the rest
	// so the connection can still be reclaimed for keep-alive.
	var head [5]byte
	if _, err := io.ReadFull(respA.Body, head[:]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := respA.Body.Discard(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	respB, err := conn.Do(newTestRequest(t, "/b"))
	if err != nil {
		t.Fatalf("unexpected error on reused connection: %v", err)
	}
	bodyB, err := respB.Body.AsString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bodyB != "B" {
		t.Fatalf("unexpected body: %q", bodyB)
	}
}

func TestConnectionCloseForcesNonReusable(t *testing.T) {
	p := connpipe.New()
	defer p.Close()
	go scriptedServer(p.End2(), map[string][]byte{
		"/a": []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nOK"),
	})

	conn := NewH1Connection(p.End1())
	resp, err := conn.Do(newTestRequest(t, "/a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := resp.Body.AsString(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := conn.Do(newTestRequest(t, "/b")); err == nil {
		t.Fatalf("expecting an error issuing a request after Connection: close")
	}
}

func TestConnectionStreamedRequestBodySentChunked(t *testing.T) {
	p := connpipe.New()
	defer p.Close()

	headCh := make(chan []byte, 1)
	bodyCh := make(chan []byte, 1)
	go func() {
		conn := p.End2()
		br := bufio.NewReader(conn)
		var head bytes.Buffer
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			head.WriteString(line)
			if line == "\r\n" {
				break
			}
		}
		headCh <- head.Bytes()
		body, err := io.ReadAll(bodycodec.NewChunkedDecoder(br))
		if err != nil {
			return
		}
		bodyCh <- body
		_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nOK"))
	}()

	conn := NewH1Connection(p.End1())
	req := newTestRequest(t, "/upload")
	req.Method = "POST"
	req.SetBodyReader(bytes.NewReader([]byte("streamed payload")))

	resp, err := conn.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}

	head := <-headCh
	if !bytes.Contains(head, []byte("Transfer-Encoding: chunked")) {
		t.Fatalf("expecting a chunked request head, got %q", head)
	}
	body := <-bodyCh
	if string(body) != "streamed payload" {
		t.Fatalf("unexpected decoded request body: %q", body)
	}
}

func TestConnectionDoDeadlineExpiresBeforeSlowResponse(t *testing.T) {
	p := connpipe.New()
	defer p.Close()
	// No server reply at all: SendRequest blocks forever waiting for a
	// response head, so the deadline is what has to save the caller.

	conn := NewH1Connection(p.End1())
	req := newTestRequest(t, "/slow")
	req.Deadline = time.Now().Add(20 * time.Millisecond)

	_, err := conn.Do(req)
	if err != ErrTimeout {
		t.Fatalf("expecting ErrTimeout, got %v", err)
	}
}

func TestConnectionDoDeadlineNotReachedSucceeds(t *testing.T) {
	p := connpipe.New()
	defer p.Close()
	go scriptedServer(p.End2(), map[string][]byte{
		"/fast": []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nOK"),
	})

	conn := NewH1Connection(p.End1())
	req := newTestRequest(t, "/fast")
	req.Deadline = time.Now().Add(time.Second)

	resp, err := conn.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := resp.Body.AsString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "OK" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestConnectionGzipDecode(t *testing.T) {
	compressed, err := io.ReadAll(bodycodec.NewEncodeReader(bytes.NewReader([]byte("hello gzip"))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw bytes.Buffer
	raw.WriteString("HTTP/1.1 200 OK\r\n")
	raw.WriteString("Content-Encoding: gzip\r\n")
	raw.WriteString("Content-Length: ")
	raw.WriteString(strconv.Itoa(len(compressed)))
	raw.WriteString("\r\n\r\n")
	raw.Write(compressed)

	p := connpipe.New()
	defer p.Close()
	go scriptedServer(p.End2(), map[string][]byte{
		"/gz": raw.Bytes(),
	})

	conn := NewH1Connection(p.End1())
	resp, err := conn.Do(newTestRequest(t, "/gz"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := resp.Body.AsString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "hello gzip" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestConnectionGzipDecodeDisabledPassesThroughRawBytes(t *testing.T) {
	compressed, err := io.ReadAll(bodycodec.NewEncodeReader(bytes.NewReader([]byte("hello gzip"))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw bytes.Buffer
	raw.WriteString("HTTP/1.1 200 OK\r\n")
	raw.WriteString("Content-Encoding: gzip\r\n")
	raw.WriteString("Content-Length: ")
	raw.WriteString(strconv.Itoa(len(compressed)))
	raw.WriteString("\r\n\r\n")
	raw.Write(compressed)

	p := connpipe.New()
	defer p.Close()
	go scriptedServer(p.End2(), map[string][]byte{
		"/gz": raw.Bytes(),
	})

	conn := NewH1Connection(p.End1())
	conn.DecodeContentEncoding = false
	resp, err := conn.Do(newTestRequest(t, "/gz"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := resp.Body.AsBytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(body, compressed) {
		t.Fatalf("expecting the raw compressed bytes when decoding is disabled")
	}
}
