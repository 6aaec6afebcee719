package h1_test

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/corehttpio/corehttp/h1"
)

func TestSendRequestExpectContinueWaitsForInterimResponse(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		br := bufio.NewReader(serverConn)
		if _, err := readRequestHead(br); err != nil {
			return
		}
		if _, err := serverConn.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n")); err != nil {
			return
		}
		body := make([]byte, 5)
		if _, err := io.ReadFull(br, body); err != nil {
			return
		}
		if string(body) != "hello" {
			t.Errorf("unexpected request body: %q", body)
			return
		}
		_, _ = serverConn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nOK"))
	}()

	eng := h1.NewEngine(clientConn)
	head := []byte("POST /upload HTTP/1.1\r\nHost: example.com\r\nExpect: 100-continue\r\nContent-Length: 5\r\n\r\n")

	done := make(chan struct{})
	var rawHead []byte
	var handle *h1.Handle
	var err error
	go func() {
		defer close(done)
		rawHead, handle, err = eng.SendRequestExpectContinue(head, bytes.NewReader([]byte("hello")))
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for SendRequestExpectContinue")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(rawHead) == "" {
		t.Fatalf("expecting a non-empty response head")
	}
	body := make([]byte, 2)
	if _, err := io.ReadFull(handle.BodyReader(), body); err != nil {
		t.Fatalf("unexpected error reading response body: %v", err)
	}
	if string(body) != "OK" {
		t.Fatalf("unexpected response body: %q", body)
	}
	handle.Reclaim(true)
}

func TestSendRequestExpectContinueProceedsAfterTimeout(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		br := bufio.NewReader(serverConn)
		if _, err := readRequestHead(br); err != nil {
			return
		}
		// No interim 100 response: reads the body directly, as a server
		// that doesn't understand Expect: 100-continue would.
		body := make([]byte, 5)
		if _, err := io.ReadFull(br, body); err != nil {
			return
		}
		if string(body) != "hello" {
			t.Errorf("unexpected request body: %q", body)
			return
		}
		_, _ = serverConn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nOK"))
	}()

	eng := h1.NewEngine(clientConn)
	head := []byte("POST /upload HTTP/1.1\r\nHost: example.com\r\nExpect: 100-continue\r\nContent-Length: 5\r\n\r\n")

	rawHead, handle, err := eng.SendRequestExpectContinue(head, bytes.NewReader([]byte("hello")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(rawHead) == "" {
		t.Fatalf("expecting a non-empty response head")
	}
	body := make([]byte, 2)
	if _, err := io.ReadFull(handle.BodyReader(), body); err != nil {
		t.Fatalf("unexpected error reading response body: %v", err)
	}
	if string(body) != "OK" {
		t.Fatalf("unexpected response body: %q", body)
	}
	handle.Reclaim(true)
}
