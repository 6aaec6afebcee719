package bodycodec

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

func TestSelectLimiterChunkedTakesPriority(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("4\r\nabcd\r\n0\r\n\r\n"))
	l := SelectLimiter(br, true, 100, true)
	if !l.TerminatesCleanly() {
		t.Fatalf("chunked limiter must terminate cleanly")
	}
	got, err := io.ReadAll(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "abcd" {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestSelectLimiterContentLength(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("hello world, trailing garbage"))
	l := SelectLimiter(br, false, 5, true)
	if !l.TerminatesCleanly() {
		t.Fatalf("content-length limiter must terminate cleanly")
	}
	got, err := io.ReadAll(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected body: %q, expected exactly the declared length", got)
	}
}

func TestSelectLimiterContentLengthTruncatedByEOF(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("short"))
	l := SelectLimiter(br, false, 100, true)
	_, err := io.ReadAll(l)
	if err == nil {
		t.Fatalf("expecting an error when the connection closes before content-length is satisfied")
	}
}

func TestSelectLimiterUntilEOF(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("whatever is left"))
	l := SelectLimiter(br, false, 0, false)
	if l.TerminatesCleanly() {
		t.Fatalf("until-EOF limiter must not claim clean termination")
	}
	got, err := io.ReadAll(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "whatever is left" {
		t.Fatalf("unexpected body: %q", got)
	}
}
