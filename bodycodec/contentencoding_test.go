package bodycodec

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestParseContentEncoding(t *testing.T) {
	cases := []struct {
		in   string
		want ContentEncoding
	}{
		{"", Identity},
		{"identity", Identity},
		{"gzip", Gzip},
		{"x-gzip", Gzip},
		{"br", Unknown},
		{"deflate", Unknown},
	}
	for _, c := range cases {
		if got := ParseContentEncoding([]byte(c.in)); got != c.want {
			t.Errorf("ParseContentEncoding(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestEncodeThenDecodeRoundTrip(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog, repeated a few times, repeated a few times")

	encoded, err := io.ReadAll(NewEncodeReader(bytes.NewReader(want)))
	if err != nil {
		t.Fatalf("unexpected error encoding: %v", err)
	}

	// Verify it's actually valid gzip by decoding with the standard
	// pooled path this package also uses for responses.
	dr, err := NewDecodeReader(bytes.NewReader(encoded), Gzip, []byte("gzip"), nil)
	if err != nil {
		t.Fatalf("unexpected error constructing decode reader: %v", err)
	}
	got, err := io.ReadAll(dr)
	if err != nil {
		t.Fatalf("unexpected error decoding: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestNewDecodeReaderIdentity(t *testing.T) {
	r, err := NewDecodeReader(bytes.NewReader([]byte("plain")), Identity, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "plain" {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestNewDecodeReaderUnknownWarnsAndPassesThrough(t *testing.T) {
	var warned string
	warn := func(format string, args ...any) { warned = format }
	r, err := NewDecodeReader(bytes.NewReader([]byte("raw bytes")), Unknown, []byte("br"), warn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "raw bytes" {
		t.Fatalf("unrecognized encoding must pass through unchanged, got %q", got)
	}
	if warned == "" {
		t.Fatalf("expecting a warning for an unrecognized content-encoding")
	}
}

func TestNewDecodeReaderGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("gzipped payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := NewDecodeReader(&buf, Gzip, []byte("gzip"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "gzipped payload" {
		t.Fatalf("unexpected body: %q", got)
	}
}
