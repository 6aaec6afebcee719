package corehttp

import (
	"bufio"
	"bytes"
	"fmt"
	"net/textproto"
	"strconv"

	"github.com/corehttpio/corehttp/internal/werr"
)

// HeaderField is a single name/value pair, kept in the order it was added.
// Caller headers must be written back out verbatim in insertion order, so
// Header is backed by a slice rather than a map.
type HeaderField struct {
	Name, Value []byte
}

// Header holds an ordered set of header fields, used for both request and
// response heads. It intentionally does not special-case cookies beyond
// treating Set-Cookie/Cookie as ordinary multi-valued fields: cookie jar
// storage and policy are left to a caller-supplied layer above this package.
type Header struct {
	fields             []HeaderField
	disableNormalizing bool
}

// DisableNormalizing turns off canonical-casing of header names added via
// Add/Set, matching a server that insists on a particular wire casing.
func (h *Header) DisableNormalizing() { h.disableNormalizing = true }

func (h *Header) normalize(name string) []byte {
	if h.disableNormalizing {
		return []byte(name)
	}
	return []byte(textproto.CanonicalMIMEHeaderKey(name))
}

// Reset discards all fields.
func (h *Header) Reset() { h.fields = h.fields[:0] }

// Add appends a field, keeping any existing fields with the same name
// (e.g. multiple Set-Cookie headers).
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, HeaderField{Name: h.normalize(name), Value: []byte(value)})
}

// AddBytes is the []byte counterpart of Add, avoiding a string conversion
// when the caller already has a byte slice (e.g. while copying a parsed
// response header).
func (h *Header) AddBytes(name, value []byte) {
	h.fields = append(h.fields, HeaderField{Name: h.normalize(string(name)), Value: value})
}

// Set replaces all fields named name with a single field holding value.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes every field named name.
func (h *Header) Del(name string) {
	n := h.normalize(name)
	out := h.fields[:0]
	for _, f := range h.fields {
		if !bytes.EqualFold(f.Name, n) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	if v := h.PeekBytes([]byte(name)); v != nil {
		return string(v)
	}
	return ""
}

// PeekBytes returns the first value for name without allocating a string,
// or nil if absent.
func (h *Header) PeekBytes(name []byte) []byte {
	n := h.normalizeBytes(name)
	for i := range h.fields {
		if bytes.EqualFold(h.fields[i].Name, n) {
			return h.fields[i].Value
		}
	}
	return nil
}

func (h *Header) normalizeBytes(name []byte) []byte {
	if h.disableNormalizing {
		return name
	}
	return []byte(textproto.CanonicalMIMEHeaderKey(string(name)))
}

// Has reports whether at least one field named name is present.
func (h *Header) Has(name string) bool { return h.PeekBytes([]byte(name)) != nil }

// Len returns the number of fields.
func (h *Header) Len() int { return len(h.fields) }

// Range calls f for every field in insertion order; f must not retain the
// byte slices it is given.
func (h *Header) Range(f func(name, value []byte) bool) {
	for i := range h.fields {
		if !f(h.fields[i].Name, h.fields[i].Value) {
			return
		}
	}
}

// CopyTo appends all of h's fields onto dst, preserving order.
func (h *Header) CopyTo(dst *Header) {
	for _, f := range h.fields {
		name := append([]byte(nil), f.Name...)
		value := append([]byte(nil), f.Value...)
		dst.fields = append(dst.fields, HeaderField{Name: name, Value: value})
	}
}

// ContentLength returns the parsed Content-Length, and whether the header
// was present and well-formed.
func (h *Header) ContentLength() (n int64, ok bool) {
	v := h.PeekBytes(strContentLength)
	if v == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// SetContentLength sets Content-Length and removes any Transfer-Encoding;
// the two are mutually exclusive on the wire.
func (h *Header) SetContentLength(n int64) {
	h.Del(string(strTransferEnc))
	h.Set(string(strContentLength), strconv.FormatInt(n, 10))
}

// TransferEncodingChunked reports whether Transfer-Encoding is exactly
// "chunked" (case-insensitive, surrounding spaces ignored). A list of
// codings such as "gzip, chunked" is not recognized; this core only ever
// emits or expects a bare "chunked".
func (h *Header) TransferEncodingChunked() bool {
	v := h.PeekBytes(strTransferEnc)
	return v != nil && bytes.EqualFold(bytes.TrimSpace(v), strChunked)
}

// SetTransferEncodingChunked sets Transfer-Encoding: chunked and removes
// any Content-Length.
func (h *Header) SetTransferEncodingChunked() {
	h.Del(string(strContentLength))
	h.Set(string(strTransferEnc), string(strChunked))
}

// ContentEncoding returns the raw Content-Encoding value, or nil.
func (h *Header) ContentEncoding() []byte { return h.PeekBytes(strContentEncoding) }

// SetContentEncoding sets Content-Encoding.
func (h *Header) SetContentEncoding(v string) { h.Set(string(strContentEncoding), v) }

// ContentType returns the raw Content-Type value, or nil.
func (h *Header) ContentType() []byte { return h.PeekBytes(strContentType) }

// ConnectionClose reports whether Connection: close was sent.
func (h *Header) ConnectionClose() bool {
	v := h.PeekBytes(strConnection)
	return v != nil && bytes.EqualFold(bytes.TrimSpace(v), strClose)
}

// SetConnectionClose sets Connection: close.
func (h *Header) SetConnectionClose() { h.Set(string(strConnection), string(strClose)) }

// ConnectionKeepAlive reports whether Connection: keep-alive was sent
// explicitly, relevant only for HTTP/1.0 reuse.
func (h *Header) ConnectionKeepAlive() bool {
	v := h.PeekBytes(strConnection)
	return v != nil && bytes.EqualFold(bytes.TrimSpace(v), strKeepAlive)
}

// ExpectsContinue reports whether the caller set Expect: 100-continue,
// asking the connection to hold the request body until the server
// acknowledges the headers (or a bounded wait elapses without one).
func (h *Header) ExpectsContinue() bool {
	v := h.PeekBytes(strExpect)
	return v != nil && bytes.EqualFold(bytes.TrimSpace(v), str100Continue)
}

// SetExpectContinue sets Expect: 100-continue.
func (h *Header) SetExpectContinue() { h.Set(string(strExpect), string(str100Continue)) }

// writeTo serializes fields as "Name: value\r\n" pairs in insertion order.
func (h *Header) writeTo(w *bufio.Writer) error {
	for i := range h.fields {
		if _, err := w.Write(h.fields[i].Name); err != nil {
			return err
		}
		if _, err := w.Write(strColonSp); err != nil {
			return err
		}
		if _, err := w.Write(h.fields[i].Value); err != nil {
			return err
		}
		if _, err := w.Write(strCRLF); err != nil {
			return err
		}
	}
	return nil
}

// ResponseHead is the parsed status line plus headers produced by the H1
// engine's accumulated head block.
type ResponseHead struct {
	Proto      []byte // e.g. "HTTP/1.1"
	StatusCode int
	Reason     []byte
	Header     Header
}

// IsHTTP10 reports whether the status line named HTTP/1.0, which changes
// the default keep-alive semantics: HTTP/1.0 requires an explicit
// Connection: keep-alive to be considered reusable.
func (r *ResponseHead) IsHTTP10() bool { return bytes.Equal(r.Proto, strHTTP10) }

// ParseResponseHead splits a head block into a status line and header
// fields. b is the block as returned by the h1 engine's readHead: the
// status line and header lines, each ending in "\r\n", without the final
// blank line; if a blank line is present, parsing stops there.
func ParseResponseHead(b []byte) (*ResponseHead, error) {
	lineEnd := bytes.Index(b, strCRLF)
	if lineEnd < 0 {
		return nil, werr.New(werr.BadStatus, "missing status line terminator")
	}
	statusLine := b[:lineEnd]
	head := &ResponseHead{}
	if err := parseStatusLine(statusLine, head); err != nil {
		return nil, err
	}

	rest := b[lineEnd+len(strCRLF):]
	for len(rest) > 0 {
		if bytes.HasPrefix(rest, strCRLF) {
			break
		}
		lineEnd = bytes.Index(rest, strCRLF)
		if lineEnd < 0 {
			return nil, werr.New(werr.BadHeader, "truncated header line")
		}
		line := rest[:lineEnd]
		rest = rest[lineEnd+len(strCRLF):]
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, werr.New(werr.BadHeader, fmt.Sprintf("malformed header line %q", line))
		}
		name := bytes.TrimSpace(line[:colon])
		value := bytes.TrimSpace(line[colon+1:])
		head.Header.AddBytes(name, value)
	}
	return head, nil
}

func parseStatusLine(line []byte, head *ResponseHead) error {
	// "HTTP/1.1 200 OK"
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		return werr.New(werr.BadStatus, fmt.Sprintf("malformed status line %q", line))
	}
	head.Proto = append([]byte(nil), line[:sp1]...)
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	var codeStr []byte
	if sp2 < 0 {
		codeStr = rest
		head.Reason = nil
	} else {
		codeStr = rest[:sp2]
		head.Reason = append([]byte(nil), rest[sp2+1:]...)
	}
	code, err := strconv.Atoi(string(codeStr))
	if err != nil {
		return werr.Wrap(werr.BadStatus, fmt.Sprintf("malformed status code %q", codeStr), err)
	}
	head.StatusCode = code
	return nil
}

