package corehttp

var (
	strCRLF      = []byte("\r\n")
	strHeaderEnd = []byte("\r\n\r\n")
	strColonSp   = []byte(": ")
	strHTTP11    = []byte("HTTP/1.1")
	strHTTP10    = []byte("HTTP/1.0")

	strHost            = []byte("Host")
	strContentLength   = []byte("Content-Length")
	strTransferEnc     = []byte("Transfer-Encoding")
	strContentEncoding = []byte("Content-Encoding")
	strContentType     = []byte("Content-Type")
	strConnection      = []byte("Connection")
	strExpect          = []byte("Expect")

	strClose       = []byte("close")
	strKeepAlive   = []byte("keep-alive")
	strChunked     = []byte("chunked")
	str100Continue = []byte("100-continue")

	strGET  = "GET"
	strHEAD = "HEAD"
	strPUT  = "PUT"

	defaultUserAgent = []byte("corehttp")
)

// defaultReadBufferSize and defaultWriteBufferSize are the per-connection
// buffer defaults. Package h1 keeps its own copies of these constants
// (h1/inner.go) and sizes the engine's buffers from those; nothing in this
// package reads them.
const (
	defaultReadBufferSize  = 4096
	defaultWriteBufferSize = 4096

	// defaultMaxHeaderBytes bounds accumulated response-header bytes before
	// the engine gives up with KindBadHeader rather than growing its read
	// buffer without limit.
	defaultMaxHeaderBytes = 64 * 1024
)
