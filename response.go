package corehttp

// Response is a received HTTP response: the parsed head plus a Body that
// streams the remaining bytes according to whatever transfer-coding and
// content-coding the head declared.
type Response struct {
	Head *ResponseHead
	Body *Body
}

// StatusCode is a convenience accessor.
func (r *Response) StatusCode() int { return r.Head.StatusCode }

// Header is a convenience accessor.
func (r *Response) Header() *Header { return &r.Head.Header }
