package corehttp

import "mime"

// charsetFromContentType extracts the charset parameter from a Content-Type
// header value, e.g. "text/html; charset=iso-8859-1" -> "iso-8859-1". It
// returns "" if the header doesn't parse or carries no charset parameter,
// letting the caller fall back to a connection-wide default.
func charsetFromContentType(contentType []byte) string {
	_, params, err := mime.ParseMediaType(string(contentType))
	if err != nil {
		return ""
	}
	return params["charset"]
}
