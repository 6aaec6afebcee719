package rdr

import (
	"net/url"

	"github.com/corehttpio/corehttp"
)

// maxRedirectsCount bounds how many redirect hops DoFollowingRedirects will
// chase before giving up on a misbehaving or looping server.
const maxRedirectsCount = 16

// Doer is satisfied by *corehttp.Client; accepting the interface here
// keeps this driver usable against anything that can perform one request.
type Doer interface {
	Do(req *corehttp.Request) (*corehttp.Response, error)
}

// DoFollowingRedirects performs req, and for each 301/302/303/307/308
// response with a Location header, discards the response body and issues
// a follow-up request at the resolved redirect target, up to
// maxRedirectsCount hops. Redirect-following is a policy decision left to
// this convenience layer rather than baked into Connection.
//
// 307 and 308 preserve the original method and body; 301/302/303 switch to
// GET with no body, matching the fetch/XHR-compatible behavior most HTTP
// client libraries converged on.
func DoFollowingRedirects(d Doer, req *corehttp.Request) (*corehttp.Response, error) {
	current := req
	for redirects := 0; ; redirects++ {
		resp, err := d.Do(current)
		if err != nil {
			return nil, err
		}

		switch resp.StatusCode() {
		case 301, 302, 303, 307, 308:
		default:
			return resp, nil
		}

		location := resp.Header().Get("Location")
		if location == "" {
			return resp, nil
		}
		if err := resp.Body.Discard(); err != nil {
			return nil, err
		}
		if redirects >= maxRedirectsCount {
			return nil, corehttp.NewError(corehttp.KindTooManyRedirects, "rdr: exceeded maximum redirect count")
		}

		target, err := resolveRedirectURL(current.URL, location)
		if err != nil {
			return nil, corehttp.WrapError(corehttp.KindBadURL, "rdr: resolve redirect target", err)
		}

		method := current.Method
		var body []byte
		if resp.StatusCode() == 307 || resp.StatusCode() == 308 {
			body = current.Body
		} else {
			method = "GET"
		}

		next, err := corehttp.NewRequest(method, target.String())
		if err != nil {
			return nil, err
		}
		if body != nil {
			next.SetBody(body)
		}
		current = next
	}
}

func resolveRedirectURL(base *url.URL, location string) (*url.URL, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(loc), nil
}
