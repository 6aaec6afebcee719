// Package werr holds the single Error/Kind type shared by every package in
// this module (corehttp, bodycodec, h1, h2, rdr). It lives under internal
// so that the leaf packages (bodycodec, h1, h2) can produce and wrap errors
// without importing the root corehttp package, which would create an
// import cycle since corehttp imports all of them. The root package
// re-exports these names as type aliases and constants (errors.go) so
// callers never see the internal import path.
package werr

import "fmt"

// Kind classifies an Error. The set is closed: callers branch on Kind, not on error strings.
type Kind int

const (
	BadStatus Kind = iota
	BadHeader
	BadURL
	TooManyRedirects
	UnknownScheme
	IO
	Static
	Message
	RemoteClosed
)

func (k Kind) String() string {
	switch k {
	case BadStatus:
		return "bad status"
	case BadHeader:
		return "bad header"
	case BadURL:
		return "bad url"
	case TooManyRedirects:
		return "too many redirects"
	case UnknownScheme:
		return "unknown scheme"
	case IO:
		return "io"
	case Static:
		return "static"
	case Message:
		return "message"
	case RemoteClosed:
		return "remote closed"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the connection, engine and body
// pipeline.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("corehttp: %s: %s: %s", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("corehttp: %s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("corehttp: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with a message and no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error wrapping an underlying cause. It returns nil if err
// is nil, so call sites can write `return werr.Wrap(IO, "...", err)` right
// after an `if err != nil` without an extra branch.
func Wrap(kind Kind, msg string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// StaticErr returns a Static-kind error for programming-misuse call sites.
func StaticErr(msg string) *Error {
	return &Error{Kind: Static, Msg: msg}
}
