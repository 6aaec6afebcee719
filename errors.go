package corehttp

import "github.com/corehttpio/corehttp/internal/werr"

// Kind classifies an Error. The set is closed: callers switch on Kind
// rather than matching error strings.
type Kind = werr.Kind

// The recognized error kinds.
const (
	KindBadStatus        = werr.BadStatus
	KindBadHeader        = werr.BadHeader
	KindBadURL           = werr.BadURL
	KindTooManyRedirects = werr.TooManyRedirects
	KindUnknownScheme    = werr.UnknownScheme
	KindIO               = werr.IO
	KindStatic           = werr.Static
	KindMessage          = werr.Message
	KindRemoteClosed     = werr.RemoteClosed
)

// Error is the single error type returned across the connection, engine and
// body pipeline. The Kind lets a caller branch on category while Unwrap
// still reaches the underlying cause (e.g. a *net.OpError for KindIO).
type Error = werr.Error

// NewError builds an *Error with a message and no wrapped cause.
func NewError(kind Kind, msg string) *Error { return werr.New(kind, msg) }

// WrapError builds an *Error wrapping an underlying cause. It returns nil
// if err is nil.
func WrapError(kind Kind, msg string, err error) *Error { return werr.Wrap(kind, msg, err) }

// StaticError returns a KindStatic error built from a constant string. It is
// used at call sites that detect programming misuse, which should fail fast
// rather than propagate as an ordinary I/O or protocol error.
func StaticError(msg string) *Error { return werr.StaticErr(msg) }

// ErrTimeout is returned by Connection.Do when Request.Deadline elapses
// before the request completes. The request keeps running in the
// background against the connection's own ticket ordering; a caller
// receiving ErrTimeout should treat the request as failed but not assume
// the connection itself is dead.
var ErrTimeout = werr.New(werr.IO, "timeout")
