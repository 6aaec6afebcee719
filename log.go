package corehttp

import (
	"log"
	"os"
)

// Logger is satisfied by *log.Logger; it is the same minimal shape widely
// used across the fasthttp ecosystem, so callers already embedding that
// style of logging in their services can reuse it here without an adapter.
type Logger interface {
	// Printf must have the same semantics as log.Printf.
	Printf(format string, args ...interface{})
}

// defaultLogger is used wherever a Connection's Logger field is left nil.
var defaultLogger Logger = log.New(os.Stderr, "", log.LstdFlags)

func (c *Connection) logf(format string, args ...interface{}) {
	l := c.Logger
	if l == nil {
		l = defaultLogger
	}
	l.Printf(format, args...)
}
