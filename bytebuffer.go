package corehttp

import (
	"github.com/valyala/bytebufferpool"
)

var defaultByteBufferPool bytebufferpool.Pool

// acquireByteBuffer returns an empty byte buffer from the shared pool, used
// by Connection to serialize request heads and by Body.AsBytes to collect a
// fully-drained body without a fresh allocation per call.
func acquireByteBuffer() *bytebufferpool.ByteBuffer {
	return defaultByteBufferPool.Get()
}

// releaseByteBuffer returns b to the pool. b.B must not be touched
// afterward.
func releaseByteBuffer(b *bytebufferpool.ByteBuffer) {
	defaultByteBufferPool.Put(b)
}
