package codec

import (
	"bytes"
	"sync"

	"github.com/palemoky/roomchat/internal/protocol"
)

// Decoded envelopes and encode buffers are recycled between frames.
var (
	envelopes = sync.Pool{New: func() any { return new(protocol.Envelope) }}
	buffers   = sync.Pool{New: func() any { return new(bytes.Buffer) }}
)

// GetEnvelope takes a zeroed Envelope from the pool.
func GetEnvelope() *protocol.Envelope {
	return envelopes.Get().(*protocol.Envelope)
}

// PutEnvelope zeroes env, dropping its roster slices, and recycles it.
// Callers must not touch env afterwards.
func PutEnvelope(env *protocol.Envelope) {
	if env != nil {
		*env = protocol.Envelope{}
		envelopes.Put(env)
	}
}

// GetBuffer takes an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	return buffers.Get().(*bytes.Buffer)
}

// PutBuffer empties buf, keeping its capacity, and recycles it.
func PutBuffer(buf *bytes.Buffer) {
	if buf != nil {
		buf.Reset()
		buffers.Put(buf)
	}
}
