package codec

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/palemoky/roomchat/internal/protocol"
)

func TestPutEnvelope_ClearsEveryField(t *testing.T) {
	t.Parallel()

	env := GetEnvelope()
	*env = protocol.Envelope{
		RoomID:      "0001",
		Name:        "alice",
		ToName:      "bob",
		Message:     "hi",
		AllUsers:    []string{protocol.AnonymousName, "alice"},
		OnlineUsers: []string{protocol.AnonymousName},
	}
	PutEnvelope(env)

	assert.Equal(t, protocol.Envelope{}, *env)
	assert.NotPanics(t, func() { PutEnvelope(nil) })
}

func TestPutBuffer_EmptiesBuffer(t *testing.T) {
	t.Parallel()

	buf := GetBuffer()
	buf.WriteString(`{"roomid":"0001"}`)
	PutBuffer(buf)

	assert.Zero(t, buf.Len())
	assert.NotPanics(t, func() { PutBuffer(nil) })
}

func TestPools_ConcurrentEncodeDecode(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := &protocol.Envelope{RoomID: "0042", Name: "alice", Message: string(rune('a' + i%26))}
			data, err := EncodeEnvelope(in)
			if !assert.NoError(t, err) {
				return
			}
			out, err := Decode(data)
			if assert.NoError(t, err) {
				assert.Equal(t, in.Message, out.Message)
				PutEnvelope(out)
			}
		}()
	}
	wg.Wait()
}
