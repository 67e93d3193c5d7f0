// Package codec encodes and decodes envelopes for the WebSocket transport.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/protocol"
)

// joinFrame is the wire shape of a Join: no message, no toname.
type joinFrame struct {
	RoomID string `json:"roomid"`
	Name   string `json:"name"`
}

// chatFrame is the wire shape of a client send action. toname is always
// present; the empty string means the whole room.
type chatFrame struct {
	RoomID  string `json:"roomid"`
	Message string `json:"message"`
	Name    string `json:"name"`
	ToName  string `json:"toname"`
}

// Encode serialises an event in the shape its kind requires. Every event must
// carry a room id and a sender name.
func Encode(ev protocol.Event) ([]byte, error) {
	env := ev.Envelope()
	if env.RoomID == "" || env.Name == "" {
		return nil, apperrors.ErrInvalidEnvelope
	}

	var v any
	switch e := ev.(type) {
	case protocol.Join:
		v = joinFrame{RoomID: e.RoomID, Name: e.Name}
	case protocol.Broadcast:
		v = chatFrame{RoomID: e.RoomID, Message: e.Message, Name: e.Name}
	case protocol.PrivateMessage:
		v = chatFrame{RoomID: e.RoomID, Message: e.Message, Name: e.Name, ToName: e.ToName}
	default:
		v = env
	}
	return marshal(v)
}

// EncodeEnvelope serialises a full envelope, rosters included. Used by the
// server for fan-out.
func EncodeEnvelope(env *protocol.Envelope) ([]byte, error) {
	return marshal(env)
}

// marshal writes v without HTML escaping so message text survives verbatim.
func marshal(v any) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	out := bytes.TrimRight(buf.Bytes(), "\n")
	data := make([]byte, len(out))
	copy(data, out)
	return data, nil
}

// Decode parses a frame into an envelope. Any parse failure is reported as
// ErrMalformedFrame.
func Decode(data []byte) (*protocol.Envelope, error) {
	env := GetEnvelope()
	if err := json.Unmarshal(data, env); err != nil {
		PutEnvelope(env)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedFrame, err)
	}
	return env, nil
}

// DecodeEvent parses a frame and classifies it.
func DecodeEvent(data []byte) (protocol.Event, error) {
	env, err := Decode(data)
	if err != nil {
		return nil, err
	}
	ev := protocol.Classify(env)
	PutEnvelope(env)
	return ev, nil
}
