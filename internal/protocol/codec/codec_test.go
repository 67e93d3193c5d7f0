package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/protocol"
)

func rawFields(t *testing.T, data []byte) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestEncode_JoinOmitsMessageAndToName(t *testing.T) {
	t.Parallel()

	data, err := Encode(protocol.Join{RoomID: "0042", Name: "alice"})
	require.NoError(t, err)

	fields := rawFields(t, data)
	assert.Len(t, fields, 2)
	assert.JSONEq(t, `"0042"`, string(fields["roomid"]))
	assert.JSONEq(t, `"alice"`, string(fields["name"]))
	assert.NotContains(t, fields, "message")
	assert.NotContains(t, fields, "toname")
}

func TestEncode_BroadcastCarriesEmptyToName(t *testing.T) {
	t.Parallel()

	data, err := Encode(protocol.NewChat("0042", "alice", "hello", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"roomid":"0042","message":"hello","name":"alice","toname":""}`, string(data))
}

func TestEncode_PrivateMessage(t *testing.T) {
	t.Parallel()

	data, err := Encode(protocol.NewChat("0042", "alice", "hi", "bob"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"roomid":"0042","message":"hi","name":"alice","toname":"bob"}`, string(data))
}

func TestEncode_KeepsHTMLVerbatim(t *testing.T) {
	t.Parallel()

	data, err := Encode(protocol.NewChat("0042", "alice", "a <b> & c", ""))
	require.NoError(t, err)
	assert.Contains(t, string(data), "a <b> & c")
	assert.NotContains(t, string(data), "\n")
}

func TestEncode_RequiresRoomAndName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   protocol.Event
	}{
		{"join without room", protocol.Join{Name: "alice"}},
		{"join without name", protocol.Join{RoomID: "0001"}},
		{"broadcast without room", protocol.Broadcast{Name: "alice", Message: "x"}},
		{"private without name", protocol.PrivateMessage{RoomID: "0001", ToName: "bob", Message: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Encode(tt.ev)
			assert.ErrorIs(t, err, apperrors.ErrInvalidEnvelope)
		})
	}
}

func TestEncodeEnvelope_NullRosters(t *testing.T) {
	t.Parallel()

	data, err := EncodeEnvelope(&protocol.Envelope{RoomID: "0001", Name: "Server", Message: "welcome"})
	require.NoError(t, err)

	fields := rawFields(t, data)
	assert.Equal(t, "null", string(fields["allusers"]))
	assert.Equal(t, "null", string(fields["onlineusers"]))
}

func TestDecode_NullVersusEmptyRoster(t *testing.T) {
	t.Parallel()

	env, err := Decode([]byte(`{"roomid":"r1","name":"a","toname":"","message":"m","allusers":null,"onlineusers":[]}`))
	require.NoError(t, err)
	assert.Nil(t, env.AllUsers)
	assert.NotNil(t, env.OnlineUsers)
	assert.Empty(t, env.OnlineUsers)
	assert.True(t, env.HasRoster())
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("not json"))
	assert.ErrorIs(t, err, apperrors.ErrMalformedFrame)

	_, err = DecodeEvent([]byte(`{"roomid":`))
	assert.ErrorIs(t, err, apperrors.ErrMalformedFrame)
}

func TestDecodeEvent_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame string
		kind  protocol.EventKind
	}{
		{"roster wins over everything", `{"roomid":"r","name":"Server","toname":"bob","message":"x","allusers":["a"]}`, protocol.KindRoster},
		{"online only is a roster", `{"roomid":"r","name":"Server","message":"","onlineusers":["a"]}`, protocol.KindRoster},
		{"recipient means private", `{"roomid":"r","name":"a","toname":"bob","message":"hi"}`, protocol.KindPrivate},
		{"empty message means join", `{"roomid":"r","name":"a","toname":"","message":""}`, protocol.KindJoin},
		{"plain message is broadcast", `{"roomid":"r","name":"a","toname":"","message":"hello"}`, protocol.KindBroadcast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := DecodeEvent([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ev.Kind())
		})
	}
}

func TestDecodeEvent_RosterOrderPreserved(t *testing.T) {
	t.Parallel()

	ev, err := DecodeEvent([]byte(`{"roomid":"r","name":"Server","message":"a joined","allusers":["b","a","c"],"onlineusers":null}`))
	require.NoError(t, err)

	roster, ok := ev.(protocol.RosterUpdate)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a", "c"}, roster.AllUsers)
	assert.Nil(t, roster.OnlineUsers)
	assert.Equal(t, "a joined", roster.Message)
}
