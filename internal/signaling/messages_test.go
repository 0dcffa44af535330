package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    envelope
		wantErr bool
	}{
		{
			name: "join room",
			data: `{"type":"join-room","roomCode":"abc123","userName":"ada"}`,
			want: envelope{Type: "join-room", RoomCode: "abc123", UserName: "ada"},
		},
		{
			name: "offer with unknown fields",
			data: `{"type":"offer","targetId":"l1","sdp":{"type":"offer","sdp":"v=0"},"anything":"goes"}`,
			want: envelope{Type: "offer", TargetID: "l1"},
		},
		{
			name: "chat",
			data: `{"type":"chat-message","userName":"ada","message":"hi"}`,
			want: envelope{Type: "chat-message", UserName: "ada", Message: "hi"},
		},
		{name: "not json", data: `offer please`, wantErr: true},
		{name: "missing type", data: `{"roomCode":"abc123"}`, wantErr: true},
		{name: "empty type", data: `{"type":""}`, wantErr: true},
		{name: "json array", data: `[1,2,3]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEnvelope([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithSenderID(t *testing.T) {
	out, err := withSenderID([]byte(`{"type":"answer","sdp":{"type":"answer","sdp":"v=0"},"n":1}`), "l1")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "answer", got["type"])
	assert.Equal(t, "l1", got["senderId"])
	assert.Equal(t, float64(1), got["n"])
	sdp, ok := got["sdp"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v=0", sdp["sdp"])
}

func TestWithSenderID_OverwritesClientValue(t *testing.T) {
	out, err := withSenderID([]byte(`{"type":"ice-candidate","senderId":"spoofed"}`), "real")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "real", got["senderId"])
}

func TestWithSenderID_RejectsNonObjects(t *testing.T) {
	_, err := withSenderID([]byte(`[1,2]`), "l1")
	assert.Error(t, err)
}
