package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/aircast/signaling-relay/internal/room"
)

// Inbound message types.
const (
	msgTypeCreateRoom   = "create-room"
	msgTypeJoinRoom     = "join-room"
	msgTypeOffer        = "offer"
	msgTypeAnswer       = "answer"
	msgTypeICECandidate = "ice-candidate"
	msgTypeChat         = "chat-message"
	msgTypeLeaveRoom    = "leave-room"
)

// Outbound message types.
const (
	msgTypeRoomCreated             = "room-created"
	msgTypeRoomJoined              = "room-joined"
	msgTypeNewListener             = "new-listener"
	msgTypeListenerLeft            = "listener-left"
	msgTypeBroadcasterLeft         = "broadcaster-left"
	msgTypeBroadcasterDisconnected = "broadcaster-disconnected"
	msgTypeError                   = "error"
)

// envelope is the minimal routing view of an inbound frame. Offer, answer
// and ice-candidate frames carry arbitrary extra fields that are relayed
// verbatim from the raw bytes, so unknown fields are deliberately allowed
// here.
type envelope struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
	TargetID string `json:"targetId"`
	Message  string `json:"message"`
}

func parseEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, err
	}
	if env.Type == "" {
		return envelope{}, fmt.Errorf("message missing type")
	}
	return env, nil
}

// withSenderID re-emits a raw JSON object with senderId set to id. The
// original payload fields pass through untouched; a client-supplied senderId
// is overwritten, never trusted.
func withSenderID(raw []byte, id string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	sender, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	fields["senderId"] = sender
	return json.Marshal(fields)
}

type roomCreatedMsg struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type roomJoinedMsg struct {
	Type      string              `json:"type"`
	RoomCode  string              `json:"roomCode"`
	Listeners []room.ListenerInfo `json:"listeners"`
}

type newListenerMsg struct {
	Type       string              `json:"type"`
	ListenerID string              `json:"listenerId"`
	UserName   string              `json:"userName"`
	Listeners  []room.ListenerInfo `json:"listeners"`
}

type listenerLeftMsg struct {
	Type       string              `json:"type"`
	ListenerID string              `json:"listenerId"`
	UserName   string              `json:"userName"`
	Listeners  []room.ListenerInfo `json:"listeners"`
}

type broadcasterGoneMsg struct {
	Type string `json:"type"`
}

type chatMsg struct {
	Type       string `json:"type"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}
