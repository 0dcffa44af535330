package signaling

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aircast/signaling-relay/internal/metrics"
	"github.com/aircast/signaling-relay/internal/room"
)

// Router classifies inbound frames by their type tag and either mutates the
// room registry or forwards opaque payloads to the right peer(s). It keeps
// no state of its own.
//
// Delivery is fire-and-forget: a peer whose send fails is skipped, never
// retried. No inbound frame is ever fatal to the connection or the process.
type Router struct {
	reg *room.Registry
	log *slog.Logger
	m   *metrics.Metrics

	now func() time.Time
}

func NewRouter(reg *room.Registry, log *slog.Logger, m *metrics.Metrics) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		reg: reg,
		log: log,
		m:   m,
		now: time.Now,
	}
}

// Handle dispatches one inbound frame from conn. Malformed frames and
// unrecognized types are dropped without a response.
func (rt *Router) Handle(conn room.Conn, data []byte) {
	env, err := parseEnvelope(data)
	if err != nil {
		rt.m.Inc(metrics.MalformedMessage)
		rt.log.Debug("dropping malformed message", "conn", conn.ID(), "err", err)
		return
	}

	switch env.Type {
	case msgTypeCreateRoom:
		rt.handleCreateRoom(conn)
	case msgTypeJoinRoom:
		rt.handleJoinRoom(conn, env)
	case msgTypeOffer, msgTypeAnswer, msgTypeICECandidate:
		rt.handleSignal(conn, env, data)
	case msgTypeChat:
		rt.handleChat(conn, env)
	case msgTypeLeaveRoom:
		rt.handleLeave(conn, msgTypeBroadcasterLeft)
	default:
		rt.m.Inc(metrics.UnknownMessageType)
		rt.log.Debug("ignoring unknown message type", "conn", conn.ID(), "type", env.Type)
	}
}

// HandleDisconnect runs the same departure logic as an explicit leave-room,
// with the broadcaster notification worded as a disconnect.
func (rt *Router) HandleDisconnect(conn room.Conn) {
	rt.handleLeave(conn, msgTypeBroadcasterDisconnected)
}

func (rt *Router) handleCreateRoom(conn room.Conn) {
	code := rt.reg.CreateRoom(conn)
	rt.m.Inc(metrics.RoomCreated)
	rt.send(conn, roomCreatedMsg{Type: msgTypeRoomCreated, RoomCode: code})
}

func (rt *Router) handleJoinRoom(conn room.Conn, env envelope) {
	res, err := rt.reg.JoinRoom(conn, env.RoomCode, env.UserName)
	if err != nil {
		rt.m.Inc(metrics.RoomNotFound)
		rt.send(conn, errorMsg{Type: msgTypeError, Message: "Room not found"})
		return
	}
	rt.m.Inc(metrics.ListenerJoined)

	rt.send(conn, roomJoinedMsg{
		Type:      msgTypeRoomJoined,
		RoomCode:  res.RoomCode,
		Listeners: res.Listeners,
	})

	announce := newListenerMsg{
		Type:       msgTypeNewListener,
		ListenerID: res.ListenerID,
		UserName:   res.Name,
		Listeners:  res.Listeners,
	}
	if res.Broadcaster != nil {
		rt.send(res.Broadcaster, announce)
	}
	for _, other := range res.Others {
		rt.send(other, announce)
	}
}

// handleSignal relays an offer/answer/ice-candidate payload verbatim. From
// the broadcaster it goes to the listener named by targetId; from a listener
// it goes to the broadcaster with senderId appended. Unreachable targets are
// dropped silently: signaling is best-effort and the sender is never told.
func (rt *Router) handleSignal(conn room.Conn, env envelope, raw []byte) {
	role, code, ok := rt.reg.RouteInfo(conn)
	if !ok || code == "" {
		rt.log.Debug("dropping signal from connection without a room", "conn", conn.ID(), "type", env.Type)
		return
	}

	switch role {
	case room.RoleBroadcaster:
		if env.TargetID == "" {
			rt.log.Debug("dropping signal without targetId", "conn", conn.ID(), "room", code, "type", env.Type)
			return
		}
		target, ok := rt.reg.ListenerConn(code, env.TargetID)
		if !ok {
			rt.m.Inc(metrics.TargetUnreachable)
			rt.log.Debug("signal target not in room", "room", code, "target", env.TargetID, "type", env.Type)
			return
		}
		rt.m.Inc(metrics.SignalForwarded)
		rt.sendRaw(target, raw)

	case room.RoleListener:
		b, ok := rt.reg.BroadcasterConn(code)
		if !ok {
			rt.m.Inc(metrics.TargetUnreachable)
			rt.log.Debug("no broadcaster to relay signal to", "room", code, "type", env.Type)
			return
		}
		forward, err := withSenderID(raw, conn.ID())
		if err != nil {
			rt.m.Inc(metrics.MalformedMessage)
			rt.log.Debug("dropping unrelayable signal", "conn", conn.ID(), "err", err)
			return
		}
		rt.m.Inc(metrics.SignalForwarded)
		rt.sendRaw(b, forward)

	default:
		rt.log.Debug("dropping signal from unassigned connection", "conn", conn.ID(), "type", env.Type)
	}
}

// handleChat fans a chat message out to the broadcaster and every listener
// in the sender's room. The sender's own copy is not suppressed; clients
// distinguish self from others. senderId and timestamp are server-assigned.
func (rt *Router) handleChat(conn room.Conn, env envelope) {
	_, code, ok := rt.reg.RouteInfo(conn)
	if !ok || code == "" {
		rt.log.Debug("dropping chat from connection without a room", "conn", conn.ID())
		return
	}

	broadcaster, listeners, ok := rt.reg.Participants(code)
	if !ok {
		rt.log.Debug("dropping chat for missing room", "conn", conn.ID(), "room", code)
		return
	}

	msg := chatMsg{
		Type:       msgTypeChat,
		SenderID:   conn.ID(),
		SenderName: env.UserName,
		Message:    env.Message,
		Timestamp:  rt.now().UnixMilli(),
	}
	rt.m.Inc(metrics.ChatDelivered)

	if broadcaster != nil {
		rt.send(broadcaster, msg)
	}
	for _, l := range listeners {
		rt.send(l, msg)
	}
}

func (rt *Router) handleLeave(conn room.Conn, broadcasterGoneType string) {
	dep := rt.reg.Leave(conn)

	switch dep.Role {
	case room.RoleBroadcaster:
		gone := broadcasterGoneMsg{Type: broadcasterGoneType}
		for _, l := range dep.Notify {
			rt.send(l, gone)
		}

	case room.RoleListener:
		if dep.Removed == nil {
			return
		}
		left := listenerLeftMsg{
			Type:       msgTypeListenerLeft,
			ListenerID: dep.Removed.ID,
			UserName:   dep.Removed.Name,
			Listeners:  dep.Listeners,
		}
		if dep.Broadcaster != nil {
			rt.send(dep.Broadcaster, left)
		}
		for _, l := range dep.Notify {
			rt.send(l, left)
		}
	}
}

func (rt *Router) send(conn room.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		rt.log.Error("failed to encode outbound message", "err", err)
		return
	}
	rt.sendRaw(conn, data)
}

func (rt *Router) sendRaw(conn room.Conn, data []byte) {
	if conn == nil {
		return
	}
	if err := conn.Send(data); err != nil {
		rt.m.Inc(metrics.SendFailed)
		rt.log.Debug("send failed", "conn", conn.ID(), "err", err)
	}
}
