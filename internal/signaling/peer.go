package signaling

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// wsPeer wraps one gorilla websocket connection as a room.Conn. The identity
// token is minted lazily on first use and stays stable for the connection's
// lifetime.
type wsPeer struct {
	conn *websocket.Conn

	idOnce sync.Once
	id     string

	// writeMu serializes data writes; gorilla allows only one concurrent
	// writer per connection.
	writeMu sync.Mutex
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn}
}

func (p *wsPeer) ID() string {
	p.idOnce.Do(func() {
		p.id = uuid.NewString()
	})
	return p.id
}

func (p *wsPeer) Send(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *wsPeer) ping() error {
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (p *wsPeer) closeWith(code int, reason string) {
	_ = p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}
