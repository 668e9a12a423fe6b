package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"brawlnet/netplay"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type outbound struct {
	msgType int
	data    []byte
}

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws        *websocket.Conn
	send      chan outbound
	closed    chan struct{}
	closeOnce sync.Once
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:     ws,
		send:   make(chan outbound, 64),
		closed: make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(o outbound) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- o:
		return true
	default:
		// 为了实时性，丢弃新消息（防止阻塞 Tick）
		return false
	}
}

// Close 关闭底层连接并结束写协程
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping 保活
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case o := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(o.msgType, o.data); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump 读取客户端消息：大厅查询直接应答，指令帧交给房间在 Tick 中转发
func (c *ClientConn) readPump(rl *Relay, room *Room, id MemberID) {
	// 读泵退出时，通知房间在 Tick 线程中移除该成员
	defer room.RequestLeave(id)
	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		mt, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		codec := codecFor(mt)
		env, err := codec.Decode(payload)
		if err != nil {
			rl.metrics.IncDecodeErrors()
			netplay.Log.Debugf("relay discard frame: member=%d err=%v", id, err)
			continue
		}
		switch env.(type) {
		case netplay.LobbyRequestMessage:
			rl.metrics.IncLobbyRequests()
			b, err := codec.Encode(netplay.LobbyListMessage{Lobbies: rl.Lobbies()})
			if err != nil {
				netplay.Log.Errorf("relay encode lobby list: %v", err)
				continue
			}
			c.Enqueue(outbound{msgType: mt, data: b})
		case netplay.CommandsMessage:
			room.OnFrame(Frame{From: id, MsgType: mt, Data: payload})
		default:
			// 其他消息类型不由中继处理
		}
	}
}

// 文本帧为 JSON，二进制帧为 msgpack
func codecFor(msgType int) netplay.Codec {
	if msgType == websocket.BinaryMessage {
		return netplay.MsgpackCodec{}
	}
	return netplay.JSONCodec{}
}

// HandleWS WebSocket 接入：?lobby=lobby-1
func (rl *Relay) HandleWS(w http.ResponseWriter, r *http.Request) {
	lobby := r.URL.Query().Get("lobby")
	if lobby == "" {
		lobby = DefaultLobby
	}
	room, ok := rl.GetOrCreateRoom(lobby)
	if !ok {
		http.Error(w, "relay closed", http.StatusServiceUnavailable)
		return
	}

	ws, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		netplay.Log.Warnf("upgrade error: %v", err)
		return
	}

	id := MemberID(rl.nextID.Add(1))
	client := NewClientConn(ws)
	rl.metrics.IncConnections()
	room.RequestJoin(id, client)

	go client.writePump()
	go client.readPump(rl, room, id)
}
