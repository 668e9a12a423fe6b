package relay

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"brawlnet/netplay"
)

// DefaultLobby 未指定大厅时加入的房间
const DefaultLobby = "lobby-1"

// Relay 开发用中继：应答大厅查询，并把指令帧转发给同一大厅的其他成员
type Relay struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool

	nextID   atomic.Int64
	metrics  *Metrics
	upgrader websocket.Upgrader
}

func New() *Relay {
	return &Relay{
		rooms:   make(map[string]*Room),
		metrics: &Metrics{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 开发环境：允许所有来源
				return true
			},
		},
	}
}

func (rl *Relay) Metrics() *Metrics { return rl.metrics }

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick；中继关闭后返回 false
func (rl *Relay) GetOrCreateRoom(id string) (*Room, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.closed {
		return nil, false
	}
	r, ok := rl.rooms[id]
	if !ok {
		r = NewRoom(id, rl.metrics)
		rl.rooms[id] = r
		r.StartTicker()
	}
	return r, true
}

// Lobbies 按名称排序的大厅快照
func (rl *Relay) Lobbies() []netplay.LobbyInfo {
	rl.mu.RLock()
	out := make([]netplay.LobbyInfo, 0, len(rl.rooms))
	for id, r := range rl.rooms {
		out = append(out, netplay.LobbyInfo{Name: id, Players: r.Size()})
	}
	rl.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close 停止所有房间并关闭连接
func (rl *Relay) Close() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.closed {
		return
	}
	rl.closed = true
	for _, r := range rl.rooms {
		r.Stop()
	}
}
