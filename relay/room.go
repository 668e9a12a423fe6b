package relay

import (
	"sync/atomic"

	"brawlnet/netplay"
)

// MemberID 连接到中继的客户端编号
type MemberID int64

// Frame 一帧待转发的原始消息（保持发送方的帧类型）
type Frame struct {
	From    MemberID
	MsgType int
	Data    []byte
}

// memberEvent 加入/离开走同一条通道，保证顺序；conn 为 nil 表示离开
type memberEvent struct {
	id   MemberID
	conn *ClientConn
}

// Room 大厅：成员表只在 Tick 协程内修改，入站帧经通道排队，每个 Tick 统一转发
type Room struct {
	ID string

	members    map[MemberID]*ClientConn
	memberChan chan memberEvent
	frameChan  chan Frame
	stop       chan struct{}

	size    atomic.Int32
	metrics *Metrics

	tickerStarted bool
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, metrics *Metrics) *Room {
	return &Room{
		ID:         id,
		members:    make(map[MemberID]*ClientConn),
		memberChan: make(chan memberEvent, 128),
		frameChan:  make(chan Frame, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		stop:       make(chan struct{}),
		metrics:    metrics,
	}
}

// Size 当前成员数（可并发读取）
func (r *Room) Size() int { return int(r.size.Load()) }

// RequestJoin 请求在 Tick 线程中加入成员
func (r *Room) RequestJoin(id MemberID, conn *ClientConn) {
	select {
	case r.memberChan <- memberEvent{id: id, conn: conn}:
		// 入队即计数，该成员随后的大厅查询能看到自己
		r.size.Add(1)
	case <-r.stop:
		conn.Close()
	}
}

// RequestLeave 请求在 Tick 线程中移除成员
func (r *Room) RequestLeave(id MemberID) {
	select {
	case r.memberChan <- memberEvent{id: id}:
	case <-r.stop:
	}
}

// OnFrame 入站帧（不立即转发），等下一次 Tick 处理
func (r *Room) OnFrame(f Frame) {
	select {
	case r.frameChan <- f:
	default:
		// 丢弃：为了实时性，避免背压影响转发
		r.metrics.IncChanFullDiscarded()
	}
}

// ProcessFrames 处理当前帧的加入/离开与转发（非阻塞 drain）；先处理成员变化，新成员能收到同一 Tick 的转发
func (r *Room) ProcessFrames() {
	for {
		select {
		case ev := <-r.memberChan:
			if ev.conn != nil {
				r.members[ev.id] = ev.conn
				netplay.Log.Infof("member joined: room=%s member=%d size=%d", r.ID, ev.id, r.Size())
			} else {
				r.removeMember(ev.id)
			}
			continue
		default:
		}
		select {
		case f := <-r.frameChan:
			r.broadcastFrom(f)
		default:
			return
		}
	}
}

func (r *Room) removeMember(id MemberID) {
	if c, ok := r.members[id]; ok {
		c.Close()
		delete(r.members, id)
		r.size.Add(-1)
		netplay.Log.Infof("member left: room=%s member=%d size=%d", r.ID, id, r.Size())
	}
}

// broadcastFrom 转发给房间内除发送者以外的所有成员
func (r *Room) broadcastFrom(f Frame) {
	for id, c := range r.members {
		if id == f.From {
			continue
		}
		if c.Enqueue(outbound{msgType: f.MsgType, data: f.Data}) {
			r.metrics.IncForwarded()
		} else {
			r.metrics.IncSendQueueFull()
		}
	}
}

// closeAll 关闭全部成员连接（中继退出时）
func (r *Room) closeAll() {
	for id := range r.members {
		r.removeMember(id)
	}
}
