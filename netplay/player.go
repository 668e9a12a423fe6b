package netplay

import "fmt"

// PlayerID 会话内唯一的玩家编号（从 1 开始），用于路由入站指令与标记出站消息
type PlayerID int

// Valid 编号必须为正
func (id PlayerID) Valid() bool { return id > 0 }

func (id PlayerID) String() string { return fmt.Sprintf("P%d", int(id)) }

// PlayerRoster 在创建玩家时分配编号：先本地玩家，再在线玩家
type PlayerRoster struct {
	session *Session
	next    PlayerID
	locals  map[PlayerID]*LocalController
	remotes map[PlayerID]*RemoteController
	handles map[PlayerID][]Handle
}

// NewPlayerRoster 绑定到会话；session 可为 nil（纯离线）
func NewPlayerRoster(s *Session) *PlayerRoster {
	return &PlayerRoster{
		session: s,
		next:    1,
		locals:  make(map[PlayerID]*LocalController),
		remotes: make(map[PlayerID]*RemoteController),
		handles: make(map[PlayerID][]Handle),
	}
}

// AddLocal 创建本地玩家；仅在会话已连接时才接入出站发送
func (r *PlayerRoster) AddLocal() (PlayerID, *LocalController, error) {
	id := r.allocate()
	lc := NewLocalController(id)
	if r.session != nil && r.session.State() == StateConnected {
		h, err := r.session.RegisterSender(id, lc.Buffer())
		if err != nil {
			return 0, nil, err
		}
		r.handles[id] = append(r.handles[id], h)
	} else {
		// 离线：不需要网络发送
		lc.buffer = nil
	}
	r.locals[id] = lc
	return id, lc, nil
}

// AddRemote 创建由对端驱动的玩家
func (r *PlayerRoster) AddRemote() (PlayerID, *RemoteController, error) {
	id := r.allocate()
	rc := NewRemoteController(id)
	if r.session != nil {
		h, err := r.session.RegisterReceiver(id, rc.Queue())
		if err != nil {
			return 0, nil, err
		}
		r.handles[id] = append(r.handles[id], h)
		m := r.session.Metrics()
		rc.OnUnknown(func(string) { m.IncUnknownCommands() })
	}
	r.remotes[id] = rc
	return id, rc, nil
}

// Remove 销毁玩家并从会话注册表注销，避免残留引用
func (r *PlayerRoster) Remove(id PlayerID) {
	if r.session != nil {
		for _, h := range r.handles[id] {
			r.session.Unregister(h)
		}
	}
	delete(r.handles, id)
	delete(r.locals, id)
	delete(r.remotes, id)
}

// Local 查找本地玩家控制器
func (r *PlayerRoster) Local(id PlayerID) (*LocalController, bool) {
	lc, ok := r.locals[id]
	return lc, ok
}

// Remote 查找远端玩家控制器
func (r *PlayerRoster) Remote(id PlayerID) (*RemoteController, bool) {
	rc, ok := r.remotes[id]
	return rc, ok
}

func (r *PlayerRoster) allocate() PlayerID {
	id := r.next
	r.next++
	return id
}
