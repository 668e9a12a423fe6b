package netplay

import (
	"context"
	"time"
)

// Phase 连接后的大厅阶段（本地记录，不产生线上消息）
type Phase int32

const (
	PhaseNone Phase = iota
	PhaseHosting
	PhaseJoined
	PhaseInGame
)

func (p Phase) String() string {
	switch p {
	case PhaseHosting:
		return "hosting"
	case PhaseJoined:
		return "joined"
	case PhaseInGame:
		return "in-game"
	default:
		return "none"
	}
}

func (s *Session) Phase() Phase { return Phase(s.phase.Load()) }

// Lobby 当前所在大厅名
func (s *Session) Lobby() string { return s.lobby }

// HostLobby 以房主身份进入大厅
func (s *Session) HostLobby(name string) error { return s.enterLobby(PhaseHosting, name) }

// JoinLobby 加入已有大厅
func (s *Session) JoinLobby(name string) error { return s.enterLobby(PhaseJoined, name) }

func (s *Session) enterLobby(p Phase, name string) error {
	if s.State() != StateConnected {
		return ErrNotConnected
	}
	if s.Phase() != PhaseNone {
		return ErrInvalidTransition
	}
	s.lobby = name
	s.phase.Store(int32(p))
	Log.Infof("lobby entered: name=%s phase=%s", name, p)
	return nil
}

// StartGame 大厅 → 对局
func (s *Session) StartGame() error {
	switch s.Phase() {
	case PhaseHosting, PhaseJoined:
		s.phase.Store(int32(PhaseInGame))
		Log.Infof("game started: lobby=%s", s.lobby)
		return nil
	default:
		return ErrInvalidTransition
	}
}

// LeaveLobby 回到已连接但不在大厅的状态
func (s *Session) LeaveLobby() error {
	if s.Phase() == PhaseNone {
		return ErrInvalidTransition
	}
	s.lobby = ""
	s.phase.Store(int32(PhaseNone))
	return nil
}

// LobbyRequest 非阻塞的大厅查询；收到 LOBBY LIST、超时、取消或断线时完成
type LobbyRequest struct {
	id       uint64
	deadline time.Time
	done     chan struct{}
	lobbies  []LobbyInfo
	err      error
	session  *Session
}

func (r *LobbyRequest) ID() uint64 { return r.id }

// Done 完成时关闭
func (r *LobbyRequest) Done() <-chan struct{} { return r.done }

func (r *LobbyRequest) Ready() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Result 未完成时返回 ErrRequestPending
func (r *LobbyRequest) Result() ([]LobbyInfo, error) {
	if !r.Ready() {
		return nil, ErrRequestPending
	}
	return r.lobbies, r.err
}

// Cancel 放弃等待；之后到达的应答不再交给该请求
func (r *LobbyRequest) Cancel() {
	if r.Ready() {
		return
	}
	r.session.dropPending(r)
	r.resolve(nil, ErrRequestCancelled)
}

func (r *LobbyRequest) resolve(lobbies []LobbyInfo, err error) {
	if r.Ready() {
		return
	}
	r.lobbies, r.err = lobbies, err
	close(r.done)
}

// RequestLobbies 发送 LOBBY REQUEST 并立即返回；由后续的 PumpOnce 完成。timeout<=0 使用会话默认值
func (s *Session) RequestLobbies(timeout time.Duration) (*LobbyRequest, error) {
	if s.State() != StateConnected {
		return nil, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = s.lobbyTimeout
	}
	if err := s.send(LobbyRequestMessage{}); err != nil {
		s.metrics.IncSendFailures()
		return nil, err
	}
	s.nextReqID++
	req := &LobbyRequest{
		id:       s.nextReqID,
		deadline: s.clock.Now().Add(timeout),
		done:     make(chan struct{}),
		session:  s,
	}
	s.pending = append(s.pending, req)
	s.metrics.IncLobbyRequests()
	Log.Debugf("lobby request sent: id=%d timeout=%s", req.id, timeout)
	return req, nil
}

// GetLobbies 阻塞直到收到大厅列表、超时或 ctx 结束；等待期间其他入站消息照常分发
func (s *Session) GetLobbies(ctx context.Context) ([]LobbyInfo, error) {
	req, err := s.RequestLobbies(0)
	if err != nil {
		return nil, err
	}
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		for !req.Ready() && s.receiveOnce() {
		}
		s.expireLobbyRequests()
		if req.Ready() {
			return req.Result()
		}
		select {
		case <-ctx.Done():
			req.Cancel()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// resolveLobbies 列表是快照：同一份应答交给所有挂起的请求
func (s *Session) resolveLobbies(lobbies []LobbyInfo) {
	if len(s.pending) == 0 {
		Log.Debugf("discard unsolicited lobby list: n=%d", len(lobbies))
		return
	}
	pending := s.pending
	s.pending = nil
	for _, req := range pending {
		req.resolve(append([]LobbyInfo(nil), lobbies...), nil)
	}
}

func (s *Session) expireLobbyRequests() {
	if len(s.pending) == 0 {
		return
	}
	now := s.clock.Now()
	kept := s.pending[:0]
	for _, req := range s.pending {
		if now.Before(req.deadline) {
			kept = append(kept, req)
			continue
		}
		s.metrics.IncLobbyTimeouts()
		Log.Warnf("lobby request timed out: id=%d", req.id)
		req.resolve(nil, ErrLobbyTimeout)
	}
	s.pending = kept
}

func (s *Session) dropPending(r *LobbyRequest) {
	for i, req := range s.pending {
		if req == r {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}
