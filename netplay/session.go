package netplay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// State 连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Clock 时间来源（测试中可替换）
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// TransportFactory 按地址创建传输层
type TransportFactory func(addr string) (Transport, error)

const (
	DefaultLobbyTimeout = 5 * time.Second
	DefaultPollInterval = 10 * time.Millisecond
)

// Session 持有连接、玩家注册表，每个 Tick 由调用方驱动一次 PumpOnce。
// 除 State/Phase/Metrics 外的方法都只应在 Tick 线程调用。
type Session struct {
	state atomic.Int32
	phase atomic.Int32
	lobby string
	addr  string

	transport    Transport
	codec        Codec
	newTransport TransportFactory
	clock        Clock
	lobbyTimeout time.Duration
	pollInterval time.Duration
	maxFrame     int
	metrics      *Metrics

	senders   *registry[*OutboundBuffer]
	receivers *registry[*RemoteQueue]

	pending   []*LobbyRequest
	nextReqID uint64
}

type Option func(*Session)

func WithCodec(c Codec) Option {
	return func(s *Session) { s.codec = c }
}

func WithTransportFactory(f TransportFactory) Option {
	return func(s *Session) { s.newTransport = f }
}

// WithTransport 每次 Connect 都使用同一个传输实例
func WithTransport(t Transport) Option {
	return WithTransportFactory(func(string) (Transport, error) { return t, nil })
}

func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLobbyTimeout(d time.Duration) Option {
	return func(s *Session) { s.lobbyTimeout = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

// WithMaxFrame 单帧字节上限；超出的批次拆成多帧发送
func WithMaxFrame(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxFrame = n
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// NewSession 创建会话（初始 Disconnected）
func NewSession(opts ...Option) *Session {
	s := &Session{
		codec: JSONCodec{},
		newTransport: func(addr string) (Transport, error) {
			return NewTransport(addr, TransportOptions{})
		},
		clock:        ClockFunc(time.Now),
		lobbyTimeout: DefaultLobbyTimeout,
		pollInterval: DefaultPollInterval,
		maxFrame:     DefaultMaxFrame,
		metrics:      &Metrics{},
		senders:      newRegistry[*OutboundBuffer](),
		receivers:    newRegistry[*RemoteQueue](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

func (s *Session) Metrics() *Metrics { return s.metrics }

// Address 当前连接地址
func (s *Session) Address() string { return s.addr }

// Connect 建立连接；失败可恢复，会话保持 Disconnected，调用方可重试或继续离线
func (s *Session) Connect(ctx context.Context, addr string) error {
	if s.State() == StateConnected {
		return ErrAlreadyConnected
	}
	s.setState(StateConnecting)
	t, err := s.newTransport(addr)
	if err == nil {
		err = t.Connect(ctx, addr)
		if err != nil {
			_ = t.Close()
		}
	}
	if err != nil {
		s.setState(StateDisconnected)
		Log.Warnf("connect failed: addr=%s err=%v", addr, err)
		return &ConnectionError{Addr: addr, Err: err}
	}
	s.transport = t
	s.addr = addr
	// 离线期间积攒的输入已过时，不补发
	s.clearSenders()
	s.setState(StateConnected)
	Log.Infof("connected: addr=%s", addr)
	return nil
}

// Disconnect 释放连接；可重复调用
func (s *Session) Disconnect() error {
	if s.transport == nil && s.State() == StateDisconnected {
		return nil
	}
	err := s.teardown(ErrNotConnected)
	Log.Infof("disconnected: addr=%s", s.addr)
	return err
}

// teardown 关闭连接，失败所有挂起的大厅查询
func (s *Session) teardown(cause error) error {
	var err error
	if s.transport != nil {
		err = s.transport.Close()
		s.transport = nil
	}
	s.setState(StateDisconnected)
	s.phase.Store(int32(PhaseNone))
	s.lobby = ""
	s.clearSenders()
	pending := s.pending
	s.pending = nil
	for _, req := range pending {
		req.resolve(nil, cause)
	}
	return err
}

func (s *Session) clearSenders() {
	s.senders.each(func(_ PlayerID, buf *OutboundBuffer) { buf.Drain() })
}

// lost 连接在运行期失效：降级为离线，不中断调用方
func (s *Session) lost(err error) {
	Log.Warnf("connection lost: addr=%s err=%v", s.addr, err)
	_ = s.teardown(errors.Join(ErrNotConnected, err))
}

// RegisterSender 登记本地玩家的出站缓冲
func (s *Session) RegisterSender(id PlayerID, buf *OutboundBuffer) (Handle, error) {
	if buf == nil {
		return Handle{}, errors.New("netplay: nil outbound buffer")
	}
	idx, gen, err := s.senders.add(id, buf)
	if err != nil {
		return Handle{}, err
	}
	return Handle{kind: kindSender, index: idx, gen: gen}, nil
}

// RegisterReceiver 登记远端玩家的入站队列
func (s *Session) RegisterReceiver(id PlayerID, q *RemoteQueue) (Handle, error) {
	if q == nil {
		return Handle{}, errors.New("netplay: nil remote queue")
	}
	idx, gen, err := s.receivers.add(id, q)
	if err != nil {
		return Handle{}, err
	}
	return Handle{kind: kindReceiver, index: idx, gen: gen}, nil
}

// Unregister 玩家销毁时注销；过期或重复的句柄返回 false
func (s *Session) Unregister(h Handle) bool {
	switch h.kind {
	case kindSender:
		return s.senders.remove(h.index, h.gen)
	case kindReceiver:
		return s.receivers.remove(h.index, h.gen)
	default:
		return false
	}
}

// Senders / Receivers 当前注册数量
func (s *Session) Senders() int   { return s.senders.len() }
func (s *Session) Receivers() int { return s.receivers.len() }

// PumpOnce 每个 Tick 调用一次：先发送一轮，再至多处理一帧入站消息。未连接时为 no-op。
func (s *Session) PumpOnce() {
	if s.State() != StateConnected {
		return
	}
	start := time.Now()
	s.flush()
	if s.State() == StateConnected {
		s.receiveOnce()
	}
	s.expireLobbyRequests()
	s.metrics.AddPump(time.Since(start).Nanoseconds())
}

// flush 每个发送者的缓冲按顺序打包为 COMMANDS 消息；超过单帧上限时拆成多帧
func (s *Session) flush() {
	s.senders.each(func(id PlayerID, buf *OutboundBuffer) {
		// 前一个发送者的失败可能已断开连接
		if s.State() != StateConnected {
			return
		}
		names := buf.Drain()
		if len(names) == 0 {
			return
		}
		frames, dropped, err := s.split(id, names)
		if err != nil {
			s.metrics.IncSendFailures()
			Log.Warnf("encode commands failed: player=%s n=%d err=%v", id, len(names), err)
			return
		}
		if dropped > 0 {
			s.metrics.IncSendFailures()
			Log.Warnf("drop oversize commands: player=%s n=%d max=%d", id, dropped, s.maxFrame)
		}
		for _, f := range frames {
			if err := s.sendFrame(f.data); err != nil {
				s.metrics.IncSendFailures()
				Log.Warnf("send commands failed: player=%s n=%d err=%v", id, f.n, err)
				return
			}
			s.metrics.AddCommandsSent(f.n)
		}
	})
}

type batch struct {
	data []byte
	n    int
}

// split 贪心地把连续的指令装进不超过 maxFrame 的帧；单条指令本身放不下时丢弃并计数
func (s *Session) split(id PlayerID, names []string) ([]batch, int, error) {
	var (
		out     []batch
		last    []byte
		start   int
		dropped int
	)
	for i := 0; i < len(names); i++ {
		b, err := s.codec.Encode(CommandsMessage{Player: id, List: names[start : i+1]})
		if err != nil {
			return nil, 0, err
		}
		if len(b) <= s.maxFrame {
			last = b
			continue
		}
		if i > start {
			// 当前帧已满：发出前面的部分，第 i 条重新开一帧
			out = append(out, batch{data: last, n: i - start})
			start, last = i, nil
			i--
			continue
		}
		dropped++
		start, last = i+1, nil
	}
	if last != nil {
		out = append(out, batch{data: last, n: len(names) - start})
	}
	return out, dropped, nil
}

func (s *Session) send(env Envelope) error {
	b, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	return s.sendFrame(b)
}

func (s *Session) sendFrame(b []byte) error {
	if s.transport == nil {
		return ErrNotConnected
	}
	if err := s.transport.SendFrame(b); err != nil {
		if errors.Is(err, ErrTransportClosed) {
			s.lost(err)
		}
		return err
	}
	s.metrics.IncFramesSent()
	return nil
}

// receiveOnce 至多取一帧并分发；返回是否取到帧
func (s *Session) receiveOnce() bool {
	if s.transport == nil {
		return false
	}
	b, ok, err := s.transport.TryReceiveFrame()
	if err != nil {
		s.lost(err)
		return false
	}
	if !ok {
		return false
	}
	s.metrics.IncFramesReceived()
	env, err := s.codec.Decode(b)
	if err != nil {
		// 无法解析的消息直接丢弃
		s.metrics.IncProtocolErrors()
		Log.Warnf("discard frame: %v", err)
		return true
	}
	s.dispatch(env)
	return true
}

func (s *Session) dispatch(env Envelope) {
	switch m := env.(type) {
	case CommandsMessage:
		q, ok := s.receivers.lookup(m.Player)
		if !ok {
			s.metrics.IncRegistryMisses()
			Log.Debugf("discard commands for unregistered player: player=%s n=%d", m.Player, len(m.List))
			return
		}
		q.Push(m.List...)
		s.metrics.AddCommandsReceived(len(m.List))
	case LobbyListMessage:
		s.resolveLobbies(m.Lobbies)
	case LobbyRequestMessage:
		Log.Debugf("discard inbound lobby request")
	}
}
