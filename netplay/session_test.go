package netplay

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConnectFailureIsRecoverable(t *testing.T) {
	local, _ := Pipe()
	local.ConnectErr = errors.New("connection refused")
	s := NewSession(WithTransport(local))

	err := s.Connect(context.Background(), "149.153.106.152:1234")
	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *ConnectionError", err)
	}
	if cerr.Addr != "149.153.106.152:1234" {
		t.Fatalf("addr = %q", cerr.Addr)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", s.State())
	}
	// 离线时 pump 为 no-op
	s.PumpOnce()
	if s.Metrics().PumpCount != 0 {
		t.Fatalf("pump should not run while disconnected")
	}

	// 重试成功
	local.ConnectErr = nil
	if err := s.Connect(context.Background(), "retry"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.State() != StateConnected {
		t.Fatalf("state = %v, want connected", s.State())
	}
	if err := s.Connect(context.Background(), "again"); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second connect err = %v", err)
	}
}

func TestConnectFactoryError(t *testing.T) {
	s := NewSession()
	err := s.Connect(context.Background(), "udp://nowhere")
	var cerr *ConnectionError
	if !errors.As(err, &cerr) || s.State() != StateDisconnected {
		t.Fatalf("err = %v state = %v", err, s.State())
	}
}

func TestPumpSendsSingleCommandFrame(t *testing.T) {
	s, peer := connectedPipe(t)
	buf := NewOutboundBuffer()
	if _, err := s.RegisterSender(3, buf); err != nil {
		t.Fatalf("register: %v", err)
	}
	buf.Push("JUMP")
	s.PumpOnce()

	if got := string(recvFrame(t, peer)); got != `{"type":"COMMANDS","player":3,"list":["JUMP"]}` {
		t.Fatalf("frame = %s", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("buffer should be drained")
	}

	// 空缓冲不发送
	s.PumpOnce()
	if peer.Pending() != 0 {
		t.Fatalf("empty buffer must not send")
	}
}

func TestPumpBatchesBurst(t *testing.T) {
	s, peer := connectedPipe(t)
	buf := NewOutboundBuffer()
	if _, err := s.RegisterSender(3, buf); err != nil {
		t.Fatalf("register: %v", err)
	}
	buf.Push("JUMP")
	buf.Push("PUNCH")
	s.PumpOnce()

	if got := string(recvFrame(t, peer)); got != `{"type":"COMMANDS","player":3,"list":["JUMP","PUNCH"]}` {
		t.Fatalf("frame = %s, want both commands batched in one envelope", got)
	}
	if peer.Pending() != 0 {
		t.Fatalf("burst must be sent as a single frame")
	}
	if buf.Len() != 0 {
		t.Fatalf("buffer should be empty after flush, len=%d", buf.Len())
	}
	if s.Metrics().CommandsSent != 2 || s.Metrics().FramesSent != 1 {
		t.Fatalf("metrics = %v", s.Metrics().Snapshot())
	}
}

func TestPumpOneFramePerSenderInRegistrationOrder(t *testing.T) {
	s, peer := connectedPipe(t)
	a, b := NewOutboundBuffer(), NewOutboundBuffer()
	s.RegisterSender(1, a)
	s.RegisterSender(2, b)
	a.Push("KICK")
	b.Push("MOVE LEFT")
	s.PumpOnce()

	first, second := string(recvFrame(t, peer)), string(recvFrame(t, peer))
	if first != `{"type":"COMMANDS","player":1,"list":["KICK"]}` ||
		second != `{"type":"COMMANDS","player":2,"list":["MOVE LEFT"]}` {
		t.Fatalf("frames = %s, %s", first, second)
	}
}

func TestPumpReceivesAtMostOneFrame(t *testing.T) {
	s, peer := connectedPipe(t)
	q := NewRemoteQueue()
	if _, err := s.RegisterReceiver(4, q); err != nil {
		t.Fatalf("register: %v", err)
	}
	sendEnvelope(t, peer, CommandsMessage{Player: 4, List: []string{"JUMP", "PUNCH"}})
	sendEnvelope(t, peer, CommandsMessage{Player: 4, List: []string{"KICK"}})

	s.PumpOnce()
	if q.Len() != 2 {
		t.Fatalf("after first pump len=%d, want 2", q.Len())
	}
	s.PumpOnce()
	var got []string
	for q.Len() > 0 {
		name, _ := q.Pop()
		got = append(got, name)
	}
	if want := []string{"JUMP", "PUNCH", "KICK"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}

	// 没有数据时 pump 无副作用
	s.PumpOnce()
	if s.Metrics().FramesReceived != 2 {
		t.Fatalf("frames received = %d", s.Metrics().FramesReceived)
	}
}

func TestPumpDiscardsBadFramesAndUnknownPlayers(t *testing.T) {
	logs := observeLogs(t)
	s, peer := connectedPipe(t)
	q := NewRemoteQueue()
	s.RegisterReceiver(2, q)

	peer.SendFrame([]byte(`{"type":`))
	sendEnvelope(t, peer, CommandsMessage{Player: 9, List: []string{"JUMP"}})
	sendEnvelope(t, peer, LobbyRequestMessage{})
	sendEnvelope(t, peer, CommandsMessage{Player: 2, List: []string{"SUPER"}})
	for i := 0; i < 4; i++ {
		s.PumpOnce()
	}

	if s.State() != StateConnected {
		t.Fatalf("bad frames must not drop the connection")
	}
	if name, ok := q.Pop(); !ok || name != "SUPER" {
		t.Fatalf("queue got %q %v, want SUPER", name, ok)
	}
	m := s.Metrics()
	if m.ProtocolErrors != 1 || m.RegistryMisses != 1 {
		t.Fatalf("metrics = %v", m.Snapshot())
	}
	if logs.FilterMessageSnippet("discard frame").Len() != 1 {
		t.Fatalf("expected one discard warning, got %v", logs.All())
	}
}

func TestRegistryHandles(t *testing.T) {
	s := NewSession()
	q := NewRemoteQueue()
	h, err := s.RegisterReceiver(2, q)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.RegisterReceiver(2, NewRemoteQueue()); !errors.Is(err, ErrDuplicatePlayer) {
		t.Fatalf("duplicate err = %v", err)
	}
	if _, err := s.RegisterSender(0, NewOutboundBuffer()); !errors.Is(err, ErrInvalidPlayer) {
		t.Fatalf("invalid id err = %v", err)
	}
	if _, err := s.RegisterSender(2, nil); err == nil {
		t.Fatalf("nil buffer must be rejected")
	}
	// 同一编号的发送与接收互不冲突
	if _, err := s.RegisterSender(2, NewOutboundBuffer()); err != nil {
		t.Fatalf("sender with receiver id: %v", err)
	}

	if !s.Unregister(h) {
		t.Fatalf("unregister failed")
	}
	if s.Unregister(h) {
		t.Fatalf("double unregister should report false")
	}
	// 槽位复用后旧句柄失效
	q2 := NewRemoteQueue()
	h2, err := s.RegisterReceiver(5, q2)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if h2.index != h.index {
		t.Fatalf("expected slot reuse, got %d vs %d", h2.index, h.index)
	}
	if s.Unregister(h) {
		t.Fatalf("stale handle must not remove the new entry")
	}
	if got, ok := s.receivers.lookup(5); !ok || got != q2 {
		t.Fatalf("new entry lost")
	}
	if s.Unregister(Handle{}) {
		t.Fatalf("zero handle must be rejected")
	}
}

func TestUnregisteredReceiverNoLongerFed(t *testing.T) {
	s, peer := connectedPipe(t)
	roster := NewPlayerRoster(s)
	id, rc, err := roster.AddRemote()
	if err != nil {
		t.Fatalf("add remote: %v", err)
	}
	roster.Remove(id)
	sendEnvelope(t, peer, CommandsMessage{Player: id, List: []string{"JUMP"}})
	s.PumpOnce()
	if rc.Queue().Len() != 0 {
		t.Fatalf("destroyed player still receives commands")
	}
	if s.Metrics().RegistryMisses != 1 {
		t.Fatalf("expected registry miss, metrics=%v", s.Metrics().Snapshot())
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	s, peer := connectedPipe(t)
	buf := NewOutboundBuffer()
	s.RegisterSender(1, buf)
	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("state = %v", s.State())
	}
	buf.Push("JUMP")
	s.PumpOnce()
	if peer.Pending() != 0 {
		t.Fatalf("disconnected session must not send")
	}
	if buf.Len() != 1 {
		t.Fatalf("buffer must be left untouched while offline")
	}
}

func TestTransportFailureDropsToDisconnected(t *testing.T) {
	s, peer := connectedPipe(t)
	req, err := s.RequestLobbies(time.Minute)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	recvFrame(t, peer)

	s.transport.(*PipeTransport).Close()
	s.PumpOnce()
	if s.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", s.State())
	}
	if _, err := req.Result(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("pending request err = %v", err)
	}
}

func TestLobbyPhases(t *testing.T) {
	s := NewSession()
	if err := s.HostLobby("a"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("host while offline err = %v", err)
	}
	s, _ = connectedPipe(t)
	if err := s.StartGame(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("start without lobby err = %v", err)
	}
	if err := s.JoinLobby("Lobby A"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.HostLobby("Lobby B"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("host while joined err = %v", err)
	}
	if err := s.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Phase() != PhaseInGame || s.Lobby() != "Lobby A" {
		t.Fatalf("phase=%v lobby=%q", s.Phase(), s.Lobby())
	}
	if err := s.LeaveLobby(); err != nil || s.Phase() != PhaseNone || s.Lobby() != "" {
		t.Fatalf("leave: err=%v phase=%v", err, s.Phase())
	}
	if err := s.LeaveLobby(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second leave err = %v", err)
	}
	s.HostLobby("Lobby C")
	s.Disconnect()
	if s.Phase() != PhaseNone {
		t.Fatalf("disconnect should reset phase, got %v", s.Phase())
	}
}

func TestRosterAssignsIDsAndWiresSession(t *testing.T) {
	s, peer := connectedPipe(t)
	roster := NewPlayerRoster(s)
	localID, local, err := roster.AddLocal()
	if err != nil {
		t.Fatalf("add local: %v", err)
	}
	remoteID, remote, err := roster.AddRemote()
	if err != nil {
		t.Fatalf("add remote: %v", err)
	}
	if localID != 1 || remoteID != 2 {
		t.Fatalf("ids = %v, %v", localID, remoteID)
	}
	if s.Senders() != 1 || s.Receivers() != 1 {
		t.Fatalf("registry senders=%d receivers=%d", s.Senders(), s.Receivers())
	}

	me, them := &recorder{}, &recorder{}
	local.Update(InputState{Held: StickRight}, me)
	sendEnvelope(t, peer, CommandsMessage{Player: remoteID, List: []string{"TELEPORT"}})
	s.PumpOnce()
	remote.Update(them)

	if got := string(recvFrame(t, peer)); got != `{"type":"COMMANDS","player":1,"list":["MOVE RIGHT"]}` {
		t.Fatalf("frame = %s", got)
	}
	if s.Metrics().UnknownCommands != 1 {
		t.Fatalf("unknown command not counted: %v", s.Metrics().Snapshot())
	}
	if got, ok := roster.Local(localID); !ok || got != local {
		t.Fatalf("roster lookup failed")
	}

	roster.Remove(localID)
	roster.Remove(remoteID)
	if s.Senders() != 0 || s.Receivers() != 0 {
		t.Fatalf("remove left registrations behind")
	}
}

func TestPumpSplitsBurstAtMaxFrame(t *testing.T) {
	const maxFrame = 64
	s, peer := connectedPipe(t, WithMaxFrame(maxFrame))
	buf := NewOutboundBuffer()
	s.RegisterSender(3, buf)
	var want []string
	for i := 0; i < 10; i++ {
		name := []string{NameJump, NameMoveRight, NamePunch}[i%3]
		buf.Push(name)
		want = append(want, name)
	}
	s.PumpOnce()

	var got []string
	frames := 0
	for peer.Pending() > 0 {
		b := recvFrame(t, peer)
		if len(b) > maxFrame {
			t.Fatalf("frame of %d bytes exceeds %d: %s", len(b), maxFrame, b)
		}
		env, err := JSONCodec{}.Decode(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, env.(CommandsMessage).List...)
		frames++
	}
	if frames < 2 {
		t.Fatalf("expected the burst to be split, got %d frame(s)", frames)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	m := s.Metrics()
	if m.CommandsSent != 10 || m.SendFailures != 0 || m.FramesSent != int64(frames) {
		t.Fatalf("metrics = %v", m.Snapshot())
	}
}

func TestPumpDropsCommandLargerThanAFrame(t *testing.T) {
	s, peer := connectedPipe(t, WithMaxFrame(64))
	buf := NewOutboundBuffer()
	s.RegisterSender(3, buf)
	buf.Push(NameJump)
	buf.Push(strings.Repeat("X", 40))
	buf.Push(NameKick)
	s.PumpOnce()

	if got := string(recvFrame(t, peer)); got != `{"type":"COMMANDS","player":3,"list":["JUMP"]}` {
		t.Fatalf("first frame = %s", got)
	}
	if got := string(recvFrame(t, peer)); got != `{"type":"COMMANDS","player":3,"list":["KICK"]}` {
		t.Fatalf("second frame = %s", got)
	}
	if s.Metrics().SendFailures != 1 || s.State() != StateConnected {
		t.Fatalf("state=%v metrics=%v", s.State(), s.Metrics().Snapshot())
	}
}

func TestReconnectDiscardsOfflineInput(t *testing.T) {
	s, peer := connectedPipe(t)
	roster := NewPlayerRoster(s)
	_, local, err := roster.AddLocal()
	if err != nil {
		t.Fatalf("add local: %v", err)
	}
	r := &recorder{}
	var in InputState
	in = in.Next(ButtonJump)
	local.Update(in, r)
	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if local.Buffer().Len() != 0 {
		t.Fatalf("disconnect left %d commands buffered", local.Buffer().Len())
	}

	both := ButtonLeftShoulder | ButtonRightShoulder
	for i := 0; i < 1000; i++ {
		in = in.Next(both)
		local.Update(in, r)
		s.PumpOnce()
	}
	if n := local.Buffer().Len(); n > DefaultOutboundLimit {
		t.Fatalf("offline buffer grew to %d", n)
	}

	if err := s.Connect(context.Background(), "pipe"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	s.PumpOnce()
	if peer.Pending() != 0 {
		t.Fatalf("stale input replayed after reconnect: %s", recvFrame(t, peer))
	}

	in = in.Next(ButtonKick)
	local.Update(in, r)
	s.PumpOnce()
	if got := string(recvFrame(t, peer)); got != `{"type":"COMMANDS","player":1,"list":["KICK"]}` {
		t.Fatalf("frame after reconnect = %s", got)
	}
}

func TestFlushOrderSurvivesSlotReuse(t *testing.T) {
	s, peer := connectedPipe(t)
	one, two, three := NewOutboundBuffer(), NewOutboundBuffer(), NewOutboundBuffer()
	h1, _ := s.RegisterSender(1, one)
	s.RegisterSender(2, two)
	s.Unregister(h1)
	s.RegisterSender(3, three)
	two.Push(NameKick)
	three.Push(NameJump)
	s.PumpOnce()

	first, second := string(recvFrame(t, peer)), string(recvFrame(t, peer))
	if first != `{"type":"COMMANDS","player":2,"list":["KICK"]}` ||
		second != `{"type":"COMMANDS","player":3,"list":["JUMP"]}` {
		t.Fatalf("frames = %s, %s; want player 2 before player 3", first, second)
	}
}

func TestFlushStopsAfterConnectionLoss(t *testing.T) {
	s, _ := connectedPipe(t)
	a, b := NewOutboundBuffer(), NewOutboundBuffer()
	s.RegisterSender(1, a)
	s.RegisterSender(2, b)
	a.Push(NameJump)
	b.Push(NamePunch)

	s.transport.(*PipeTransport).Close()
	s.PumpOnce()
	if s.State() != StateDisconnected {
		t.Fatalf("state = %v", s.State())
	}
	if got := s.Metrics().SendFailures; got != 1 {
		t.Fatalf("send failures = %d, want only the failing sender counted", got)
	}
	if a.Len() != 0 || b.Len() != 0 {
		t.Fatalf("buffers not cleared on loss: %d %d", a.Len(), b.Len())
	}
}
