package netplay

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// recorder 记录被执行的动作
type recorder struct {
	calls     []string
	attacking bool
}

func (r *recorder) MoveLeft()          { r.calls = append(r.calls, "MoveLeft") }
func (r *recorder) MoveRight()         { r.calls = append(r.calls, "MoveRight") }
func (r *recorder) Jump()              { r.calls = append(r.calls, "Jump") }
func (r *recorder) Punch()             { r.calls = append(r.calls, "Punch") }
func (r *recorder) Kick()              { r.calls = append(r.calls, "Kick") }
func (r *recorder) Uppercut()          { r.calls = append(r.calls, "Uppercut") }
func (r *recorder) Super()             { r.calls = append(r.calls, "Super") }
func (r *recorder) PhaseDown()         { r.calls = append(r.calls, "PhaseDown") }
func (r *recorder) Idle()              { r.calls = append(r.calls, "Idle") }
func (r *recorder) AttackActive() bool { return r.attacking }

func (r *recorder) last() string {
	if len(r.calls) == 0 {
		return ""
	}
	return r.calls[len(r.calls)-1]
}

// fakeClock 手动推进的时钟
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// connectedPipe 返回已连接到管道一端的会话，以及作为假对端的另一端
func connectedPipe(t *testing.T, opts ...Option) (*Session, *PipeTransport) {
	t.Helper()
	local, peer := Pipe()
	s := NewSession(append([]Option{WithTransport(local)}, opts...)...)
	if err := s.Connect(context.Background(), "pipe"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return s, peer
}

// recvFrame 从对端取一帧（测试中对端与会话在同一协程，帧已同步投递）
func recvFrame(t *testing.T, p *PipeTransport) []byte {
	t.Helper()
	b, ok, err := p.TryReceiveFrame()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !ok {
		t.Fatalf("expected a frame, got none")
	}
	return b
}

func sendEnvelope(t *testing.T, p *PipeTransport, env Envelope) {
	t.Helper()
	b, err := JSONCodec{}.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := p.SendFrame(b); err != nil {
		t.Fatalf("send: %v", err)
	}
}

// observeLogs 替换全局日志，返回观察到的日志
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	prev := Log
	Log = zap.New(core).Sugar()
	t.Cleanup(func() { Log = prev })
	return logs
}
