package netplay

import (
	"context"
	"sync"
)

// PipeTransport 进程内的一对传输端（本地分屏、测试中的假对端）
type PipeTransport struct {
	mu     sync.Mutex
	inbox  [][]byte
	closed bool
	peer   *PipeTransport

	// ConnectErr 非空时 Connect 返回该错误（模拟连接失败）
	ConnectErr error
}

// Pipe 返回互相连通的两端
func Pipe() (*PipeTransport, *PipeTransport) {
	a, b := &PipeTransport{}, &PipeTransport{}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeTransport) Connect(ctx context.Context, addr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConnectErr != nil {
		return p.ConnectErr
	}
	p.closed = false
	return nil
}

func (p *PipeTransport) SendFrame(frame []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	p.peer.deliver(append([]byte(nil), frame...))
	return nil
}

func (p *PipeTransport) deliver(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.inbox = append(p.inbox, frame)
}

func (p *PipeTransport) TryReceiveFrame() ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inbox) == 0 {
		if p.closed {
			return nil, false, ErrTransportClosed
		}
		return nil, false, nil
	}
	b := p.inbox[0]
	p.inbox = p.inbox[1:]
	return b, true, nil
}

// Pending 尚未被取走的帧数
func (p *PipeTransport) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inbox)
}

func (p *PipeTransport) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.inbox = nil
	return nil
}
