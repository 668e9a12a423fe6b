package netplay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultMaxFrame 单帧最大字节数（与原服务端的消息缓冲一致）
	DefaultMaxFrame = 512
	// DefaultQueueSize 收发队列容量
	DefaultQueueSize = 64

	writeWait = 5 * time.Second
)

// Transport 帧传输：连接、发送一帧、非阻塞地尝试取一帧
type Transport interface {
	Connect(ctx context.Context, addr string) error
	SendFrame(frame []byte) error
	// TryReceiveFrame 无数据时返回 (nil, false, nil)，不阻塞
	TryReceiveFrame() ([]byte, bool, error)
	Close() error
}

// TransportOptions 传输层参数
type TransportOptions struct {
	MaxFrame  int
	QueueSize int
	// Binary 为 true 时 websocket 以二进制帧发送（msgpack）
	Binary bool
}

func (o TransportOptions) withDefaults() TransportOptions {
	if o.MaxFrame <= 0 {
		o.MaxFrame = DefaultMaxFrame
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	return o
}

// NewTransport 按地址前缀选择实现：ws:// wss:// → websocket；tcp:// 或 host:port → TCP 按行分帧
func NewTransport(addr string, opts TransportOptions) (Transport, error) {
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		return NewWSTransport(opts), nil
	case strings.HasPrefix(addr, "tcp://"), !strings.Contains(addr, "://"):
		if opts.Binary {
			return nil, fmt.Errorf("netplay: binary frames are not supported over line-framed tcp")
		}
		return NewTCPTransport(opts), nil
	default:
		return nil, fmt.Errorf("netplay: unsupported address %q", addr)
	}
}

// pumpedConn 读写各一个协程，Tick 线程只通过通道非阻塞地收发
type pumpedConn struct {
	inbox  chan []byte
	send   chan []byte
	closed chan struct{}
	done   chan struct{} // 读协程退出

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closeFn   func() error
	closeErr  error
}

func newPumpedConn(queue int, read func() ([]byte, error), write func([]byte) error, closeFn func() error) *pumpedConn {
	c := &pumpedConn{
		inbox:   make(chan []byte, queue),
		send:    make(chan []byte, queue),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
		closeFn: closeFn,
	}
	go c.readPump(read)
	go c.writePump(write)
	return c
}

func (c *pumpedConn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *pumpedConn) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// readPump 读到的帧投递到 inbox；inbox 满时等待消费（不丢入站帧）
func (c *pumpedConn) readPump(read func() ([]byte, error)) {
	defer close(c.done)
	for {
		b, err := read()
		if err != nil {
			c.fail(err)
			return
		}
		select {
		case c.inbox <- b:
		case <-c.closed:
			return
		}
	}
}

// writePump 从 send 队列写出
func (c *pumpedConn) writePump(write func([]byte) error) {
	for {
		select {
		case msg := <-c.send:
			if err := write(msg); err != nil {
				c.fail(err)
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// SendFrame 非阻塞入队，满则返回 ErrSendQueueFull
func (c *pumpedConn) SendFrame(frame []byte) error {
	select {
	case <-c.closed:
		return ErrTransportClosed
	default:
	}
	if err := c.failure(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *pumpedConn) TryReceiveFrame() ([]byte, bool, error) {
	select {
	case b := <-c.inbox:
		return b, true, nil
	default:
	}
	select {
	case <-c.done:
		if err := c.failure(); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrTransportClosed, err)
		}
		return nil, false, ErrTransportClosed
	default:
		return nil, false, nil
	}
}

func (c *pumpedConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.closeFn()
	})
	return c.closeErr
}

// WSTransport 基于 gorilla/websocket 的客户端连接
type WSTransport struct {
	opts   TransportOptions
	dialer *websocket.Dialer
	*pumpedConn
}

func NewWSTransport(opts TransportOptions) *WSTransport {
	return &WSTransport{
		opts: opts.withDefaults(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

func (t *WSTransport) Connect(ctx context.Context, addr string) error {
	if t.pumpedConn != nil {
		return ErrAlreadyConnected
	}
	ws, _, err := t.dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return err
	}
	ws.SetReadLimit(int64(t.opts.MaxFrame))
	msgType := websocket.TextMessage
	if t.opts.Binary {
		msgType = websocket.BinaryMessage
	}
	read := func() ([]byte, error) {
		_, p, err := ws.ReadMessage()
		return p, err
	}
	write := func(b []byte) error {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteMessage(msgType, b)
	}
	closeFn := func() error {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return ws.Close()
	}
	t.pumpedConn = newPumpedConn(t.opts.QueueSize, read, write, closeFn)
	return nil
}

func (t *WSTransport) SendFrame(frame []byte) error {
	if t.pumpedConn == nil {
		return ErrNotConnected
	}
	// 对端以同样的上限 SetReadLimit，超限会被对端断开
	if len(frame) > t.opts.MaxFrame {
		return ErrFrameTooLarge
	}
	return t.pumpedConn.SendFrame(frame)
}

func (t *WSTransport) TryReceiveFrame() ([]byte, bool, error) {
	if t.pumpedConn == nil {
		return nil, false, ErrNotConnected
	}
	return t.pumpedConn.TryReceiveFrame()
}

func (t *WSTransport) Close() error {
	if t.pumpedConn == nil {
		return nil
	}
	return t.pumpedConn.Close()
}

// TCPTransport 原始 TCP 流，每帧以 '\n' 结尾
type TCPTransport struct {
	opts   TransportOptions
	dialer net.Dialer
	*pumpedConn
}

func NewTCPTransport(opts TransportOptions) *TCPTransport {
	return &TCPTransport{
		opts:   opts.withDefaults(),
		dialer: net.Dialer{Timeout: 10 * time.Second},
	}
}

func (t *TCPTransport) Connect(ctx context.Context, addr string) error {
	if t.pumpedConn != nil {
		return ErrAlreadyConnected
	}
	conn, err := t.dialer.DialContext(ctx, "tcp", strings.TrimPrefix(addr, "tcp://"))
	if err != nil {
		return err
	}
	sc := bufio.NewScanner(conn)
	// 行尾换行符也计入缓冲
	sc.Buffer(make([]byte, 0, 256), t.opts.MaxFrame+1)
	read := func() ([]byte, error) {
		for sc.Scan() {
			line := bytes.TrimRight(sc.Bytes(), "\r")
			if len(line) == 0 {
				continue
			}
			return append([]byte(nil), line...), nil
		}
		err := sc.Err()
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, ErrFrameTooLarge
		}
		if err == nil {
			err = ErrTransportClosed
		}
		return nil, err
	}
	write := func(b []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_, err := conn.Write(append(b, '\n'))
		return err
	}
	t.pumpedConn = newPumpedConn(t.opts.QueueSize, read, write, conn.Close)
	return nil
}

func (t *TCPTransport) SendFrame(frame []byte) error {
	if t.pumpedConn == nil {
		return ErrNotConnected
	}
	if bytes.IndexByte(frame, '\n') >= 0 {
		return fmt.Errorf("netplay: frame contains newline")
	}
	if len(frame) > t.opts.MaxFrame {
		return ErrFrameTooLarge
	}
	return t.pumpedConn.SendFrame(frame)
}

func (t *TCPTransport) TryReceiveFrame() ([]byte, bool, error) {
	if t.pumpedConn == nil {
		return nil, false, ErrNotConnected
	}
	return t.pumpedConn.TryReceiveFrame()
}

func (t *TCPTransport) Close() error {
	if t.pumpedConn == nil {
		return nil
	}
	return t.pumpedConn.Close()
}
