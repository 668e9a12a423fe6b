package netplay

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected      = errors.New("netplay: not connected")
	ErrAlreadyConnected  = errors.New("netplay: already connected")
	ErrDuplicatePlayer   = errors.New("netplay: player already registered")
	ErrInvalidPlayer     = errors.New("netplay: invalid player id")
	ErrInvalidTransition = errors.New("netplay: invalid lobby transition")
	ErrLobbyTimeout      = errors.New("netplay: lobby request timed out")
	ErrRequestCancelled  = errors.New("netplay: lobby request cancelled")
	ErrRequestPending    = errors.New("netplay: lobby request pending")
	ErrTransportClosed   = errors.New("netplay: transport closed")
	ErrSendQueueFull     = errors.New("netplay: send queue full")
	ErrFrameTooLarge     = errors.New("netplay: frame too large")
)

// ConnectionError 建立连接失败（可恢复：会话保持 Disconnected）
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("netplay: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError 无法解析或缺少类型标签的消息（丢弃，不中断 pump）
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("netplay: protocol: %s: %v", e.Reason, e.Err)
	}
	return "netplay: protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolErrorf(err error, format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...), Err: err}
}
