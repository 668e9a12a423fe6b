package netplay

import (
	"sync/atomic"
)

// Metrics 会话运行期的关键计数（用于监控与调试，可被 HTTP 协程并发读取）
type Metrics struct {
	PumpCount        int64 // Pump 次数
	FramesSent       int64 // 发送的帧数
	FramesReceived   int64 // 收到的帧数
	CommandsSent     int64 // 发送的指令数
	CommandsReceived int64 // 入队到远端队列的指令数
	SendFailures     int64 // 编码或发送失败
	ProtocolErrors   int64 // 无法解析的帧
	UnknownCommands  int64 // 目录外的指令名
	RegistryMisses   int64 // 未注册玩家的消息
	LobbyRequests    int64 // 大厅查询次数
	LobbyTimeouts    int64 // 大厅查询超时
	TotalPumpNs      int64 // Pump 累计耗时（纳秒）
}

func (m *Metrics) IncFramesSent()            { atomic.AddInt64(&m.FramesSent, 1) }
func (m *Metrics) IncFramesReceived()        { atomic.AddInt64(&m.FramesReceived, 1) }
func (m *Metrics) AddCommandsSent(n int)     { atomic.AddInt64(&m.CommandsSent, int64(n)) }
func (m *Metrics) AddCommandsReceived(n int) { atomic.AddInt64(&m.CommandsReceived, int64(n)) }
func (m *Metrics) IncSendFailures()          { atomic.AddInt64(&m.SendFailures, 1) }
func (m *Metrics) IncProtocolErrors()        { atomic.AddInt64(&m.ProtocolErrors, 1) }
func (m *Metrics) IncUnknownCommands()       { atomic.AddInt64(&m.UnknownCommands, 1) }
func (m *Metrics) IncRegistryMisses()        { atomic.AddInt64(&m.RegistryMisses, 1) }
func (m *Metrics) IncLobbyRequests()         { atomic.AddInt64(&m.LobbyRequests, 1) }
func (m *Metrics) IncLobbyTimeouts()         { atomic.AddInt64(&m.LobbyTimeouts, 1) }

func (m *Metrics) AddPump(ns int64) {
	atomic.AddInt64(&m.PumpCount, 1)
	atomic.AddInt64(&m.TotalPumpNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	pumps := atomic.LoadInt64(&m.PumpCount)
	total := atomic.LoadInt64(&m.TotalPumpNs)
	var avgMs float64
	if pumps > 0 {
		avgMs = float64(total) / float64(pumps) / 1e6
	}
	return map[string]any{
		"pump_count":        pumps,
		"frames_sent":       atomic.LoadInt64(&m.FramesSent),
		"frames_received":   atomic.LoadInt64(&m.FramesReceived),
		"commands_sent":     atomic.LoadInt64(&m.CommandsSent),
		"commands_received": atomic.LoadInt64(&m.CommandsReceived),
		"send_failures":     atomic.LoadInt64(&m.SendFailures),
		"protocol_errors":   atomic.LoadInt64(&m.ProtocolErrors),
		"unknown_commands":  atomic.LoadInt64(&m.UnknownCommands),
		"registry_misses":   atomic.LoadInt64(&m.RegistryMisses),
		"lobby_requests":    atomic.LoadInt64(&m.LobbyRequests),
		"lobby_timeouts":    atomic.LoadInt64(&m.LobbyTimeouts),
		"avg_pump_ms":       avgMs,
	}
}
