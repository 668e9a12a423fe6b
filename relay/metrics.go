package relay

import (
	"sync/atomic"
)

// Metrics 记录中继运行期的关键指标（用于监控与调试）
type Metrics struct {
	TickCount         int64 // 统计的 Tick 次数
	Connections       int64 // 累计接入的连接数
	Forwarded         int64 // 成功入队转发的帧数
	LobbyRequests     int64 // 大厅查询次数
	DecodeErrors      int64 // 无法解析的帧
	ChanFullDiscarded int64 // 因房间通道满被丢弃的帧
	SendQueueFull     int64 // 因成员发送队列满被丢弃的帧
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *Metrics) IncConnections()       { atomic.AddInt64(&m.Connections, 1) }
func (m *Metrics) IncForwarded()         { atomic.AddInt64(&m.Forwarded, 1) }
func (m *Metrics) IncLobbyRequests()     { atomic.AddInt64(&m.LobbyRequests, 1) }
func (m *Metrics) IncDecodeErrors()      { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *Metrics) IncSendQueueFull()     { atomic.AddInt64(&m.SendQueueFull, 1) }
func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"connections":         atomic.LoadInt64(&m.Connections),
		"forwarded":           atomic.LoadInt64(&m.Forwarded),
		"lobby_requests":      atomic.LoadInt64(&m.LobbyRequests),
		"decode_errors":       atomic.LoadInt64(&m.DecodeErrors),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"send_queue_full":     atomic.LoadInt64(&m.SendQueueFull),
		"avg_tick_ms":         avgMs,
	}
}
