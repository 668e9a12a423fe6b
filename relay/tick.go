package relay

import "time"

const (
	// TicksPerSecond 转发频率（20 TPS）
	TicksPerSecond = 20
)

var tickInterval = time.Duration(1000/TicksPerSecond) * time.Millisecond // 50ms

// StartTicker 启动房间的 Tick 循环（单线程处理成员与转发）
func (r *Room) StartTicker() {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				start := time.Now()
				r.ProcessFrames()
				r.metrics.AddTick(time.Since(start).Nanoseconds())
			case <-r.stop:
				r.ProcessFrames()
				r.closeAll()
				return
			}
		}
	}()
}

// Stop 结束 Tick 循环
func (r *Room) Stop() {
	close(r.stop)
}
