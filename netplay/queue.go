package netplay

// DefaultOutboundLimit 出站缓冲上限；断线期间 PumpOnce 不取走缓冲，超过上限丢弃最旧的指令
const DefaultOutboundLimit = 256

// OutboundBuffer 本地玩家待发送的指令名（FIFO），由输入组件写入、会话发送时取走
type OutboundBuffer struct {
	names   []string
	limit   int
	dropped int
}

func NewOutboundBuffer() *OutboundBuffer { return &OutboundBuffer{limit: DefaultOutboundLimit} }

// Push 追加一个指令名
func (b *OutboundBuffer) Push(name string) {
	if b.limit > 0 && len(b.names) >= b.limit {
		b.names = append(b.names[:0], b.names[1:]...)
		b.dropped++
	}
	b.names = append(b.names, name)
}

func (b *OutboundBuffer) Len() int { return len(b.names) }

// Dropped 因超过上限被丢弃的指令数
func (b *OutboundBuffer) Dropped() int { return b.dropped }

// Drain 按顺序取走全部待发送指令
func (b *OutboundBuffer) Drain() []string {
	if len(b.names) == 0 {
		return nil
	}
	out := b.names
	b.names = nil
	return out
}

// RemoteQueue 对端发来的指令名（FIFO），由会话写入、远端输入组件逐帧消费
type RemoteQueue struct {
	names []string
	head  int
}

func NewRemoteQueue() *RemoteQueue { return &RemoteQueue{} }

// Push 按给定顺序入队
func (q *RemoteQueue) Push(names ...string) {
	q.names = append(q.names, names...)
}

// Pop 取出队首
func (q *RemoteQueue) Pop() (string, bool) {
	if q.head >= len(q.names) {
		return "", false
	}
	name := q.names[q.head]
	q.names[q.head] = ""
	q.head++
	if q.head == len(q.names) {
		// 队列清空时复用底层数组
		q.names = q.names[:0]
		q.head = 0
	}
	return name, true
}

func (q *RemoteQueue) Len() int { return len(q.names) - q.head }

// RemoteController 远端玩家的输入组件：每帧恰好执行一种行为（出队/续播/Idle）
type RemoteController struct {
	id       PlayerID
	queue    *RemoteQueue
	previous Command
	unknown  func(name string)
}

func NewRemoteController(id PlayerID) *RemoteController {
	return &RemoteController{id: id, queue: NewRemoteQueue()}
}

func (c *RemoteController) ID() PlayerID { return c.id }

func (c *RemoteController) Queue() *RemoteQueue { return c.queue }

// Previous 上一帧解析出的指令
func (c *RemoteController) Previous() Command { return c.previous }

// OnUnknown 设置未知指令名的回调（统计/日志用）
func (c *RemoteController) OnUnknown(fn func(name string)) { c.unknown = fn }

// Update 每帧调用一次，返回本帧实际执行的指令（未执行任何动作返回 CommandNone）
func (c *RemoteController) Update(a Actor) Command {
	if name, ok := c.queue.Pop(); ok {
		cmd, known := ParseCommand(name)
		if !known {
			Log.Debugf("unknown remote command: player=%s name=%q", c.id, name)
			if c.unknown != nil {
				c.unknown(name)
			}
			c.previous = CommandNone
			return CommandNone
		}
		cmd.Execute(a)
		c.previous = cmd
		return cmd
	}
	if c.previous.Directional() {
		// 发送端只在方向变化时发送，这里持续执行上一方向
		c.previous.Execute(a)
		return c.previous
	}
	c.previous = CommandNone
	if a.AttackActive() {
		return CommandNone
	}
	CommandIdle.Execute(a)
	return CommandIdle
}
