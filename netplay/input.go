package netplay

// Button 按键/摇杆位掩码（由外部输入轮询填充）
type Button uint32

const (
	ButtonJump          Button = 1 << iota // Y
	ButtonAttack                           // X
	ButtonKick                             // A
	ButtonLeftShoulder                     // LB
	ButtonRightShoulder                    // RB
	StickUp
	StickDown
	StickLeft
	StickRight
	StickUpLeft
	StickUpRight
	StickDownLeft
	StickDownRight
)

const (
	stickAnyLeft  = StickLeft | StickUpLeft | StickDownLeft
	stickAnyRight = StickRight | StickUpRight | StickDownRight
)

// InputState 当前帧与上一帧的按键状态
type InputState struct {
	Held     Button
	Previous Button
}

// Next 推进一帧：当前按下状态成为上一帧
func (s InputState) Next(held Button) InputState {
	return InputState{Held: held, Previous: s.Held}
}

// IsHeld 任一位按下即为 true
func (s InputState) IsHeld(b Button) bool { return s.Held&b != 0 }

// Pressed 边沿：本帧按下且上一帧未按下
func (s InputState) Pressed(b Button) bool {
	return s.Held&b != 0 && s.Previous&b == 0
}

type deriveRule struct {
	match   func(InputState) bool
	resolve func(InputState) Command
}

func always(c Command) func(InputState) Command {
	return func(InputState) Command { return c }
}

// 优先级表：第一条命中即生效，不做组合
var deriveRules = []deriveRule{
	{func(s InputState) bool { return s.Pressed(ButtonJump) }, always(CommandJump)},
	{func(s InputState) bool { return s.Pressed(ButtonAttack) }, func(s InputState) Command {
		if s.IsHeld(StickUp) {
			return CommandUppercut
		}
		return CommandPunch
	}},
	{func(s InputState) bool {
		return s.IsHeld(ButtonLeftShoulder) && s.IsHeld(ButtonRightShoulder)
	}, always(CommandSuper)},
	{func(s InputState) bool { return s.Pressed(ButtonKick) }, always(CommandKick)},
	{func(s InputState) bool { return s.Pressed(StickDown) }, always(CommandPhaseDown)},
	{func(s InputState) bool { return s.IsHeld(stickAnyLeft) }, always(CommandMoveLeft)},
	{func(s InputState) bool { return s.IsHeld(stickAnyRight) }, always(CommandMoveRight)},
}

// Derive 将一帧输入解析为至多一个指令；无匹配返回 CommandNone
func Derive(s InputState) Command {
	for _, r := range deriveRules {
		if r.match(s) {
			return r.resolve(s)
		}
	}
	return CommandNone
}

// LocalController 本地玩家的输入组件：解析、执行并写入出站缓冲
type LocalController struct {
	id       PlayerID
	buffer   *OutboundBuffer
	previous Command
}

func NewLocalController(id PlayerID) *LocalController {
	return &LocalController{id: id, buffer: NewOutboundBuffer()}
}

func (c *LocalController) ID() PlayerID { return c.id }

// Buffer 出站缓冲；离线玩家为 nil
func (c *LocalController) Buffer() *OutboundBuffer { return c.buffer }

// Previous 上一帧解析出的指令
func (c *LocalController) Previous() Command { return c.previous }

// Update 每帧调用一次，返回本帧解析结果（Idle 或 CommandNone 表示无动作指令）
func (c *LocalController) Update(s InputState, a Actor) Command {
	cmd := Derive(s)
	if cmd == CommandNone {
		c.previous = CommandNone
		if a.AttackActive() {
			return CommandNone
		}
		// Idle 只驱动本地动画，从不上线
		CommandIdle.Execute(a)
		return CommandIdle
	}
	cmd.Execute(a)
	if c.shouldReplicate(cmd) {
		name, _ := cmd.WireName()
		c.buffer.Push(name)
	}
	c.previous = cmd
	return cmd
}

// 方向指令仅在进入时发送一次；其余指令每次解析都发送
func (c *LocalController) shouldReplicate(cmd Command) bool {
	if c.buffer == nil {
		return false
	}
	if cmd.Directional() {
		return cmd != c.previous
	}
	return true
}
