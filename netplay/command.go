package netplay

// Command 玩家意图（固定目录），零值 CommandNone 表示“无指令”
type Command uint8

const (
	CommandNone Command = iota
	CommandMoveLeft
	CommandMoveRight
	CommandJump
	CommandPunch
	CommandKick
	CommandUppercut
	CommandSuper
	CommandPhaseDown
	CommandIdle
)

// 线上指令名（协议的一部分，不可随意修改）
const (
	NameJump      = "JUMP"
	NameUppercut  = "UPPERCUT"
	NamePunch     = "PUNCH"
	NameKick      = "KICK"
	NameMoveLeft  = "MOVE LEFT"
	NameMoveRight = "MOVE RIGHT"
	NameFall      = "FALL"
	NameSuper     = "SUPER"
)

var commandNames = map[Command]string{
	CommandMoveLeft:  NameMoveLeft,
	CommandMoveRight: NameMoveRight,
	CommandJump:      NameJump,
	CommandPunch:     NamePunch,
	CommandKick:      NameKick,
	CommandUppercut:  NameUppercut,
	CommandSuper:     NameSuper,
	CommandPhaseDown: NameFall,
}

var commandsByName = func() map[string]Command {
	m := make(map[string]Command, len(commandNames))
	for c, name := range commandNames {
		m[name] = c
	}
	return m
}()

// ParseCommand 线上名称 → Command；未知名称（包括 Idle）返回 false
func ParseCommand(name string) (Command, bool) {
	c, ok := commandsByName[name]
	return c, ok
}

// WireName 返回可发送的名称；Idle 与 CommandNone 不上线
func (c Command) WireName() (string, bool) {
	name, ok := commandNames[c]
	return name, ok
}

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandIdle:
		return "IDLE"
	}
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Directional 左右移动属于“持续意图”，按边沿发送、接收端续播
func (c Command) Directional() bool {
	return c == CommandMoveLeft || c == CommandMoveRight
}

// Actor 指令作用的实体能力（动画、物理由外部实现）
type Actor interface {
	MoveLeft()
	MoveRight()
	Jump()
	Punch()
	Kick()
	Uppercut()
	Super()
	PhaseDown()
	Idle()
	// AttackActive 当前是否有攻击动作正在进行
	AttackActive() bool
}

// Execute 将指令作用到实体；CommandNone 为 no-op
func (c Command) Execute(a Actor) {
	switch c {
	case CommandMoveLeft:
		a.MoveLeft()
	case CommandMoveRight:
		a.MoveRight()
	case CommandJump:
		a.Jump()
	case CommandPunch:
		a.Punch()
	case CommandKick:
		a.Kick()
	case CommandUppercut:
		a.Uppercut()
	case CommandSuper:
		a.Super()
	case CommandPhaseDown:
		a.PhaseDown()
	case CommandIdle:
		a.Idle()
	default:
		// no-op
	}
}
