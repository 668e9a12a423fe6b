package netplay

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MessageType 消息类型标签（"type" 字段）
type MessageType string

const (
	TypeCommands     MessageType = "COMMANDS"
	TypeLobbyRequest MessageType = "LOBBY REQUEST"
	TypeLobbyList    MessageType = "LOBBY LIST"
)

// Envelope 线上消息（带类型标签的联合体）
type Envelope interface {
	MessageType() MessageType
}

// CommandsMessage 某个玩家的一批指令
type CommandsMessage struct {
	Player PlayerID
	List   []string
}

// LobbyRequestMessage 大厅列表查询
type LobbyRequestMessage struct{}

// LobbyListMessage 大厅列表应答
type LobbyListMessage struct {
	Lobbies []LobbyInfo
}

func (CommandsMessage) MessageType() MessageType     { return TypeCommands }
func (LobbyRequestMessage) MessageType() MessageType { return TypeLobbyRequest }
func (LobbyListMessage) MessageType() MessageType    { return TypeLobbyList }

// LobbyInfo 大厅快照：名称 + 当前人数
type LobbyInfo struct {
	Name    string `json:"name"`
	Players int    `json:"players"`
}

// 出站帧结构（同时用于 JSON / msgpack 编码和 schema 生成）

// CommandsFrame {"type":"COMMANDS","player":<int>,"list":[<string>,...]}
type CommandsFrame struct {
	Type   string   `json:"type" msgpack:"type" jsonschema:"enum=COMMANDS"`
	Player int      `json:"player" msgpack:"player" jsonschema:"minimum=1,description=Sending player id"`
	List   []string `json:"list" msgpack:"list" jsonschema:"description=Command names in execution order"`
}

// LobbyRequestFrame {"type":"LOBBY REQUEST"}
type LobbyRequestFrame struct {
	Type string `json:"type" msgpack:"type" jsonschema:"enum=LOBBY REQUEST"`
}

// LobbyListFrame {"type":"LOBBY LIST","list":[[<name>,<count>],...]}
type LobbyListFrame struct {
	Type string  `json:"type" msgpack:"type" jsonschema:"enum=LOBBY LIST"`
	List [][]any `json:"list" msgpack:"list" jsonschema:"description=Pairs of lobby name and player count"`
}

// rawFrame 入站解码的通用形状，按 Type 再细分
type rawFrame struct {
	Type   string `json:"type" msgpack:"type"`
	Player *int   `json:"player" msgpack:"player"`
	List   any    `json:"list" msgpack:"list"`
}

func frameOf(env Envelope) (any, error) {
	switch m := env.(type) {
	case CommandsMessage:
		list := m.List
		if list == nil {
			list = []string{}
		}
		return CommandsFrame{Type: string(TypeCommands), Player: int(m.Player), List: list}, nil
	case *CommandsMessage:
		return frameOf(*m)
	case LobbyRequestMessage, *LobbyRequestMessage:
		return LobbyRequestFrame{Type: string(TypeLobbyRequest)}, nil
	case LobbyListMessage:
		list := make([][]any, 0, len(m.Lobbies))
		for _, l := range m.Lobbies {
			list = append(list, []any{l.Name, l.Players})
		}
		return LobbyListFrame{Type: string(TypeLobbyList), List: list}, nil
	case *LobbyListMessage:
		return frameOf(*m)
	case nil:
		return nil, fmt.Errorf("netplay: encode nil envelope")
	default:
		return nil, fmt.Errorf("netplay: encode unsupported envelope %T", env)
	}
}

func (f rawFrame) envelope() (Envelope, error) {
	switch MessageType(f.Type) {
	case TypeCommands:
		if f.Player == nil {
			return nil, protocolErrorf(nil, "commands without player")
		}
		items, ok := f.List.([]any)
		if !ok {
			return nil, protocolErrorf(nil, "commands list is %T", f.List)
		}
		names := make([]string, 0, len(items))
		for i, it := range items {
			name, ok := it.(string)
			if !ok {
				return nil, protocolErrorf(nil, "commands list[%d] is %T", i, it)
			}
			names = append(names, name)
		}
		return CommandsMessage{Player: PlayerID(*f.Player), List: names}, nil
	case TypeLobbyRequest:
		return LobbyRequestMessage{}, nil
	case TypeLobbyList:
		items, ok := f.List.([]any)
		if !ok {
			return nil, protocolErrorf(nil, "lobby list is %T", f.List)
		}
		lobbies := make([]LobbyInfo, 0, len(items))
		for i, it := range items {
			pair, ok := it.([]any)
			if !ok || len(pair) < 2 {
				return nil, protocolErrorf(nil, "lobby list[%d] is not a pair", i)
			}
			name, ok := pair[0].(string)
			if !ok {
				return nil, protocolErrorf(nil, "lobby list[%d] name is %T", i, pair[0])
			}
			count, err := playerCount(pair[1])
			if err != nil {
				return nil, protocolErrorf(err, "lobby list[%d] count", i)
			}
			lobbies = append(lobbies, LobbyInfo{Name: name, Players: count})
		}
		return LobbyListMessage{Lobbies: lobbies}, nil
	case "":
		return nil, protocolErrorf(nil, "missing type")
	default:
		return nil, protocolErrorf(nil, "unknown type %q", f.Type)
	}
}

// playerCount 人数字段可能是字符串或整数（不同服务端实现不一致）；必须是非负整数
func playerCount(v any) (int, error) {
	n, err := rawCount(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

func rawCount(v any) (int, error) {
	switch n := v.(type) {
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		// 2.0 这类整数值的浮点写法也接受
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return rawCount(f)
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("non-integer count %v", n)
		}
		return int(n), nil
	case float32:
		return rawCount(float64(n))
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported count type %T", v)
	}
}
