package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"brawlnet/netplay"
)

// 每个 token 对应一帧按住的按键：L R 左右，J 跳，P 拳，U 上勾拳，K 踢，D 下落，S 必杀，- 空
var scriptButtons = map[string]netplay.Button{
	"L": netplay.StickLeft,
	"R": netplay.StickRight,
	"J": netplay.ButtonJump,
	"P": netplay.ButtonAttack,
	"U": netplay.ButtonAttack | netplay.StickUp,
	"K": netplay.ButtonKick,
	"D": netplay.StickDown,
	"S": netplay.ButtonLeftShoulder | netplay.ButtonRightShoulder,
	"-": 0,
}

func main() {
	cfg := netplay.DefaultConfig()
	cfg.Address = "ws://127.0.0.1:1234/ws?lobby=lobby-1"
	cfg.RegisterFlags(flag.CommandLine)
	script := flag.String("script", "R,R,R,-,J,P,U,-,L,L,K,S,D", "comma separated per-tick input script")
	tps := flag.Int("tps", 20, "ticks per second")
	seat := flag.Int("seat", 1, "seat 1 creates the local player first, seat 2 the remote one")
	flag.Parse()

	if err := netplay.InitLogger(cfg.Logging()); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	defer netplay.SyncLogger()

	inputs, err := parseScript(*script)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	session, err := netplay.NewSessionFromConfig(cfg)
	if err != nil {
		pterm.Error.Printfln("invalid configuration: %v", err)
		os.Exit(1)
	}

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + cfg.Address)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = session.Connect(ctx, cfg.Address)
	cancel()
	if err != nil {
		// 连接失败不退出，继续离线
		spinner.Warning("Offline: " + err.Error())
	} else {
		spinner.Success("Connected")
		showLobbies(session, cfg.LobbyTimeout)
	}

	roster := netplay.NewPlayerRoster(session)
	local, remote, err := seatPlayers(roster, *seat)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	localID, remoteID := local.ID(), remote.ID()
	pterm.Info.Printfln("local player %s, remote player %s", localID, remoteID)

	me, peer := &fighter{}, &fighter{}
	var state netplay.InputState
	ticker := time.NewTicker(time.Second / time.Duration(*tps))
	defer ticker.Stop()
	for _, held := range inputs {
		<-ticker.C
		state = state.Next(held)
		local.Update(state, me)
		session.PumpOnce()
		remote.Update(peer)
	}

	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Player", "Actions"},
		{localID.String(), strings.Join(me.log, " ")},
		{remoteID.String(), strings.Join(peer.log, " ")},
	}).Render()

	roster.Remove(localID)
	roster.Remove(remoteID)
	_ = session.Disconnect()
}

func showLobbies(s *netplay.Session, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	lobbies, err := s.GetLobbies(ctx)
	if err != nil {
		pterm.Warning.Printfln("lobby discovery failed: %v", err)
		return
	}
	data := pterm.TableData{{"Lobby", "Players"}}
	for _, l := range lobbies {
		data = append(data, []string{l.Name, strconv.Itoa(l.Players)})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// 两端的编号要互相对应：座位 1 本地=1 远端=2，座位 2 反之
func seatPlayers(roster *netplay.PlayerRoster, seat int) (*netplay.LocalController, *netplay.RemoteController, error) {
	if seat == 2 {
		_, remote, err := roster.AddRemote()
		if err != nil {
			return nil, nil, err
		}
		_, local, err := roster.AddLocal()
		return local, remote, err
	}
	_, local, err := roster.AddLocal()
	if err != nil {
		return nil, nil, err
	}
	_, remote, err := roster.AddRemote()
	return local, remote, err
}

func parseScript(script string) ([]netplay.Button, error) {
	var out []netplay.Button
	for _, tok := range strings.Split(script, ",") {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		b, ok := scriptButtons[tok]
		if !ok {
			return nil, fmt.Errorf("unknown script token %q", tok)
		}
		out = append(out, b)
	}
	return out, nil
}

// fighter 记录收到的动作（代替渲染与物理）
type fighter struct {
	log []string
}

func (f *fighter) add(a string) {
	// 连续的 idle 只记一次
	if n := len(f.log); n > 0 && a == "idle" && f.log[n-1] == a {
		return
	}
	f.log = append(f.log, a)
}

func (f *fighter) MoveLeft()          { f.add("left") }
func (f *fighter) MoveRight()         { f.add("right") }
func (f *fighter) Jump()              { f.add("jump") }
func (f *fighter) Punch()             { f.add("punch") }
func (f *fighter) Kick()              { f.add("kick") }
func (f *fighter) Uppercut()          { f.add("uppercut") }
func (f *fighter) Super()             { f.add("super") }
func (f *fighter) PhaseDown()         { f.add("fall") }
func (f *fighter) Idle()              { f.add("idle") }
func (f *fighter) AttackActive() bool { return false }
