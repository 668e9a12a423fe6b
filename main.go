package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brawlnet/netplay"
	"brawlnet/relay"
)

// brawlnet 中继入口：WebSocket 接入、大厅查询应答、指令帧转发
func main() {
	var (
		addr     string
		logFile  string
		logLevel string
	)
	flag.StringVar(&addr, "addr", ":1234", "relay listen address, e.g. :1234")
	flag.StringVar(&logFile, "log-file", "relay.log", "rolling log file path")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()
	// 使用第三方 zap 日志库写入日志文件（带滚动），同时输出到控制台
	if err := netplay.InitLogger(netplay.LogConfig{File: logFile, Level: logLevel, Stderr: true}); err != nil {
		panic(err)
	}
	defer netplay.SyncLogger()

	rl := relay.New()
	// 先预创建一个默认大厅，便于快速试跑
	_, _ = rl.GetOrCreateRoom(relay.DefaultLobby)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rl.HandleWS)
	mux.HandleFunc("/lobbies", rl.HandleLobbies)
	mux.HandleFunc("/metrics", rl.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		netplay.Log.Infof("relay listening on %s; clients connect to ws://localhost%s/ws?lobby=<name>", addr, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			netplay.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	netplay.Log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	rl.Close()
}
