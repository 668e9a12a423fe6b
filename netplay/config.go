package netplay

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

// DefaultAddress 默认服务端地址（原服务端端口 1234）
const DefaultAddress = "tcp://127.0.0.1:1234"

// Config 会话配置，可由命令行参数覆盖
type Config struct {
	Address      string
	Codec        string
	LobbyTimeout time.Duration
	PollInterval time.Duration
	MaxFrame     int
	QueueSize    int
	LogFile      string
	LogLevel     string
}

func DefaultConfig() Config {
	return Config{
		Address:      DefaultAddress,
		Codec:        "json",
		LobbyTimeout: DefaultLobbyTimeout,
		PollInterval: DefaultPollInterval,
		MaxFrame:     DefaultMaxFrame,
		QueueSize:    DefaultQueueSize,
		LogFile:      "netplay.log",
		LogLevel:     "info",
	}
}

// RegisterFlags 将配置绑定到 FlagSet（默认值取自当前字段）
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Address, "addr", c.Address, "server address: ws://host:port/path, tcp://host:port or host:port")
	fs.StringVar(&c.Codec, "codec", c.Codec, "wire codec: json or msgpack")
	fs.DurationVar(&c.LobbyTimeout, "lobby-timeout", c.LobbyTimeout, "how long to wait for a lobby list")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "poll interval while blocking on lobby discovery")
	fs.IntVar(&c.MaxFrame, "max-frame", c.MaxFrame, "maximum frame size in bytes")
	fs.IntVar(&c.QueueSize, "queue-size", c.QueueSize, "transport send/receive queue capacity")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "rolling log file path (empty disables file logging)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
}

// Validate 检查配置合法性
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Address) == "" {
		errs = append(errs, errors.New("address is required"))
	}
	codec, err := CodecByName(c.Codec)
	if err != nil {
		errs = append(errs, err)
	}
	if _, binary := codec.(MsgpackCodec); binary && !strings.HasPrefix(c.Address, "ws") {
		errs = append(errs, fmt.Errorf("codec %q requires a websocket address", c.Codec))
	}
	if c.LobbyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("lobby timeout must be positive, got %s", c.LobbyTimeout))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.MaxFrame <= 0 {
		errs = append(errs, fmt.Errorf("max frame must be positive, got %d", c.MaxFrame))
	}
	return errors.Join(errs...)
}

// Logging 日志配置
func (c Config) Logging() LogConfig {
	return LogConfig{File: c.LogFile, Level: c.LogLevel}
}

// NewSessionFromConfig 按配置构建会话；额外的 opts 覆盖配置
func NewSessionFromConfig(c Config, opts ...Option) (*Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	codec, _ := CodecByName(c.Codec)
	_, binary := codec.(MsgpackCodec)
	topts := TransportOptions{MaxFrame: c.MaxFrame, QueueSize: c.QueueSize, Binary: binary}
	base := []Option{
		WithCodec(codec),
		WithTransportFactory(func(addr string) (Transport, error) {
			return NewTransport(addr, topts)
		}),
		WithLobbyTimeout(c.LobbyTimeout),
		WithPollInterval(c.PollInterval),
		WithMaxFrame(c.MaxFrame),
	}
	return NewSession(append(base, opts...)...), nil
}
