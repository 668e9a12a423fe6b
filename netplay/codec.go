package netplay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec 线上消息编解码
type Codec interface {
	Encode(Envelope) ([]byte, error)
	Decode([]byte) (Envelope, error)
}

// JSONCodec 文本 JSON（默认，与对端约定的格式）
type JSONCodec struct{}

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	f, err := frameOf(env)
	if err != nil {
		return nil, err
	}
	return json.Marshal(f)
}

func (JSONCodec) Decode(b []byte) (Envelope, error) {
	var f rawFrame
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return nil, protocolErrorf(err, "invalid json")
	}
	// 一帧只能有一个值
	if _, err := dec.Token(); err != io.EOF {
		return nil, protocolErrorf(err, "trailing data after json value")
	}
	return f.envelope()
}

// MsgpackCodec 二进制 msgpack，字段与 JSON 形状一致
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(env Envelope) ([]byte, error) {
	f, err := frameOf(env)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(f)
}

func (MsgpackCodec) Decode(b []byte) (Envelope, error) {
	var f rawFrame
	r := bytes.NewReader(b)
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, protocolErrorf(err, "invalid msgpack")
	}
	if r.Len() != 0 {
		return nil, protocolErrorf(nil, "trailing data after msgpack value: %d bytes", r.Len())
	}
	return f.envelope()
}

// CodecByName "json" | "msgpack"
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("netplay: unknown codec %q", name)
	}
}
