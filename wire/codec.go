// Package wire implements message body encoding. Every message body is
// msgpack-encoded except RAY, whose body is the ray's stable in-memory
// byte layout.
package wire

import "github.com/vmihailenco/msgpack/v5"

// Codec encodes and decodes message bodies. The production implementation
// is MsgpackCodec; the interface exists so tests and alternative transports
// can substitute a different encoder without touching protocol or worker
// code.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// MsgpackCodec is the default Codec, backed by
// github.com/vmihailenco/msgpack/v5.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
