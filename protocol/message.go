// Package protocol implements FlexRender's wire framing and message kind
// enumeration: a fixed 8-byte header, kind (u32 LE) then size (u32 LE),
// followed by a body of exactly size bytes. TCP ordering is the only
// sequencing the cluster relies on; there are no per-message
// acknowledgment or reordering fields.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Kind identifies the semantic meaning of a message. The numeric values
// are part of the wire contract and must not be renumbered.
type Kind uint32

const (
	KindNone  Kind = 0
	KindOK    Kind = 1
	KindError Kind = 2

	KindInit Kind = 100

	KindSyncConfig   Kind = 200
	KindSyncShader   Kind = 201
	KindSyncTexture  Kind = 202
	KindSyncMaterial Kind = 203
	KindSyncMesh     Kind = 204
	KindSyncCamera   Kind = 205
	KindSyncEmissive Kind = 206
	KindSyncWBVH     Kind = 207
	KindBuildBVH     Kind = 208

	KindSyncImage Kind = 295

	KindRenderStart  Kind = 300
	KindRenderStop   Kind = 301
	KindRenderPause  Kind = 302
	KindRenderResume Kind = 303

	KindRenderStats Kind = 400

	KindRay Kind = 500
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindOK:
		return "OK"
	case KindError:
		return "ERROR"
	case KindInit:
		return "INIT"
	case KindSyncConfig:
		return "SYNC_CONFIG"
	case KindSyncShader:
		return "SYNC_SHADER"
	case KindSyncTexture:
		return "SYNC_TEXTURE"
	case KindSyncMaterial:
		return "SYNC_MATERIAL"
	case KindSyncMesh:
		return "SYNC_MESH"
	case KindSyncCamera:
		return "SYNC_CAMERA"
	case KindSyncEmissive:
		return "SYNC_EMISSIVE"
	case KindSyncWBVH:
		return "SYNC_WBVH"
	case KindBuildBVH:
		return "BUILD_BVH"
	case KindSyncImage:
		return "SYNC_IMAGE"
	case KindRenderStart:
		return "RENDER_START"
	case KindRenderStop:
		return "RENDER_STOP"
	case KindRenderPause:
		return "RENDER_PAUSE"
	case KindRenderResume:
		return "RENDER_RESUME"
	case KindRenderStats:
		return "RENDER_STATS"
	case KindRay:
		return "RAY"
	default:
		return fmt.Sprintf("KIND(%d)", uint32(k))
	}
}

// HeaderSize is the fixed framing prefix: kind (u32 LE) + size (u32 LE).
const HeaderSize = 8

// MaxBodySize bounds a single message body, guarding against a corrupt or
// malicious size field driving an unbounded allocation.
const MaxBodySize = 256 << 20

// Message is one framed unit on the wire. RAY bodies are the raw stable
// FatRay layout (wire.EncodeRay); every other kind's body is produced by a
// wire.Codec.
type Message struct {
	Kind Kind
	Body []byte
}

// Encode writes kind, size, and body to w.
func (m *Message) Encode(w io.Writer) error {
	if len(m.Body) > MaxBodySize {
		return fmt.Errorf("protocol: body of %d bytes exceeds max %d", len(m.Body), MaxBodySize)
	}

	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(m.Kind))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(m.Body)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("protocol: write header: %w", err)
	}
	if len(m.Body) > 0 {
		if _, err := w.Write(m.Body); err != nil {
			return fmt.Errorf("protocol: write body: %w", err)
		}
	}
	return nil
}

// Decode reads one framed message from r.
func Decode(r io.Reader) (*Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	kind := Kind(binary.LittleEndian.Uint32(header[0:4]))
	size := binary.LittleEndian.Uint32(header[4:8])
	if size > MaxBodySize {
		return nil, fmt.Errorf("protocol: declared body size %d exceeds max %d", size, MaxBodySize)
	}

	m := &Message{Kind: kind}
	if size > 0 {
		m.Body = make([]byte, size)
		if _, err := io.ReadFull(r, m.Body); err != nil {
			return nil, fmt.Errorf("protocol: read body: %w", err)
		}
	}
	return m, nil
}

// New constructs a Message with a pre-encoded body.
func New(kind Kind, body []byte) *Message {
	return &Message{Kind: kind, Body: body}
}
