package protocol

// Payload types for every msgpack-bodied message kind. RAY bodies bypass
// these entirely (see wire.EncodeRay/DecodeRay).

// InitPayload is the body of INIT: the worker's assigned id.
type InitPayload struct {
	WorkerID uint32 `msgpack:"worker_id"`
}

// ConfigPayload is the body of SYNC_CONFIG.
type ConfigPayload struct {
	Width       int        `msgpack:"width"`
	Height      int        `msgpack:"height"`
	Antialias   int        `msgpack:"antialias"`
	Samples     int        `msgpack:"samples"`
	BounceLimit int        `msgpack:"bounce_limit"`
	Threshold   float64    `msgpack:"threshold"`
	BufferNames []string   `msgpack:"buffer_names"`
	Peers       []PeerAddr `msgpack:"peers"`
}

// PeerAddr names a worker's id and network address for peer-to-peer dialing.
type PeerAddr struct {
	WorkerID uint32 `msgpack:"worker_id"`
	Addr     string `msgpack:"addr"`
}

// ShaderPayload is the body of SYNC_SHADER.
type ShaderPayload struct {
	ShaderID uint32 `msgpack:"shader_id"`
	Source   []byte `msgpack:"source"`
}

// TextureKindWire mirrors geom.TextureKind across the wire without
// importing geom from protocol (keeps protocol dependency-free of the
// scene-graph packages it merely ferries).
type TextureKindWire uint8

const (
	TextureKindProcedural TextureKindWire = 0
	TextureKindImage      TextureKindWire = 1
)

// TexturePayload is the body of SYNC_TEXTURE.
type TexturePayload struct {
	TextureID uint32          `msgpack:"texture_id"`
	Kind      TextureKindWire `msgpack:"kind"`
	Source    []byte          `msgpack:"source,omitempty"`
	Width     int             `msgpack:"width"`
	Height    int             `msgpack:"height"`
	Data      []float64       `msgpack:"data,omitempty"`
}

// MaterialPayload is the body of SYNC_MATERIAL.
type MaterialPayload struct {
	MaterialID uint32            `msgpack:"material_id"`
	ShaderID   uint32            `msgpack:"shader_id"`
	Samplers   map[string]uint32 `msgpack:"samplers"`
	Emissive   bool              `msgpack:"emissive"`
}

// Vec3Wire and Vec2Wire are the wire shapes of vec3.Vec3/Vec2, kept
// independent of the vec3 package so protocol has no geometry import.
type Vec3Wire struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
	Z float64 `msgpack:"z"`
}

type Vec2Wire struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

// VertexWire mirrors geom.Vertex.
type VertexWire struct {
	Position Vec3Wire `msgpack:"position"`
	Normal   Vec3Wire `msgpack:"normal"`
	TexCoord Vec2Wire `msgpack:"texcoord"`
}

// MeshPayload is the body of SYNC_MESH: one mesh, its material binding,
// and its triangle soup, deduplicated per-peer by the sender.
type MeshPayload struct {
	MeshID     uint32       `msgpack:"mesh_id"`
	MaterialID uint32       `msgpack:"material_id"`
	Transform  [16]float64  `msgpack:"transform"`
	Vertices   []VertexWire `msgpack:"vertices"`
	Indices    []uint32     `msgpack:"indices"` // flattened triangles, 3 per tri
}

// CameraPayload is the body of SYNC_CAMERA.
type CameraPayload struct {
	Eye         Vec3Wire `msgpack:"eye"`
	Look        Vec3Wire `msgpack:"look"`
	WorldUp     Vec3Wire `msgpack:"world_up"`
	RotationDeg float64  `msgpack:"rotation_deg"`
	Aspect      float64  `msgpack:"aspect"`
}

// LightListPayload is the body of SYNC_EMISSIVE: the set of worker ids
// hosting at least one emissive mesh.
type LightListPayload struct {
	Workers []uint32 `msgpack:"workers"`
}

// WorkerBoundsPayload is the OK reply to BUILD_BVH: the worker's bounding
// box in world space, used by the renderer to build the cluster BVH.
type WorkerBoundsPayload struct {
	Min Vec3Wire `msgpack:"min"`
	Max Vec3Wire `msgpack:"max"`
}

// LinearNodeWire mirrors bvh.LinearNode for the cluster BVH shipped in
// SYNC_WBVH.
type LinearNodeWire struct {
	Min             Vec3Wire `msgpack:"min"`
	Max             Vec3Wire `msgpack:"max"`
	Left            int32    `msgpack:"left"`
	Right           int32    `msgpack:"right"`
	Parent          int32    `msgpack:"parent"`
	PrimitiveOffset int32    `msgpack:"primitive_offset"`
	PrimitiveCount  int32    `msgpack:"primitive_count"`
	Axis            uint8    `msgpack:"axis"`
}

// WBVHPayload is the body of SYNC_WBVH: the cluster BVH over worker
// bounds, plus the worker-id ordering matching its leaves.
type WBVHPayload struct {
	Nodes   []LinearNodeWire `msgpack:"nodes"`
	Workers []uint32         `msgpack:"workers"`
}

// RenderStartPayload is the body of RENDER_START: the worker's assigned
// x-pixel sub-range.
type RenderStartPayload struct {
	Offset int `msgpack:"offset"`
	Chunk  int `msgpack:"chunk"`
}

// RenderStatsPayload is the body of periodic RENDER_STATS reports.
type RenderStatsPayload struct {
	RaysRx          uint64         `msgpack:"rays_rx"`
	RaysTx          uint64         `msgpack:"rays_tx"`
	BytesRx         uint64         `msgpack:"bytes_rx"`
	Produced        [3]uint64      `msgpack:"produced"`
	Killed          [3]uint64      `msgpack:"killed"`
	QueueDepth      [3]int         `msgpack:"queue_depth"`
	PrimaryProgress float64        `msgpack:"primary_progress"`
	WorkersTouched  map[uint32]int `msgpack:"workers_touched"`
}

// ImageBufferPayload is one named buffer within SYNC_IMAGE.
type ImageBufferPayload struct {
	Name string    `msgpack:"name"`
	Data []float64 `msgpack:"data"`
}

// SyncImagePayload is the body of SYNC_IMAGE: a worker's rendered
// contribution to every named buffer, pixel-wise, merged by addition at
// the renderer.
type SyncImagePayload struct {
	Width   int                  `msgpack:"width"`
	Height  int                  `msgpack:"height"`
	Buffers []ImageBufferPayload `msgpack:"buffers"`
}

// ErrorPayload is the body of ERROR.
type ErrorPayload struct {
	Message string `msgpack:"message"`
}
