// Package worker implements the per-worker runtime: the scene fragment a
// worker owns (Library), the BVH levels built over it, the protocol state
// machine driving SYNC_*/RENDER_* messages, and the ray-kind shading
// pipeline that turns a FatRay into buffer ops, forwards, and spawned
// rays.
//
// Worker.Start launches the event loop: one goroutine owns the Library,
// Image, Queue, and Stats exclusively; a bounded pool of job goroutines
// (ray.Dispatcher) processes one ray each and reports back over a channel
// the event loop drains.
package worker

import (
	"fmt"
	"log"
	"time"

	"github.com/flexrender/flexrender/bvh"
	"github.com/flexrender/flexrender/camera"
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/image"
	"github.com/flexrender/flexrender/netx"
	"github.com/flexrender/flexrender/protocol"
	"github.com/flexrender/flexrender/ray"
	"github.com/flexrender/flexrender/shader"
	"github.com/flexrender/flexrender/vec3"
	"github.com/flexrender/flexrender/wire"
)

// RendererPeerID is the Manager key the worker rekeys its first inbound
// connection to once it has read that connection's INIT (the renderer's
// connection is the only one that ever carries INIT). Worker ids proper
// are 1-based, so 0 is free for this internal use exactly as it is free
// for HitRecord's miss sentinel.
const RendererPeerID = 0

// statsInterval is how often a RENDER_STATS message is pushed to the
// renderer while rendering.
const statsInterval = 250 * time.Millisecond

// scheduleTick is the cooperative suspension point between handling one
// message/timer and attempting to fill idle dispatcher slots from the ray
// queue.
const scheduleTick = 1 * time.Millisecond

type inbound struct {
	from uint32
	msg  *protocol.Message
}

// Worker is the runtime state a single cluster member owns exclusively on
// its event-loop goroutine.
type Worker struct {
	addr   string
	logger *log.Logger

	net     *netx.Manager
	machine *Machine
	codec   wire.Codec

	lib        *Library
	queue      *ray.Queue
	dispatcher *ray.Dispatcher
	stats      *ray.Stats
	img        *image.Image
	cam        *camera.Camera

	bufferNames  []string
	limits       Limits
	totalWorkers int
	jobs         int

	touched map[uint32]int

	// pauseStreak counts consecutive stats intervals this worker's own
	// queue depth grew without a matching kill — the same signal the
	// renderer watches in RENDER_STATS, kept locally for diagnostics.
	lastQueueDepth int
	lastKilled     uint64
	pauseStreak    int

	incoming chan inbound
	stopCh   chan struct{}
	done     chan struct{}
}

// New returns an unconfigured Worker, logging through logger. Init must be
// called with the listen address before Start.
func New(logger *log.Logger) *Worker {
	return &Worker{
		logger:   logger,
		net:      netx.NewManager(256),
		machine:  NewMachine(),
		codec:    wire.MsgpackCodec{},
		jobs:     10,
		touched:  make(map[uint32]int),
		incoming: make(chan inbound, 256),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Name implements service.Service.
func (w *Worker) Name() string { return "worker" }

// Init implements service.Service. args[0] is this worker's own
// "host:port" listen address.
func (w *Worker) Init(args ...any) error {
	if len(args) == 0 {
		return fmt.Errorf("worker: Init requires a listen address")
	}
	addr, ok := args[0].(string)
	if !ok || addr == "" {
		return fmt.Errorf("worker: Init arg[0] must be a non-empty listen address")
	}
	w.addr = addr
	return nil
}

// Start implements service.Service: it binds the listen address and
// launches the event-loop goroutine, returning once the socket is bound
// rather than blocking for the worker's lifetime.
func (w *Worker) Start() error {
	w.net.SetHandlers(w.onMessage, w.onDisconnect)
	if err := w.net.Listen(w.addr); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	w.logger.Printf("listening on %s", w.addr)

	go w.loop()
	return nil
}

// loop is the event loop, run on its own goroutine by Start. Every
// mutation of worker state happens here.
func (w *Worker) loop() {
	defer close(w.done)

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()
	scheduleTicker := time.NewTicker(scheduleTick)
	defer scheduleTicker.Stop()

	for {
		select {
		case <-w.stopCh:
			w.net.Close()
			return
		case in := <-w.incoming:
			w.handleMessage(in.from, in.msg)
		case res := <-w.results():
			w.drainResult(res)
		case <-statsTicker.C:
			w.sendStats()
		case <-scheduleTicker.C:
		}
		w.fillDispatch()
	}
}

// results returns the dispatcher's completion channel, or a nil channel
// before one exists yet (SYNC_CONFIG is what first creates one): a nil
// channel blocks forever in a select, which is exactly the behavior wanted
// while no dispatcher is installed.
func (w *Worker) results() <-chan *ray.WorkResults {
	if w.dispatcher == nil {
		return nil
	}
	return w.dispatcher.Results()
}

// Stop implements service.Service: it requests the event loop to exit,
// tears down every connection, and blocks until the loop goroutine has
// returned. Safe to call more than once.
func (w *Worker) Stop() error {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	<-w.done
	return nil
}

func (w *Worker) onMessage(from uint32, msg *protocol.Message) {
	select {
	case w.incoming <- inbound{from: from, msg: msg}:
	default:
		w.logger.Printf("inbound queue full, dropping message %s from %d", msg.Kind, from)
	}
}

func (w *Worker) onDisconnect(id uint32) {
	if id == RendererPeerID {
		w.logger.Printf("renderer disconnected, aborting render")
		w.Stop()
		return
	}
	w.logger.Printf("peer %d disconnected", id)
}

func (w *Worker) reply(to uint32, kind protocol.Kind, payload any) {
	body, err := w.encodeBody(payload)
	if err != nil {
		w.logger.Printf("encode reply %s: %v", kind, err)
		return
	}
	w.net.Send(to, protocol.New(kind, body))
}

func (w *Worker) replyError(to uint32, err error) {
	body, _ := w.codec.Marshal(protocol.ErrorPayload{Message: err.Error()})
	w.net.Send(to, protocol.New(protocol.KindError, body))
}

func (w *Worker) encodeBody(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	return w.codec.Marshal(payload)
}

func (w *Worker) decodeBody(msg *protocol.Message, v any) error {
	if len(msg.Body) == 0 {
		return nil
	}
	return w.codec.Unmarshal(msg.Body, v)
}

// handleMessage dispatches one inbound message. RAY traffic is
// worker-to-worker and flows outside the renderer-driven lifecycle, so it
// bypasses the protocol state machine entirely; everything else is checked
// against the machine first, and a message the machine rejects is a
// protocol error: reply ERROR, log, and drop the connection it arrived on.
func (w *Worker) handleMessage(from uint32, msg *protocol.Message) {
	if msg.Kind == protocol.KindRay {
		w.handleRay(msg)
		return
	}

	if _, err := w.machine.Apply(msg.Kind); err != nil {
		w.logger.Printf("%v", err)
		w.replyError(from, err)
		w.net.Drop(from)
		return
	}

	var err error
	switch msg.Kind {
	case protocol.KindInit:
		err = w.handleInit(from, msg)
	case protocol.KindSyncConfig:
		err = w.handleSyncConfig(from, msg)
	case protocol.KindSyncShader:
		err = w.handleSyncShader(from, msg)
	case protocol.KindSyncTexture:
		err = w.handleSyncTexture(from, msg)
	case protocol.KindSyncMaterial:
		err = w.handleSyncMaterial(from, msg)
	case protocol.KindSyncMesh:
		err = w.handleSyncMesh(from, msg)
	case protocol.KindSyncEmissive:
		err = w.handleSyncEmissive(from, msg)
	case protocol.KindBuildBVH:
		err = w.handleBuildBVH(from)
	case protocol.KindSyncWBVH:
		err = w.handleSyncWBVH(from, msg)
	case protocol.KindSyncCamera:
		err = w.handleSyncCamera(from, msg)
	case protocol.KindRenderStart:
		err = w.handleRenderStart(from, msg)
	case protocol.KindRenderPause:
		w.queue.Pause()
		w.reply(from, protocol.KindOK, nil)
	case protocol.KindRenderResume:
		w.queue.Resume()
		w.reply(from, protocol.KindOK, nil)
	case protocol.KindRenderStop:
		w.handleRenderStop(from)
	default:
		w.logger.Printf("unexpected message kind %s", msg.Kind)
	}

	if err != nil {
		w.logger.Printf("%v", err)
		w.replyError(from, err)
		w.net.Drop(from)
	}
}

func (w *Worker) handleInit(from uint32, msg *protocol.Message) error {
	var p protocol.InitPayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &ConfigError{Field: "init", Err: err}
	}
	w.net.Rekey(from, RendererPeerID)
	w.lib = NewLibrary(p.WorkerID)
	w.reply(RendererPeerID, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleSyncConfig(from uint32, msg *protocol.Message) error {
	var p protocol.ConfigPayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &ConfigError{Field: "sync_config", Err: err}
	}

	w.bufferNames = p.BufferNames
	w.img = image.New(p.Width, p.Height, p.BufferNames)
	w.limits = Limits{BounceLimit: p.BounceLimit, Threshold: p.Threshold, LightSamples: p.Samples}
	w.totalWorkers = len(p.Peers)
	w.dispatcher = ray.NewDispatcher(w.jobs)
	w.queue = ray.NewQueue()
	// The primary total is unknown until RENDER_START assigns a range;
	// stats must exist now so peer rays arriving early are counted.
	w.stats = ray.NewStats(0)

	w.cam = &camera.Camera{Width: p.Width, Height: p.Height, Antialias: p.Antialias}

	for _, peer := range p.Peers {
		if peer.WorkerID == w.lib.SelfID {
			continue
		}
		if err := w.net.Connect(peer.WorkerID, peer.Addr); err != nil {
			w.logger.Printf("dial peer %d (%s): %v", peer.WorkerID, peer.Addr, err)
		}
	}

	w.reply(from, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleSyncShader(from uint32, msg *protocol.Message) error {
	var p protocol.ShaderPayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &AssetError{Kind: "shader", Err: err}
	}
	prog, err := shader.DecodeProgram(p.Source)
	if err != nil {
		return &AssetError{Kind: "shader", ID: p.ShaderID, Err: err}
	}
	w.lib.Shaders[geom.ShaderID(p.ShaderID)] = prog
	w.reply(from, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleSyncTexture(from uint32, msg *protocol.Message) error {
	var p protocol.TexturePayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &AssetError{Kind: "texture", Err: err}
	}
	tex := geom.Texture{ID: geom.TextureID(p.TextureID), Width: p.Width, Height: p.Height}
	if p.Kind == protocol.TextureKindImage {
		tex.Kind = geom.TextureImage
		tex.Data = make([]float32, len(p.Data))
		for i, v := range p.Data {
			tex.Data[i] = float32(v)
		}
		w.lib.Textures[tex.ID] = shader.NewImageTexture(tex)
	} else {
		proc, err := shader.DecodeProceduralTexture(p.Source)
		if err != nil {
			return &AssetError{Kind: "texture", ID: p.TextureID, Err: err}
		}
		w.lib.Textures[tex.ID] = proc
	}
	w.reply(from, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleSyncMaterial(from uint32, msg *protocol.Message) error {
	var p protocol.MaterialPayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &AssetError{Kind: "material", Err: err}
	}
	samplers := make(map[string]geom.TextureID, len(p.Samplers))
	for name, id := range p.Samplers {
		samplers[name] = geom.TextureID(id)
	}
	w.lib.Materials[geom.MaterialID(p.MaterialID)] = geom.Material{
		ID: geom.MaterialID(p.MaterialID), ShaderID: geom.ShaderID(p.ShaderID),
		Samplers: samplers, Emissive: p.Emissive,
	}
	w.reply(from, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleSyncMesh(from uint32, msg *protocol.Message) error {
	var p protocol.MeshPayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &AssetError{Kind: "mesh", Err: err}
	}
	if len(p.Indices)%3 != 0 {
		return &AssetError{Kind: "mesh", ID: p.MeshID, Err: fmt.Errorf("index count %d not a multiple of 3", len(p.Indices))}
	}

	mesh := &geom.Mesh{
		ID:         geom.MeshID(p.MeshID),
		MaterialID: geom.MaterialID(p.MaterialID),
		Transform:  vec3.Mat4(p.Transform),
	}
	mesh.Vertices = make([]geom.Vertex, len(p.Vertices))
	for i, v := range p.Vertices {
		mesh.Vertices[i] = geom.Vertex{
			Position: vec3.Vec3{X: v.Position.X, Y: v.Position.Y, Z: v.Position.Z},
			Normal:   vec3.Vec3{X: v.Normal.X, Y: v.Normal.Y, Z: v.Normal.Z},
			TexCoord: vec3.Vec2{X: v.TexCoord.X, Y: v.TexCoord.Y},
		}
	}
	mesh.Triangles = make([]geom.Triangle, len(p.Indices)/3)
	for i := range mesh.Triangles {
		mesh.Triangles[i] = geom.Triangle{A: p.Indices[i*3], B: p.Indices[i*3+1], C: p.Indices[i*3+2]}
	}
	mesh.Finalize()
	w.lib.Meshes[mesh.ID] = mesh

	w.reply(from, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleSyncEmissive(from uint32, msg *protocol.Message) error {
	var p protocol.LightListPayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &ConfigError{Field: "sync_emissive", Err: err}
	}
	for _, id := range p.Workers {
		w.lib.LightList[id] = true
	}
	w.reply(from, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleBuildBVH(from uint32) error {
	w.lib.BuildMeshBVH()
	bounds := protocol.WorkerBoundsPayload{
		Min: protocol.Vec3Wire{X: w.lib.Bounds.Min.X, Y: w.lib.Bounds.Min.Y, Z: w.lib.Bounds.Min.Z},
		Max: protocol.Vec3Wire{X: w.lib.Bounds.Max.X, Y: w.lib.Bounds.Max.Y, Z: w.lib.Bounds.Max.Z},
	}
	w.reply(from, protocol.KindOK, bounds)
	return nil
}

func (w *Worker) handleSyncWBVH(from uint32, msg *protocol.Message) error {
	var p protocol.WBVHPayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &ConfigError{Field: "sync_wbvh", Err: err}
	}
	w.lib.WBVH = wbvhFromWire(p.Nodes)
	w.lib.WBVHOrder = p.Workers
	w.reply(from, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleSyncCamera(from uint32, msg *protocol.Message) error {
	var p protocol.CameraPayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &ConfigError{Field: "sync_camera", Err: err}
	}
	w.cam.Eye = vec3.Vec3{X: p.Eye.X, Y: p.Eye.Y, Z: p.Eye.Z}
	w.cam.Look = vec3.Vec3{X: p.Look.X, Y: p.Look.Y, Z: p.Look.Z}
	w.cam.WorldUp = vec3.Vec3{X: p.WorldUp.X, Y: p.WorldUp.Y, Z: p.WorldUp.Z}
	w.cam.RotationDeg = p.RotationDeg
	w.cam.Aspect = p.Aspect
	w.queue.SetCamera(w.cam)
	w.reply(from, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleRenderStart(from uint32, msg *protocol.Message) error {
	var p protocol.RenderStartPayload
	if err := w.decodeBody(msg, &p); err != nil {
		return &ConfigError{Field: "render_start", Err: err}
	}
	w.cam.SetRange(p.Offset, p.Chunk)
	w.stats.PrimaryTotal.Store(uint64(w.cam.TotalSamples()))
	w.reply(from, protocol.KindOK, nil)
	return nil
}

func (w *Worker) handleRenderStop(from uint32) {
	w.queue.Pause()
	w.dispatcher.Wait()
	// Fold in results still sitting on the completion channel so the
	// image shipped back includes every finished job's buffer ops.
	for {
		select {
		case res := <-w.dispatcher.Results():
			w.drainResult(res)
			continue
		default:
		}
		break
	}

	payload := protocol.SyncImagePayload{Width: w.img.Width, Height: w.img.Height}
	for _, name := range w.img.BufferNames() {
		buf := w.img.Buffer(name)
		data := make([]float64, len(buf))
		copy(data, buf)
		payload.Buffers = append(payload.Buffers, protocol.ImageBufferPayload{Name: name, Data: data})
	}
	w.reply(from, protocol.KindSyncImage, payload)
	w.machine.Reset()
}

func (w *Worker) handleRay(msg *protocol.Message) {
	r, err := wire.DecodeRay(msg.Body)
	if err != nil {
		w.logger.Printf("decode RAY body: %v", err)
		return
	}
	if w.stats == nil || w.queue == nil {
		w.logger.Printf("RAY before SYNC_CONFIG, dropping")
		return
	}
	w.stats.RaysRx.Add(1)
	w.stats.BytesRx.Add(uint64(len(msg.Body)))
	w.queue.Push(r)
}

// fillDispatch submits as many queued rays as the dispatcher has free
// capacity for.
func (w *Worker) fillDispatch() {
	if w.dispatcher == nil || w.queue == nil {
		return
	}
	state := w.machine.Current()
	if state != StateRendering && state != StatePaused {
		return
	}
	for {
		r, ok := w.queue.Pop()
		if !ok {
			return
		}
		// A freshly generated primary is an INTERSECT ray with no bounces
		// yet and no traversal started; bounce rays always carry
		// Bounces > 0.
		if r.Kind == ray.KindIntersect && r.Bounces == 0 && r.Traversal.Done() && r.WorkersTouched == 0 && r.Best.Miss() {
			w.stats.PrimaryGenerated.Add(1)
		}
		if !w.dispatcher.TrySubmit(r, w.job) {
			w.queue.Push(r)
			return
		}
	}
}

// job runs ProcessRay for one ray, recovering from a panicking shader
// invocation (the offending ray is discarded, the error logged once, and
// the render continues) rather than letting it take down the whole worker
// process.
func (w *Worker) job(r *ray.FatRay) (res *ray.WorkResults) {
	defer func() {
		if rec := recover(); rec != nil {
			// Name the shader of the hit mesh; 0 when the ray has no hit.
			var shaderID uint32
			if mesh, ok := w.lib.Meshes[r.Best.Mesh]; ok {
				if mat, ok := w.lib.Materials[mesh.MaterialID]; ok {
					shaderID = uint32(mat.ShaderID)
				}
			}
			w.logger.Printf("%v", &ShaderError{ShaderID: shaderID, Err: fmt.Errorf("%v", rec)})
			res = &ray.WorkResults{}
		}
	}()
	return ProcessRay(w.lib, w.totalWorkers, w.limits, r)
}

// drainResult applies one completed job's effects: buffer ops into the
// local Image, counters into Stats, and forwards either back into the
// local queue (dest == self) or onto the network.
func (w *Worker) drainResult(res *ray.WorkResults) {
	if res == nil {
		return
	}
	for _, op := range res.Ops {
		switch op.Kind {
		case ray.OpAccumulate:
			w.img.Accumulate(op.Name, op.Pixel.X, op.Pixel.Y, op.Value)
		case ray.OpWrite:
			w.img.Write(op.Name, op.Pixel.X, op.Pixel.Y, op.Value)
		}
	}
	w.stats.Apply(res)
	for worker, n := range res.WorkersTouched {
		w.touched[worker] += n
	}

	for _, fw := range res.Forwards {
		if fw.Dest == w.lib.SelfID {
			w.queue.Push(fw.Ray)
			continue
		}
		w.stats.RaysTx.Add(1)
		body := wire.EncodeRay(fw.Ray)
		w.net.Send(fw.Dest, protocol.New(protocol.KindRay, body))
	}
}

func (w *Worker) sendStats() {
	if w.stats == nil || w.queue == nil {
		return
	}
	snap := w.stats.Snapshot(w.queue, w.touched)

	w.trackBackpressure(snap)

	p := protocol.RenderStatsPayload{
		RaysRx: snap.RaysRx, RaysTx: snap.RaysTx, BytesRx: snap.BytesRx,
		PrimaryProgress: snap.PrimaryProgress, WorkersTouched: snap.WorkersTouched,
	}
	for i := 0; i < 3; i++ {
		p.Produced[i] = snap.Produced[i]
		p.Killed[i] = snap.Killed[i]
		p.QueueDepth[i] = snap.QueueDepth[i]
	}
	body, err := w.codec.Marshal(p)
	if err != nil {
		w.logger.Printf("marshal stats: %v", err)
		return
	}
	w.net.Send(RendererPeerID, protocol.New(protocol.KindRenderStats, body))
}

// pauseStreakLimit is how many consecutive growth-without-kill intervals
// are tolerated before the condition is logged.
const pauseStreakLimit = 10

// trackBackpressure watches this worker's own queue the same way the
// renderer does from RENDER_STATS: growth without kills for several
// consecutive intervals means primaries are outrunning completion. The
// renderer makes the actual RENDER_PAUSE decision; this logs the signal
// locally.
func (w *Worker) trackBackpressure(snap ray.Snapshot) {
	depth := snap.QueueDepth[0] + snap.QueueDepth[1] + snap.QueueDepth[2]
	killed := snap.Killed[0] + snap.Killed[1] + snap.Killed[2]
	if depth > w.lastQueueDepth && killed == w.lastKilled {
		w.pauseStreak++
		if w.pauseStreak == pauseStreakLimit {
			w.logger.Printf("queue depth growing without kills for %d intervals", w.pauseStreak)
		}
	} else {
		w.pauseStreak = 0
	}
	w.lastQueueDepth = depth
	w.lastKilled = killed
}

// wbvhFromWire converts the cluster BVH shipped in SYNC_WBVH back into the
// native bvh.LinearNode array shared by every BVH level.
// LinearNodeWire.Left is redundant on the wire (a node's left child is
// always index+1) and is not needed here.
func wbvhFromWire(nodes []protocol.LinearNodeWire) []bvh.LinearNode {
	out := make([]bvh.LinearNode, len(nodes))
	for i, n := range nodes {
		out[i] = bvh.LinearNode{
			Bounds: geom.BoundingBox{
				Min: vec3.Vec3{X: n.Min.X, Y: n.Min.Y, Z: n.Min.Z},
				Max: vec3.Vec3{X: n.Max.X, Y: n.Max.Y, Z: n.Max.Z},
			},
			Parent:    bvh.NodeIndex(n.Parent),
			Right:     bvh.NodeIndex(n.Right),
			Axis:      int8(n.Axis),
			IsLeaf:    n.PrimitiveCount > 0,
			PrimIndex: n.PrimitiveOffset,
		}
	}
	return out
}
