// Package renderer implements the coordinator: the single point of
// control that parses configuration and scene, partitions the scene
// across the cluster, drives every worker through the coordination
// protocol, and assembles the final image.
//
// Renderer.Start launches its own event-loop goroutine, the same shape as
// worker.Worker's: one goroutine owns every peer connection, the
// distribution plan, and the merged Image; it drains an inbound-message
// channel fed by netx.Manager's read goroutines and a stats ticker, never
// touching shared state from any other goroutine.
package renderer

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/flexrender/flexrender/config"
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/image"
	"github.com/flexrender/flexrender/imageio"
	"github.com/flexrender/flexrender/netx"
	"github.com/flexrender/flexrender/protocol"
	"github.com/flexrender/flexrender/scene"
	"github.com/flexrender/flexrender/vec3"
	"github.com/flexrender/flexrender/wire"
)

// pollInterval is how often the renderer checks each worker's stats-driven
// pause/resume/idle decisions outside of message receipt — mirrors
// worker.scheduleTick's cooperative suspension point.
const pollInterval = 10 * time.Millisecond

type pendingMsg struct {
	kind    protocol.Kind
	payload any
}

// workerConn is everything the renderer tracks for one cluster member.
type workerConn struct {
	id   uint32
	addr string

	queue    []pendingMsg
	awaiting protocol.Kind // kind of the message currently in flight, for OK-body interpretation

	bounds      geom.BoundingBox
	boundsKnown bool

	stats    workerStats
	stopped  bool // RENDER_STOP sent, awaiting SYNC_IMAGE
	finished bool // SYNC_IMAGE received
}

// inbound is either a decoded message or a disconnect notice, routed
// through the same channel so every mutation of Renderer state happens on
// the event-loop goroutine alone.
type inbound struct {
	from         uint32
	msg          *protocol.Message
	disconnected bool
}

// Renderer is the coordinator runtime; it implements service.Service the
// same way worker.Worker does.
type Renderer struct {
	logger *log.Logger

	net   *netx.Manager
	codec wire.Codec

	cfg      *config.Config
	resolved *scene.Resolved
	plan     *Plan
	syncer   *AssetSyncer

	workers    map[uint32]*workerConn
	order      []uint32
	boundsLeft int

	img     *image.Image
	encoder imageio.Encoder

	idleIntervals int

	incoming chan inbound
	stopCh   chan struct{}
	done     chan struct{}

	renderErr error
}

// New returns an unconfigured Renderer. Init must be called with the
// resolved config and scene before Start.
func New(logger *log.Logger) *Renderer {
	return &Renderer{
		logger:        logger,
		net:           netx.NewManager(256),
		codec:         wire.MsgpackCodec{},
		encoder:       imageio.PPMEncoder{},
		idleIntervals: DefaultIdleIntervals,
		workers:       make(map[uint32]*workerConn),
		incoming:      make(chan inbound, 256),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Name implements service.Service.
func (r *Renderer) Name() string { return "renderer" }

// Init implements service.Service: args[0] is the resolved
// *config.Config, args[1] the resolved *scene.Resolved, and an optional
// args[2] int overrides the idle-stats window (the -i flag).
func (r *Renderer) Init(args ...any) error {
	if len(args) < 2 {
		return fmt.Errorf("renderer: Init requires (*config.Config, *scene.Resolved)")
	}
	cfg, ok := args[0].(*config.Config)
	if !ok || cfg == nil {
		return &ConfigError{Field: "config", Err: fmt.Errorf("arg[0] must be a non-nil *config.Config")}
	}
	resolved, ok := args[1].(*scene.Resolved)
	if !ok || resolved == nil {
		return &ConfigError{Field: "scene", Err: fmt.Errorf("arg[1] must be a non-nil *scene.Resolved")}
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Field: "config", Err: err}
	}
	r.cfg = cfg
	r.resolved = resolved
	if len(args) >= 3 {
		if n, ok := args[2].(int); ok && n > 0 {
			r.idleIntervals = n
		}
	}
	return nil
}

// Start implements service.Service: it dials every configured worker,
// builds the distribution plan, and launches the event loop. It returns
// once every dial has at least been attempted, not once the render
// finishes — callers await completion via Wait.
func (r *Renderer) Start() error {
	r.net.SetHandlers(r.onMessage, r.onDisconnect)

	r.plan = Distribute(r.resolved, len(r.cfg.Workers))
	r.syncer = NewAssetSyncer()
	r.img = image.New(r.cfg.Width, r.cfg.Height, r.cfg.BufferNames)
	r.boundsLeft = len(r.cfg.Workers)

	peers := make([]protocol.PeerAddr, len(r.cfg.Workers))
	for i, we := range r.cfg.Workers {
		id := uint32(i + 1)
		peers[i] = protocol.PeerAddr{WorkerID: id, Addr: we.Addr}
	}

	for i, we := range r.cfg.Workers {
		id := uint32(i + 1)
		wc := &workerConn{id: id, addr: we.Addr}
		wc.queue = r.buildSetupQueue(id, peers)
		r.workers[id] = wc
		r.order = append(r.order, id)

		if err := r.net.Connect(id, we.Addr); err != nil {
			r.net.Close()
			return &WorkerError{WorkerID: id, Err: fmt.Errorf("dial: %w", err)}
		}
	}

	go r.loop()

	for _, id := range r.order {
		r.advance(id)
	}
	return nil
}

// Stop implements service.Service: it requests the event loop to exit and
// blocks until it has.
func (r *Renderer) Stop() error {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	<-r.done
	return nil
}

// Wait blocks until the render has finished (successfully or with an
// error) and returns the terminal error, if any.
func (r *Renderer) Wait() error {
	<-r.done
	return r.renderErr
}

func (r *Renderer) loop() {
	defer close(r.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.net.Close()
			return
		case in := <-r.incoming:
			if in.disconnected {
				r.handleDisconnect(in.from)
			} else {
				r.handleMessage(in.from, in.msg)
			}
		case <-ticker.C:
		}
		if r.renderErr != nil || r.allFinished() {
			r.finish()
			return
		}
	}
}

func (r *Renderer) allFinished() bool {
	if len(r.workers) == 0 {
		return false
	}
	for _, wc := range r.workers {
		if !wc.finished {
			return false
		}
	}
	return true
}

func (r *Renderer) finish() {
	if r.renderErr != nil {
		r.logger.Printf("render aborted: %v", r.renderErr)
		r.net.Close()
		return
	}
	r.net.Close()
	if err := writeImage(r.encoder, r.img, r.cfg.Output+".ppm"); err != nil {
		r.renderErr = err
		r.logger.Printf("write output: %v", err)
	}
}

func (r *Renderer) onMessage(from uint32, msg *protocol.Message) {
	select {
	case r.incoming <- inbound{from: from, msg: msg}:
	default:
		r.logger.Printf("inbound queue full, dropping message %s from %d", msg.Kind, from)
	}
}

// onDisconnect runs on netx's peer-monitor goroutine; it only ever hands the
// event loop a message rather than touching Renderer state itself.
func (r *Renderer) onDisconnect(id uint32) {
	select {
	case r.incoming <- inbound{from: id, disconnected: true}:
	case <-r.stopCh:
	}
}

func (r *Renderer) handleDisconnect(id uint32) {
	if r.allFinished() || r.renderErr != nil {
		return
	}
	r.renderErr = &WorkerError{WorkerID: id, Err: fmt.Errorf("connection closed unexpectedly")}
}

func (r *Renderer) fail(id uint32, err error) {
	if r.renderErr == nil {
		r.renderErr = &WorkerError{WorkerID: id, Err: err}
	}
	r.logger.Printf("%v", r.renderErr)
}

func (r *Renderer) send(id uint32, kind protocol.Kind, payload any) {
	var body []byte
	if payload != nil {
		var err error
		body, err = r.codec.Marshal(payload)
		if err != nil {
			r.fail(id, fmt.Errorf("encode %s: %w", kind, err))
			return
		}
	}
	r.net.Send(id, protocol.New(kind, body))
}

// advance sends the next queued setup message to worker id, if any, and
// records it as awaiting so the matching OK can be interpreted.
func (r *Renderer) advance(id uint32) {
	wc := r.workers[id]
	if len(wc.queue) == 0 {
		return
	}
	next := wc.queue[0]
	wc.queue = wc.queue[1:]
	wc.awaiting = next.kind
	r.send(id, next.kind, next.payload)
}

func (r *Renderer) handleMessage(from uint32, msg *protocol.Message) {
	wc, ok := r.workers[from]
	if !ok {
		r.logger.Printf("message from unknown worker %d", from)
		return
	}

	switch msg.Kind {
	case protocol.KindError:
		var p protocol.ErrorPayload
		r.codec.Unmarshal(msg.Body, &p)
		r.fail(from, fmt.Errorf("%s", p.Message))
	case protocol.KindOK:
		r.handleOK(wc, msg)
	case protocol.KindRenderStats:
		r.handleStats(wc, msg)
	case protocol.KindSyncImage:
		r.handleSyncImage(wc, msg)
	default:
		r.logger.Printf("unexpected message kind %s from %d", msg.Kind, from)
	}
}

func (r *Renderer) handleOK(wc *workerConn, msg *protocol.Message) {
	if wc.awaiting == protocol.KindBuildBVH {
		var p protocol.WorkerBoundsPayload
		if err := r.codec.Unmarshal(msg.Body, &p); err != nil {
			r.fail(wc.id, fmt.Errorf("decode worker bounds: %w", err))
			return
		}
		wc.bounds = boundsFromWire(p)
		wc.boundsKnown = true
		r.boundsLeft--
	}

	if len(wc.queue) > 0 {
		r.advance(wc.id)
		return
	}

	// This worker's static setup queue is exhausted. If BUILD_BVH was its
	// last step, it's waiting on the cluster BVH barrier; once every
	// worker has reported bounds, compute it and fan out phase two.
	if r.boundsLeft == 0 && !wc.stopped && wc.awaiting != protocol.KindRenderStart {
		r.maybeStartPhaseTwo()
	}
}

// maybeStartPhaseTwo builds the cluster BVH once every worker's bounds are
// known and queues SYNC_WBVH/SYNC_CAMERA/RENDER_START for each worker that
// hasn't already been given its phase-two queue.
func (r *Renderer) maybeStartPhaseTwo() {
	if r.boundsLeft != 0 {
		return
	}
	wbvh := r.buildClusterBVH()
	width := r.cfg.Width
	per := width / len(r.order)
	if per < 1 {
		per = 1
	}

	for i, id := range r.order {
		wc := r.workers[id]
		if len(wc.queue) > 0 || wc.awaiting == protocol.KindRenderStart {
			continue
		}
		offset := i * per
		chunk := per
		if i == len(r.order)-1 {
			chunk = width - offset
		}
		wc.queue = []pendingMsg{
			{protocol.KindSyncWBVH, wbvh},
			{protocol.KindSyncCamera, r.cameraPayload()},
			{protocol.KindRenderStart, protocol.RenderStartPayload{Offset: offset, Chunk: chunk}},
		}
		r.advance(id)
	}
}

func (r *Renderer) handleStats(wc *workerConn, msg *protocol.Message) {
	var p protocol.RenderStatsPayload
	if err := r.codec.Unmarshal(msg.Body, &p); err != nil {
		r.logger.Printf("decode stats from %d: %v", wc.id, err)
		return
	}
	pause, resume, idle := wc.stats.observe(p, r.idleIntervals)
	switch {
	case pause:
		r.send(wc.id, protocol.KindRenderPause, nil)
	case resume:
		r.send(wc.id, protocol.KindRenderResume, nil)
	}
	if idle && !wc.stopped {
		wc.stopped = true
		r.send(wc.id, protocol.KindRenderStop, nil)
	}
}

func (r *Renderer) handleSyncImage(wc *workerConn, msg *protocol.Message) {
	var p protocol.SyncImagePayload
	if err := r.codec.Unmarshal(msg.Body, &p); err != nil {
		r.fail(wc.id, fmt.Errorf("decode sync_image: %w", err))
		return
	}
	names := make([]string, len(p.Buffers))
	for i, b := range p.Buffers {
		names[i] = b.Name
	}
	part := image.New(p.Width, p.Height, names)
	for _, b := range p.Buffers {
		copy(part.Buffer(b.Name), b.Data)
	}
	if err := r.img.Merge(part); err != nil {
		r.fail(wc.id, fmt.Errorf("merge image: %w", err))
		return
	}
	wc.finished = true
}

// buildSetupQueue is worker id's phase-one message list: INIT through
// SYNC_EMISSIVE and BUILD_BVH, built entirely from the distribution plan so
// it never has to look at any other worker's state while draining.
func (r *Renderer) buildSetupQueue(id uint32, peers []protocol.PeerAddr) []pendingMsg {
	q := []pendingMsg{
		{protocol.KindInit, protocol.InitPayload{WorkerID: id}},
		{protocol.KindSyncConfig, protocol.ConfigPayload{
			Width: r.cfg.Width, Height: r.cfg.Height,
			Antialias: r.cfg.Antialias, Samples: r.cfg.Samples,
			BounceLimit: r.cfg.BounceLimit, Threshold: r.cfg.Threshold,
			BufferNames: r.cfg.BufferNames, Peers: peers,
		}},
	}

	for _, mesh := range r.plan.ByWorker[id] {
		mat, ok := r.resolved.Materials[mesh.MaterialID]
		if ok {
			if r.syncer.NeedsShader(id, mat.ShaderID) {
				if sh, ok := r.resolved.Shaders[mat.ShaderID]; ok {
					q = append(q, pendingMsg{protocol.KindSyncShader, protocol.ShaderPayload{
						ShaderID: uint32(sh.ID), Source: []byte(sh.Source),
					}})
				}
			}
			for _, texID := range mat.Samplers {
				if !r.syncer.NeedsTexture(id, texID) {
					continue
				}
				if tex, ok := r.resolved.Textures[texID]; ok {
					q = append(q, pendingMsg{protocol.KindSyncTexture, texturePayload(tex)})
				}
			}
			if r.syncer.NeedsMaterial(id, mesh.MaterialID) {
				samplers := make(map[string]uint32, len(mat.Samplers))
				for name, texID := range mat.Samplers {
					samplers[name] = uint32(texID)
				}
				q = append(q, pendingMsg{protocol.KindSyncMaterial, protocol.MaterialPayload{
					MaterialID: uint32(mat.ID), ShaderID: uint32(mat.ShaderID),
					Samplers: samplers, Emissive: mat.Emissive,
				}})
			}
		}
		q = append(q, pendingMsg{protocol.KindSyncMesh, meshPayload(mesh)})
	}

	q = append(q, pendingMsg{protocol.KindSyncEmissive, protocol.LightListPayload{Workers: r.plan.LightWorkers(r.resolved)}})
	q = append(q, pendingMsg{protocol.KindBuildBVH, nil})
	return q
}

func (r *Renderer) buildClusterBVH() protocol.WBVHPayload {
	bounds := make([]geom.BoundingBox, len(r.order))
	for i, id := range r.order {
		bounds[i] = r.workers[id].bounds
	}
	return BuildClusterBVH(r.order, bounds)
}

func meshPayload(m *geom.Mesh) protocol.MeshPayload {
	p := protocol.MeshPayload{
		MeshID:     uint32(m.ID),
		MaterialID: uint32(m.MaterialID),
		Transform:  [16]float64(m.Transform),
	}
	p.Vertices = make([]protocol.VertexWire, len(m.Vertices))
	for i, v := range m.Vertices {
		p.Vertices[i] = protocol.VertexWire{
			Position: protocol.Vec3Wire{X: v.Position.X, Y: v.Position.Y, Z: v.Position.Z},
			Normal:   protocol.Vec3Wire{X: v.Normal.X, Y: v.Normal.Y, Z: v.Normal.Z},
			TexCoord: protocol.Vec2Wire{X: v.TexCoord.X, Y: v.TexCoord.Y},
		}
	}
	p.Indices = make([]uint32, 0, len(m.Triangles)*3)
	for _, t := range m.Triangles {
		p.Indices = append(p.Indices, t.A, t.B, t.C)
	}
	return p
}

func texturePayload(tex geom.Texture) protocol.TexturePayload {
	p := protocol.TexturePayload{TextureID: uint32(tex.ID), Width: tex.Width, Height: tex.Height}
	if tex.Kind == geom.TextureImage {
		p.Kind = protocol.TextureKindImage
		p.Data = make([]float64, len(tex.Data))
		for i, v := range tex.Data {
			p.Data[i] = float64(v)
		}
	} else {
		p.Kind = protocol.TextureKindProcedural
		p.Source = []byte(tex.Source)
	}
	return p
}

func (r *Renderer) cameraPayload() protocol.CameraPayload {
	c := r.resolved.Camera
	return protocol.CameraPayload{
		Eye:         protocol.Vec3Wire{X: c.Eye.X, Y: c.Eye.Y, Z: c.Eye.Z},
		Look:        protocol.Vec3Wire{X: c.Look.X, Y: c.Look.Y, Z: c.Look.Z},
		WorldUp:     protocol.Vec3Wire{X: c.WorldUp.X, Y: c.WorldUp.Y, Z: c.WorldUp.Z},
		RotationDeg: c.RotationDeg,
		Aspect:      float64(r.cfg.Width) / float64(r.cfg.Height),
	}
}

func boundsFromWire(p protocol.WorkerBoundsPayload) geom.BoundingBox {
	return geom.BoundingBox{
		Min: vec3.Vec3{X: p.Min.X, Y: p.Min.Y, Z: p.Min.Z},
		Max: vec3.Vec3{X: p.Max.X, Y: p.Max.Y, Z: p.Max.Z},
	}
}

func writeImage(enc imageio.Encoder, img *image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("renderer: create %s: %w", path, err)
	}
	defer f.Close()
	return enc.Encode(f, img)
}
