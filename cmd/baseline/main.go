// Command baseline is the single-process FlexRender variant: the whole
// scene lives in one worker.Library with no partitioning, no peer
// connections, and no cluster BVH, so every ray's distributed traversal
// degrades to the linear scan over a cluster of exactly one worker.
// Useful as a reference render and for isolating the ray pipeline from
// the coordination protocol.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/flexrender/flexrender/config"
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/image"
	"github.com/flexrender/flexrender/imageio"
	"github.com/flexrender/flexrender/internal/cli"
	"github.com/flexrender/flexrender/ray"
	"github.com/flexrender/flexrender/scene"
	"github.com/flexrender/flexrender/shader"
	"github.com/flexrender/flexrender/worker"
)

// selfID is the sole worker id a single-process render runs under.
const selfID uint32 = 1

func main() {
	jobs := flag.Int("j", 10, "job pool size")
	offset := flag.Int("o", 0, "camera x offset")
	chunk := flag.Int("c", 0, "camera x chunk size (0 = to image width)")
	intervals := flag.Int("i", 4, "idle-stats window before the render is considered done")
	debug := flag.Bool("debug", false, "enable debug logging to file")
	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: baseline <config> <scene> [-i intervals] [-j jobs] [-o offset] [-c chunk-size]")
		os.Exit(1)
	}
	configPath, scenePath := flag.Arg(0), flag.Arg(1)

	logger, logFile := cli.SetupLogging("baseline", *debug)
	if logFile != nil {
		defer logFile.Close()
	}

	cfg, err := config.YAMLSource{Path: configPath}.Load()
	if err != nil {
		fail(err)
	}
	raw, err := scene.YAMLSource{Path: scenePath}.Load()
	if err != nil {
		fail(err)
	}
	resolved, err := scene.Resolve(raw)
	if err != nil {
		fail(err)
	}

	lib, err := buildLibrary(resolved)
	if err != nil {
		fail(err)
	}

	cam := resolved.Camera
	cam.Width, cam.Height, cam.Antialias = cfg.Width, cfg.Height, cfg.Antialias
	cam.Aspect = float64(cfg.Width) / float64(cfg.Height)
	cam.SetRange(*offset, *chunk)

	queue := ray.NewQueue()
	queue.SetCamera(&cam)
	dispatcher := ray.NewDispatcher(*jobs)
	stats := ray.NewStats(uint64(cam.TotalSamples()))
	img := image.New(cfg.Width, cfg.Height, cfg.BufferNames)
	limits := worker.Limits{BounceLimit: cfg.BounceLimit, Threshold: cfg.Threshold, LightSamples: cfg.Samples}

	job := func(r *ray.FatRay) (res *ray.WorkResults) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Printf("%v", &worker.ShaderError{ShaderID: uint32(r.Best.Mesh), Err: fmt.Errorf("%v", rec)})
				res = &ray.WorkResults{}
			}
		}()
		return worker.ProcessRay(lib, 1, limits, r)
	}

	idleStreak := 0
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for idleStreak < *intervals {
		<-ticker.C
		for {
			r, ok := queue.Pop()
			if !ok {
				break
			}
			if r.Kind == ray.KindIntersect && r.Bounces == 0 && r.Traversal.Done() && r.WorkersTouched == 0 && r.Best.Miss() {
				stats.PrimaryGenerated.Add(1)
			}
			if !dispatcher.TrySubmit(r, job) {
				queue.Push(r)
				break
			}
		}

		drained := 0
		for {
			select {
			case res := <-dispatcher.Results():
				drainResult(img, stats, queue, res)
				drained++
				continue
			default:
			}
			break
		}

		depth := queue.Depths()
		idle := drained == 0 && depth[0]+depth[1]+depth[2] == 0 && dispatcher.InFlight() == 0
		if idle {
			idleStreak++
		} else {
			idleStreak = 0
		}
	}
	dispatcher.Wait()

	if err := writeImage(img, cfg.Output+".ppm"); err != nil {
		fail(err)
	}
}

func buildLibrary(resolved *scene.Resolved) (*worker.Library, error) {
	lib := worker.NewLibrary(selfID)

	for id, sh := range resolved.Shaders {
		prog, err := shader.DecodeProgram([]byte(sh.Source))
		if err != nil {
			return nil, fmt.Errorf("baseline: shader %d: %w", id, err)
		}
		lib.Shaders[id] = prog
	}
	for id, tex := range resolved.Textures {
		if tex.Kind == geom.TextureImage {
			lib.Textures[id] = shader.NewImageTexture(tex)
			continue
		}
		proc, err := shader.DecodeProceduralTexture([]byte(tex.Source))
		if err != nil {
			return nil, fmt.Errorf("baseline: texture %d: %w", id, err)
		}
		lib.Textures[id] = proc
	}
	for id, mat := range resolved.Materials {
		lib.Materials[id] = mat
		if mat.Emissive {
			lib.LightList[selfID] = true
		}
	}
	for _, m := range resolved.Meshes {
		lib.Meshes[m.ID] = m
	}
	lib.BuildMeshBVH()
	return lib, nil
}

func drainResult(img *image.Image, stats *ray.Stats, queue *ray.Queue, res *ray.WorkResults) {
	if res == nil {
		return
	}
	for _, op := range res.Ops {
		switch op.Kind {
		case ray.OpAccumulate:
			img.Accumulate(op.Name, op.Pixel.X, op.Pixel.Y, op.Value)
		case ray.OpWrite:
			img.Write(op.Name, op.Pixel.X, op.Pixel.Y, op.Value)
		}
	}
	stats.Apply(res)
	for _, fw := range res.Forwards {
		// Single worker: every forward, including cross-worker ones a
		// multi-node run would ship over the network, targets this
		// process's own queue.
		queue.Push(fw.Ray)
	}
}

func writeImage(img *image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("baseline: create %s: %w", path, err)
	}
	defer f.Close()
	return imageio.PPMEncoder{}.Encode(f, img)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "baseline: %v\n", err)
	os.Exit(1)
}
