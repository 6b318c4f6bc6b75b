// Command renderer is the FlexRender cluster coordinator: it loads the
// render configuration and scene description, distributes the scene
// across the configured workers, drives them through the coordination
// protocol, and writes the assembled image once every worker reports
// finished.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/flexrender/flexrender/config"
	"github.com/flexrender/flexrender/internal/cli"
	"github.com/flexrender/flexrender/renderer"
	"github.com/flexrender/flexrender/scene"
)

func main() {
	intervals := flag.Int("i", renderer.DefaultIdleIntervals, "idle-stats window before a finished worker is stopped")
	debug := flag.Bool("debug", false, "enable debug logging to file")
	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: renderer <config> <scene> [-i intervals]")
		os.Exit(1)
	}
	configPath, scenePath := flag.Arg(0), flag.Arg(1)

	logger, logFile := cli.SetupLogging("renderer", *debug)
	if logFile != nil {
		defer logFile.Close()
	}

	cfg, err := config.YAMLSource{Path: configPath}.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "renderer: %v\n", err)
		os.Exit(1)
	}

	raw, err := scene.YAMLSource{Path: scenePath}.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "renderer: %v\n", err)
		os.Exit(1)
	}
	resolved, err := scene.Resolve(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "renderer: %v\n", err)
		os.Exit(1)
	}

	rend := renderer.New(logger)
	if err := rend.Init(cfg, resolved, *intervals); err != nil {
		fmt.Fprintf(os.Stderr, "renderer: %v\n", err)
		os.Exit(1)
	}
	if err := rend.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "renderer: %v\n", err)
		os.Exit(1)
	}
	if err := rend.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "renderer: %v\n", err)
		os.Exit(1)
	}
}
