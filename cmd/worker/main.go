// Command worker runs a single FlexRender cluster member, listening for a
// renderer's coordination protocol and any number of peer workers
// forwarding rays across the cluster BVH.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flexrender/flexrender/internal/cli"
	"github.com/flexrender/flexrender/worker"
)

func main() {
	port := flag.Int("p", 19400, "listen port")
	debug := flag.Bool("debug", false, "enable debug logging to file")
	flag.Parse()

	logger, logFile := cli.SetupLogging("worker", *debug)
	if logFile != nil {
		defer logFile.Close()
	}

	w := worker.New(logger)
	addr := fmt.Sprintf("0.0.0.0:%d", *port)
	if err := w.Init(addr); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
	if err := w.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if err := w.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}
