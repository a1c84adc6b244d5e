// Command dagflow runs a declared feature-processing graph, either in
// streaming mode (sources emit continuously until shutdown) or
// request/response mode (an HTTP endpoint drives one message per call).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nodeflow/dagflow-go/dag"
	"github.com/nodeflow/dagflow-go/dag/emit"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dagflow", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the graph configuration file (required)")
	timeoutSec := fs.Int("timeout", 30, "graceful shutdown / request timeout in seconds")
	verbose := fs.Bool("verbose", false, "enable debug-level logging")
	graphPath := fs.String("graph", "", "export the declared graph's DOT/PNG representation to this path and exit")
	httpMode := fs.Bool("http", false, "run in request/response mode behind an HTTP endpoint instead of streaming")
	port := fs.Int("port", 8080, "HTTP port to listen on in --http mode")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := log.Logger

	if *configPath == "" {
		logger.Error().Msg("--config is required")
		return 2
	}

	cfg, err := dag.LoadConfig(*configPath, *httpMode)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load graph configuration")
		return 1
	}

	if *graphPath != "" {
		if err := dag.ExportGraph(cfg, *graphPath); err != nil {
			logger.Error().Err(err).Msg("failed to export graph")
			return 1
		}
		return 0
	}

	if errs := dag.Validate(cfg, *httpMode); len(errs) > 0 {
		for _, e := range errs {
			logger.Error().Err(e).Msg("graph validation error")
		}
		return 1
	}

	registry := dag.NewReplyRegistry()
	metrics := dag.NewMetrics(nil)
	emitter := emit.NewLogEmitter(os.Stdout, false)

	timeout := time.Duration(*timeoutSec) * time.Second
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())

	coord, err := dag.NewCoordinator(cfg, runID, emitter, metrics, logger, registry)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build coordinator")
		return 1
	}
	coord.SetStepTimeout(timeout)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *httpMode {
		runCtx, cancelRun := context.WithCancel(sigCtx)
		defer cancelRun()
		go func() {
			if err := coord.Run(runCtx); err != nil {
				logger.Error().Err(err).Msg("coordinator run failed")
			}
		}()

		srv := dag.NewServer(coord, registry, timeout, nil)
		addr := fmt.Sprintf(":%d", *port)
		logger.Info().Str("addr", addr).Msg("listening for requests")
		if err := srv.ListenAndServe(sigCtx, addr); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			return 1
		}
		cancelRun()
		coord.Wait()
		return 0
	}

	// Streaming mode: --timeout bounds the process's own lifetime, not
	// just the grace period after a signal. Either a signal or the
	// deadline elapsing triggers the same orderly shutdown path.
	runCtx, cancelRun := context.WithTimeout(sigCtx, timeout)
	defer cancelRun()

	go func() {
		if err := coord.Run(runCtx); err != nil {
			logger.Error().Err(err).Msg("coordinator run failed")
		}
	}()

	<-runCtx.Done()
	logger.Info().Msg("shutting down")
	coord.Wait()
	return 0
}
