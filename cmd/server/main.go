// Command server wires the routing plane, the WebRTC session plane, and the
// read-only HTTP status surface into one process. Real RTMP/MPEG-TS-over-SRT
// listeners, UDP socket binding, and SDP/ICE signaling are external
// collaborators per spec §1 and are not implemented here — this is process
// wiring, not a second implementation of the core.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/srs-core/mediacore/pkg/api"
	"github.com/srs-core/mediacore/pkg/config"
	"github.com/srs-core/mediacore/pkg/logger"
	"github.com/srs-core/mediacore/pkg/media"
	"github.com/srs-core/mediacore/pkg/rtc"
	"github.com/srs-core/mediacore/pkg/source"
)

const shutdownGrace = 5 * time.Second

// noOpStatReporter satisfies source.StatReporter for sources that don't need
// the one-time sequence-header announcement (e.g. no HLS/DASH sinks wired).
type noOpStatReporter struct{ log *logger.Logger }

func (n noOpStatReporter) OnVideoInfo(codec media.Codec, profile, level, width, height, bitrateKbps, fps int) {
	n.log.DebugSource("video info", "codec", codec, "profile", profile, "level", level,
		"width", width, "height", height, "bitrate_kbps", bitrateKbps, "fps", fps)
}

func main() {
	fs := flag.NewFlagSet("mediacore", flag.ExitOnError)
	logFlags := logger.RegisterFlags(fs)
	envPath := fs.String("env", "", "path to a key=value config file (uses built-in defaults if empty)")
	listenAddr := fs.String("listen", "", "HTTP status server address (overrides the config file's listen_addr)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Media streaming server: stream routing plane, WebRTC session plane, MPEG-TS codec layer\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		logger.PrintUsageExamples()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error configuring logger: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	logger.SetDefault(log)

	log.Info("starting media streaming server", "log_config", logFlags.String())

	cfg := config.Default()
	if *envPath != "" {
		cfg, err = config.Load(*envPath)
		if err != nil {
			log.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	log.Info("configuration loaded",
		"candidates", cfg.RTCServer.Candidates,
		"ip_family", cfg.RTCServer.IPFamily,
		"listen_addr", cfg.ListenAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	sourceLog := log.With("component", "source").Logger
	sources := source.NewSourceManager(func(url string) *source.StreamSource {
		hub := source.NewOriginHub(noOpStatReporter{log: log})
		s := source.NewStreamSource(url, hub, sourceLog)
		s.ReduceSequenceHeader = cfg.Vhost.ReduceSequenceHeader
		return s
	}, sourceLog)

	sessions := rtc.NewSessionManager(ctx, log)
	sessions.Start()
	defer sessions.Stop()

	go sources.Run(ctx)

	statusServer := api.NewServer(sources, sessions, log)
	if err := statusServer.Start(ctx, cfg.ListenAddr); err != nil {
		log.Error("failed to start HTTP status server", "error", err)
		os.Exit(1)
	}

	log.Info("media streaming server ready")
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := statusServer.Stop(shutdownCtx); err != nil {
		log.Error("error stopping HTTP status server", "error", err)
	}
}
