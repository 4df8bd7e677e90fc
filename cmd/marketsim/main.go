package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ndrandal/marketsim/internal/api"
	"github.com/ndrandal/marketsim/internal/config"
	"github.com/ndrandal/marketsim/internal/engine"
	"github.com/ndrandal/marketsim/internal/logging"
	"github.com/ndrandal/marketsim/internal/metrics"
	"github.com/ndrandal/marketsim/internal/publish"
	"github.com/ndrandal/marketsim/internal/session"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "marketsim: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("market simulator exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Info().
		Int64("seed", seed).
		Str("config", cfg.File).
		Msg("market simulator starting")

	eng := engine.New(engine.NewRNG(seed), engineOptions(cfg, &log))
	mgr := session.NewManager(eng, cfg.Stream.SendBuffer, log)

	eng.OnTick(mgr.BroadcastSnapshot)
	eng.OnEvent(mgr.BroadcastEvent)

	mux := http.NewServeMux()
	mux.HandleFunc("/feed", session.Handler(mgr))
	api.NewServer(eng, mgr, log).Register(mux)

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.NewRecorder()
		eng.OnTick(rec.ObserveSnapshot)
		eng.OnEvent(rec.ObserveEvent)
		rec.GaugeFunc("stream_clients", "Connected WebSocket clients.", func() float64 {
			return float64(mgr.ClientCount())
		})
		rec.GaugeFunc("stream_dropped_messages", "Messages dropped on full client buffers.", func() float64 {
			return float64(mgr.Dropped())
		})
		rec.GaugeFunc("history_cache_entries", "Cached history series.", func() float64 {
			return float64(eng.HistoryCacheSize())
		})
		mux.Handle(cfg.Metrics.Path, rec.Handler())
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.KafkaEnabled() {
		var obs publish.Observer
		if rec != nil {
			obs = rec
		}
		pub, err := publish.New(publish.Config{
			Brokers:      cfg.Kafka.Brokers,
			QuoteTopic:   cfg.Kafka.QuoteTopic,
			EventTopic:   cfg.Kafka.EventTopic,
			QueueSize:    cfg.Kafka.QueueSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  cfg.Kafka.Compression,
		}, obs, log)
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		eng.OnTick(pub.PublishSnapshot)
		eng.OnEvent(pub.PublishEvent)
		g.Go(func() error { return pub.Run(gctx) })
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("kafka publishing enabled")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().
			Str("feed", fmt.Sprintf("ws://%s/feed", cfg.Addr())).
			Str("health", fmt.Sprintf("http://%s/health", cfg.Addr())).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		eng.Stop()
		mgr.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if cfg.Simulation.Autostart {
		eng.Start()
	}

	err := g.Wait()
	log.Info().Uint64("ticks", eng.TickCount()).Msg("market simulator stopped")
	return err
}

func engineOptions(cfg *config.Config, log *zerolog.Logger) engine.Options {
	opts := engine.DefaultOptions()
	sim := cfg.Simulation

	opts.TickInterval = sim.TickInterval
	opts.RegimeInterval = sim.RegimeInterval
	opts.SectorBiasDecay = sim.SectorBiasDecay
	opts.EventLogLimit = sim.EventLogLimit
	opts.Selected = sim.Selected
	opts.Logger = log

	opts.Regime.ShockDecayMinPeriods = sim.ShockDecayMinPeriods
	opts.Regime.ShockDecayMaxPeriods = sim.ShockDecayMaxPeriods
	opts.Regime.FlashRecoveryDelay = sim.FlashRecoveryDelay
	opts.Regime.FlashRestoreDelay = sim.FlashRestoreDelay
	return opts
}
