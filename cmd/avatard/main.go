package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/TAKIS21345/techsteps-sub004/internal/audio"
	"github.com/TAKIS21345/techsteps-sub004/internal/behavior"
	"github.com/TAKIS21345/techsteps-sub004/internal/bus"
	"github.com/TAKIS21345/techsteps-sub004/internal/config"
	"github.com/TAKIS21345/techsteps-sub004/internal/expression"
	"github.com/TAKIS21345/techsteps-sub004/internal/logging"
	"github.com/TAKIS21345/techsteps-sub004/internal/mesh"
	"github.com/TAKIS21345/techsteps-sub004/internal/morph"
	"github.com/TAKIS21345/techsteps-sub004/internal/perf"
	"github.com/TAKIS21345/techsteps-sub004/internal/stream"
	"github.com/TAKIS21345/techsteps-sub004/internal/tts"
	"github.com/TAKIS21345/techsteps-sub004/internal/viseme"
)

func main() {
	speak := flag.String("speak", "", "synthesize this text once at startup and animate it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}

	logger.Info().Msg("Avatar animation daemon starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := bus.NewEventBus()
	buffer := morph.NewBuffer()

	if cfg.Mesh.ModelPath != "" {
		targets, err := mesh.LoadMorphTargets(cfg.Mesh.ModelPath)
		if err != nil {
			logger.Warn().Err(err).Str("model", cfg.Mesh.ModelPath).
				Msg("Morph target validation disabled")
		} else {
			buffer.SetValidKeys(targets.Names, func(key string) {
				logger.Warn().Str("key", key).Msg("Morph key not in avatar model")
			})
			logger.Info().Int("targets", len(targets.Names)).Msg("Morph target catalog loaded")
		}
	}

	governor := perf.NewGovernor(&cfg.Perf, logger, nil)

	engine := expression.NewEngine(&cfg.Engine, expression.NewLibrary(), buffer,
		governor, events, logger, nil)
	engine.Start()

	selector := expression.NewSelector(&cfg.Selector, engine, logger, nil)
	coordinator := behavior.NewCoordinator(&cfg.Behavior, engine, selector, events, logger, nil)

	extractor := audio.NewExtractor(&cfg.Audio)
	classifier := viseme.NewClassifier(&cfg.Classifier)
	vad := audio.NewVAD(&cfg.VAD, nil)
	driver := viseme.NewDriver(extractor, classifier, nil, buffer, governor, events, vad, logger)

	server := stream.NewServer(&stream.ServerConfig{
		ListenAddr:     cfg.Stream.ListenAddr,
		UpdateRateHz:   cfg.Stream.UpdateRateHz,
		AllowAnyOrigin: cfg.Stream.AllowAnyOrigin,
	}, buffer, events, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Stream server failed to start")
		os.Exit(1)
	}

	if err := config.Watch(ctx, logger, func(fresh *config.Config) {
		// Runtime reconfiguration is limited to behavior arbitration;
		// structural settings need a restart.
		coordinator.UpdateConfig(&fresh.Behavior)
	}); err != nil {
		logger.Warn().Err(err).Msg("Config watching disabled")
	}

	var provider tts.Provider
	switch cfg.TTS.Provider {
	case "", "openai":
		provider = tts.NewOpenAIProvider(cfg.TTS.APIKey, cfg.TTS.VoiceID, logger)
	default:
		logger.Warn().Str("provider", cfg.TTS.Provider).Msg("Unknown speech provider")
	}

	if *speak != "" && provider != nil {
		go func() {
			if err := driver.StartStreamingLipSync(ctx, *speak, provider, nil); err != nil {
				logger.Error().Err(err).Msg("Lip-sync session failed")
			}
		}()
		selector.ProcessContent(*speak, 1.0)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutting down")
	cancel()
	driver.StopStreamingLipSync()
	engine.Dispose()
	server.Stop()
}
