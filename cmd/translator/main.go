// Game translator server - captures a screen region, recognises text and
// streams translations over WebSocket
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/game-translator/internal/config"
	"github.com/GriffinCanCode/game-translator/internal/history"
	"github.com/GriffinCanCode/game-translator/internal/language"
	"github.com/GriffinCanCode/game-translator/internal/pipeline"
	"github.com/GriffinCanCode/game-translator/internal/recognition"
	"github.com/GriffinCanCode/game-translator/internal/screen"
	"github.com/GriffinCanCode/game-translator/internal/server"
	"github.com/GriffinCanCode/game-translator/internal/translate"
)

func main() {
	config.LoadEnvFiles(".env")
	cfg := config.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	langs := language.Default()
	opts := cfg.Options
	if err := opts.Validate(langs); err != nil {
		slog.Warn("invalid options, using defaults", "error", err)
		opts = config.DefaultOptions()
	}

	// Recognition backends
	local := recognition.NewTesseract(cfg.TessdataPrefix)
	remote, err := recognition.DialRemote(cfg.RemoteOCRAddr)
	if err != nil {
		slog.Error("failed to create remote OCR client", "addr", cfg.RemoteOCRAddr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = remote.Close() }()

	engines := map[string]recognition.Engine{
		config.EngineTesseract: local,
		config.EngineRemote: recognition.Calibrate(remote, recognition.Calibration{
			Scale:  cfg.RemoteConfidenceScale,
			Offset: cfg.RemoteConfidenceOffset,
		}),
	}
	selectors := make(map[string]*recognition.Selector, len(engines))
	for name, e := range engines {
		selectors[name] = recognition.NewSelector(e, cfg.OCRWorkers)
	}

	installed := installedLanguages(ctx, langs, local, remote)
	candidates := language.Candidates(installed, cfg.CandidateLanguages)
	slog.Info("recognition languages", "installed", len(installed), "candidates", candidates)

	// Frame source
	var source screen.Source
	if cfg.CaptureFile != "" {
		source = screen.NewFileSource(cfg.CaptureFile)
	} else {
		source = screen.New()
	}
	defer func() { _ = source.Close() }()

	hist := history.New(cfg.HistoryCapacity)
	translator := translate.NewGoogle(cfg.TranslateURL, cfg.TranslateTimeout)
	sched := pipeline.New(pipeline.Deps{
		Source:     source,
		Selector:   selectors[config.EngineTesseract],
		Engines:    selectors,
		Translator: translate.NewTranslator(translator),
		History:    hist,
		Languages:  langs,
	}, opts, pipeline.Settings{
		Region:            cfg.Region,
		Candidates:        candidates,
		MinInterval:       cfg.MinUpdateInterval,
		SkipSimilarFrames: cfg.SkipSimilarFrames,
		FrameHashDistance: cfg.FrameHashDistance,
		EventBuffer:       cfg.EventBuffer,
	})

	// Create HTTP/WebSocket server
	srv := server.New(sched, hist, langs, installed)
	srv.ReportHealth(translator, remote)
	go srv.Run(ctx)

	if cfg.Region.Valid() {
		if err := sched.Start(ctx); err != nil {
			slog.Warn("capture not started", "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("translator server starting", "http", cfg.HTTPAddr, "engine", opts.OCREngine, "remote", cfg.RemoteOCRAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	sched.Stop()
	slog.Info("shutdown complete")
}

// installedLanguages asks each backend for its language packs and keeps the
// table entries any of them can recognise. With no answer at all, every
// table language is offered and missing packs surface as empty results.
func installedLanguages(ctx context.Context, langs *language.Table, listers ...recognition.LanguageLister) []language.Info {
	var codes []string
	for _, l := range listers {
		lctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		got, err := l.Languages(lctx)
		cancel()
		if err != nil {
			slog.Debug("language listing failed", "error", err)
			continue
		}
		codes = append(codes, got...)
	}
	if len(codes) == 0 {
		slog.Warn("no installed OCR languages detected, offering the full table")
		return langs.Sources()
	}
	return langs.Installed(codes)
}
