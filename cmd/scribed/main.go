package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"clinical-scribe-service/internal/app"
	"clinical-scribe-service/internal/config"
	"clinical-scribe-service/internal/events"
	httpapi "clinical-scribe-service/internal/http"
	"clinical-scribe-service/internal/observability"
	"clinical-scribe-service/internal/service/asr"
	asrmock "clinical-scribe-service/internal/service/asr/mock"
	asrws "clinical-scribe-service/internal/service/asr/ws"
	"clinical-scribe-service/internal/service/extract"
	"clinical-scribe-service/internal/service/translate"
	"clinical-scribe-service/internal/session"
	"clinical-scribe-service/internal/store"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open session store")
	}
	defer st.Close()

	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicAutofill:   cfg.Kafka.TopicAutofill,
		Principal:       cfg.Kafka.Principal,
	})
	defer publisher.Close()

	extractor := extract.NewClient(cfg.Extraction.BaseURL, cfg.Extraction.Timeout)

	var translator translate.Translator = translate.Noop{}
	if cfg.Translation.Enabled && cfg.Translation.BaseURL != "" {
		translator = translate.NewClient(cfg.Translation.BaseURL, cfg.Translation.Timeout)
	}

	sources, err := sourceFactory(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ASR configuration")
	}

	manager := session.NewManager(
		sources,
		extractor,
		translator,
		cfg.Translation.Enabled,
		publisher,
		st,
		cfg.Chunking.SegmentsPerChunk,
	)

	obsServer := observability.NewServer(":" + cfg.Service.MetricsPort)
	obsServer.Start()

	apiServer := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      httpapi.NewRouter(manager, st),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", apiServer.Addr).Msg("Clinical scribe API started")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager.StopAll(shutdownCtx)
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown error")
	}

	application.Shutdown()
}

// sourceFactory selects the speech stream provider from configuration.
func sourceFactory(cfg *config.Config) (session.SourceFactory, error) {
	switch cfg.ASR.Provider {
	case "mock":
		return func(sessionID string) (asr.Source, error) {
			return asrmock.New(cfg.ASR.LanguageCode), nil
		}, nil
	case "ws":
		if cfg.ASR.WSURL == "" {
			return nil, fmt.Errorf("ASR_WS_URL is required for the ws provider")
		}
		return func(sessionID string) (asr.Source, error) {
			return asrws.New(asrws.Config{
				URL:          cfg.ASR.WSURL,
				APIKey:       cfg.ASR.APIKey,
				LanguageCode: cfg.ASR.LanguageCode,
				SessionID:    sessionID,
			})
		}, nil
	}
	return nil, fmt.Errorf("unknown ASR provider %q", cfg.ASR.Provider)
}
