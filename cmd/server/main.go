package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dream-atlas/backend/internal/api"
	"github.com/dream-atlas/backend/internal/config"
	"github.com/dream-atlas/backend/internal/core"
	"github.com/dream-atlas/backend/internal/logger"
	"github.com/dream-atlas/backend/internal/media"
	"github.com/dream-atlas/backend/internal/pdf"
	"github.com/dream-atlas/backend/internal/storage"
	"github.com/dream-atlas/backend/internal/store"
)

func main() {
	config.LoadConfig()

	log, err := logger.New(config.AppConfig.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", "error", err)
	}
	defer dbStore.Close()

	objects, err := storage.NewGCSStore(ctx, log, config.AppConfig.StorageBucket, config.AppConfig.StoragePublicBaseURL)
	if err != nil {
		log.Fatal("failed to create object store", "error", err)
	}
	defer objects.Close()

	llm, err := core.NewLLMService(ctx, log, config.AppConfig.GeminiAPIKey)
	if err != nil {
		log.Fatal("failed to create model client", "error", err)
	}
	defer llm.Close()

	classifier := media.NewClassifier(log, nil)
	frames := media.NewFrameExtractor(log, config.AppConfig.FFmpegPath)
	normalizer := media.NewNormalizer(log, classifier, frames, objects, dbStore, nil)

	assembler := core.NewContextService(log, dbStore, normalizer, objects)
	interpret := core.NewInterpretService(log, llm, dbStore, assembler)
	chat := core.NewChatService(log, dbStore, assembler, interpret)
	journal := pdf.NewJournalRenderer(log, objects)

	handler := api.NewAPIHandler(log, dbStore, interpret, chat, normalizer, journal)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:              ":" + config.AppConfig.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", config.AppConfig.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
