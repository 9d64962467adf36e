package main

import (
	"fmt"
	"os"

	"github.com/kotonoha/dictation-backend/internal/clients/gcp"
	"github.com/kotonoha/dictation-backend/internal/clients/gemini"
	"github.com/kotonoha/dictation-backend/internal/clients/tts"
	"github.com/kotonoha/dictation-backend/internal/data/db"
	sentencerepo "github.com/kotonoha/dictation-backend/internal/data/repos/sentence"
	"github.com/kotonoha/dictation-backend/internal/generation"
	httpServer "github.com/kotonoha/dictation-backend/internal/http"
	httpH "github.com/kotonoha/dictation-backend/internal/http/handlers"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
	"github.com/kotonoha/dictation-backend/internal/services"
	"github.com/kotonoha/dictation-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	sentenceRepo := sentencerepo.NewRepo(thePG, log, nil)

	// Clients
	log.Info("Setting up clients from main...")
	geminiClient, err := gemini.NewClient(log)
	if err != nil {
		log.Fatal("Gemini client init failed", "error", err)
	}
	ttsClient, err := tts.NewClient(log, nil)
	if err != nil {
		log.Fatal("TTS client init failed", "error", err)
	}
	bucketService, err := gcp.NewBucketService(log)
	if err != nil {
		log.Fatal("Bucket service init failed", "error", err)
	}

	// Generation
	sampler := generation.NewSampler(generation.DefaultSamplerConfig(), nil)
	generator := generation.NewGenerator(geminiClient, log)

	// Services
	log.Info("Setting up services from main...")
	contentService := services.NewContentService(sampler, generator, sentenceRepo, ttsClient, bucketService, log)

	// HTTP
	server := httpServer.NewServer(httpServer.RouterConfig{
		Log:            log,
		ContentHandler: httpH.NewContentHandler(contentService, log),
		HealthHandler:  httpH.NewHealthHandler(),
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting HTTP server", "port", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatal("HTTP server exited", "error", err)
	}
}
