package main

import (
	"context"
	"log"
	"os"

	"invoicedash/internal/api"
	"invoicedash/internal/config"
	"invoicedash/internal/export"
	"invoicedash/internal/extract"
	"invoicedash/internal/logger"
	"invoicedash/internal/metrics"
	"invoicedash/internal/redis"
	"invoicedash/internal/service/invoice"
	"invoicedash/internal/storage"
	"invoicedash/internal/upload"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("INVOICEDASH_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logr, err := logger.New(cfg.BasicConfig.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync()

	logr.Info("opening database", zap.String("driver", cfg.Database.Driver))
	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logr.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
		logr.Fatal("migrate database", zap.Error(err))
	}

	var registry upload.Registry = upload.NewMemoryRegistry()
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			logr.Warn("redis unavailable, keeping uploads in memory", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			defer rdb.Close()
			registry = upload.NewRedisRegistry(rdb)
		}
	}
	uploads := upload.NewService(registry, cfg.UploadTTL(), logr.Named("upload"))

	opts := []extract.Option{
		extract.WithFileLookup(uploads),
		extract.WithLogger(logr.Named("extract")),
	}
	if path := cfg.BasicConfig.SampleTextPath; path != "" {
		source, err := extract.NewFileSource(context.Background(), path)
		if err != nil {
			logr.Fatal("init sample text source", zap.String("path", path), zap.Error(err))
		}
		opts = append(opts, extract.WithTextSource(source))
	}
	extractor := extract.NewAdapter(map[extract.Variant]extract.Extractor{
		extract.Gemini: extract.NewChatExtractor(extract.Gemini, cfg.Provider(config.ProviderGemini), opts...),
		extract.Groq:   extract.NewChatExtractor(extract.Groq, cfg.Provider(config.ProviderGroq), opts...),
	})

	invoices := invoice.NewService(db)
	handlers := api.NewHandler(
		invoices,
		extractor,
		uploads,
		export.NewService(invoices, logr.Named("export")),
		metrics.New(),
		logr.Named("api"),
	)

	router := gin.New()
	handlers.RegisterRoutes(router)

	addr := cfg.Addr()
	logr.Info("server listening", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}
