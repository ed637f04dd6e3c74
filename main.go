package main

import (
	"context"
	"log"
	"os"
	"time"

	"aidesk/internal/acquire"
	"aidesk/internal/api"
	"aidesk/internal/artifact"
	"aidesk/internal/config"
	"aidesk/internal/controller"
	"aidesk/internal/redis"
	"aidesk/internal/session"
	"aidesk/internal/storage"
	"aidesk/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("AIDESK_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("AIDESK_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// the cache is an accelerator, not a dependency; run without it when
	// redis is unreachable
	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, fetch caching disabled: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	sessions := session.NewStore(session.Defaults{
		Provider: cfg.Defaults.Provider,
		Model:    cfg.Defaults.Model,
		Language: cfg.Defaults.Language,
		Speed:    cfg.Defaults.Speed,
	})

	fetchTimeout := time.Duration(cfg.BasicConfig.FetchTimeout) * time.Second
	fetchCacheTTL := time.Duration(cfg.BasicConfig.FetchCacheTTL) * time.Minute
	acquirer, err := acquire.New(fetchTimeout, rdb, fetchCacheTTL)
	if err != nil {
		log.Fatalf("init acquirer: %v", err)
	}

	artifactTTL := time.Duration(cfg.BasicConfig.ArtifactTTL) * time.Minute
	artifacts := artifact.NewStore(db, cfg.BasicConfig.ArtifactDir, artifactTTL)
	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	cleanInterval := time.Duration(cfg.BasicConfig.ArtifactCleanEvery) * time.Minute
	artifacts.StartCleaner(cleanCtx, cleanInterval)

	ctrl := controller.New(sessions, acquirer, artifacts, cfg.Providers, cfg.Defaults.SpeechModel)
	workerCfg := worker.DispatcherConfig{
		MinWorkers:        cfg.BasicConfig.MinWorkers,
		MaxWorkers:        cfg.BasicConfig.MaxWorkers,
		QueueSize:         cfg.BasicConfig.QueueSize,
		WorkerIdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	}
	handlers := api.NewHandler(ctrl, artifacts, workerCfg)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
