package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"reelvault/api"
	"reelvault/config"
	"reelvault/internal/database"
	"reelvault/services/accounts"
	"reelvault/services/backup"
	"reelvault/services/collections"
	"reelvault/services/sessions"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use environment")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	db, err := database.NewDB(database.Config{DatabasePath: cfg.DatabasePath()})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	accountsSvc, err := accounts.NewService(cfg.DataDir)
	if err != nil {
		log.Fatalf("accounts: %v", err)
	}
	sessionsSvc, err := sessions.NewService(cfg.DataDir, cfg.SessionDuration)
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}
	collectionsSvc := collections.NewService(db, collections.Options{
		ScopeReadsToUser: cfg.ScopeReadsToUser,
	})
	backupSvc, err := backup.NewService(cfg.DataDir, cfg.DatabasePath(), collectionsSvc)
	if err != nil {
		log.Fatalf("backup: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.BackupInterval > 0 {
		go backupSvc.RunScheduled(ctx, cfg.BackupInterval, cfg.BackupKeep)
	}

	router := api.NewRouter(api.Services{
		Accounts:    accountsSvc,
		Sessions:    sessionsSvc,
		Collections: collectionsSvc,
		Backup:      backupSvc,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[server] listening on %s (db %s)", cfg.ListenAddr, filepath.Base(cfg.DatabasePath()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[server] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] shutdown: %v", err)
	}
}
