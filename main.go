package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"synchro-manager/config"
	"synchro-manager/handlers"
	"synchro-manager/models"
	"synchro-manager/services"
	"synchro-manager/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := utils.OpenDatabase(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatal(err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store utils.ObjectStore
	uploadDir := ""
	if cfg.R2Enabled() {
		store, err = utils.NewR2Store(ctx, utils.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	} else {
		local := &utils.LocalStore{Dir: cfg.UploadDir, URLPrefix: "/uploads"}
		if err := local.EnsureUploadDir(); err != nil {
			log.Fatal("failed to ensure upload dir:", err)
		}
		log.Printf("⚠️  R2 not configured, storing figure pictures in %s", cfg.UploadDir)
		store, uploadDir = local, cfg.UploadDir
	}

	sched, err := services.StartStatusReconciler(db, cfg.ReconcileInterval)
	if err != nil {
		log.Fatal(err)
	}

	app := handlers.NewApp(handlers.NewServices(db, store), handlers.Options{
		ServiceToken:   cfg.ServiceToken,
		SessionSecret:  []byte(cfg.SessionSecret),
		AllowedOrigins: cfg.Origins(),
		UploadDir:      uploadDir,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Printf("Server error: %v", err)
			stop()
		}
	}()

	log.Printf("✅ Server running on %s", cfg.HTTPAddr)
	log.Printf("✅ Status reconciliation every %s", cfg.ReconcileInterval)
	log.Printf("✅ CORS configured for origins: %s", cfg.Origins())

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := sched.Shutdown(); err != nil {
		log.Printf("scheduler shutdown: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	log.Println("bye")
}
