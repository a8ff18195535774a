package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duerp.org/internal/catalogue"
	"duerp.org/internal/httpapi"
	"duerp.org/internal/obs"
	"duerp.org/internal/prevention"
	"duerp.org/internal/store/pg"
	"duerp.org/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cat := catalogue.Default()

	// Durable store when a DSN is configured, in-memory otherwise. The
	// in-memory store is for local evaluation only: nothing survives restart.
	var (
		store prevention.Store
		db    *sql.DB
	)
	if dsn := os.Getenv("DUERP_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn, cat)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		log.Println("DUERP_PG_DSN not set, using in-memory store")
		store = prevention.NewInMemory(cat)
	}

	events := stream.New()
	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, store, cat, events)

	addr := os.Getenv("DUERP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // SSE responses outlive normal requests
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting duerp-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
