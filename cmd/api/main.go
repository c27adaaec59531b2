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

	_ "github.com/jackc/pgx/v5/stdlib"

	"amparo.org/internal/auth"
	"amparo.org/internal/httpapi"
	"amparo.org/internal/lgpd"
	"amparo.org/internal/obs"
	"amparo.org/internal/pix"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("AMPARO_COMMIT"))

	dsn := os.Getenv("AMPARO_PG_DSN")
	if dsn == "" {
		log.Fatal("AMPARO_PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	production := os.Getenv("AMPARO_ENV") == "production"

	// Secrets are read once here and injected; business logic never touches
	// the process environment.
	tokens, err := auth.NewTokenService(os.Getenv("AMPARO_AUTH_SECRET"), production)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	accounts, err := auth.NewService(auth.NewPGUserStore(db), tokens)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	requests, err := lgpd.NewService(lgpd.NewPGStore(db))
	if err != nil {
		log.Fatalf("lgpd service: %v", err)
	}
	payments := pix.NewVerifier()

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, accounts, requests, payments)
	if production {
		api.EnableSecureCookies()
	}

	addr := os.Getenv("AMPARO_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting amparo-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
