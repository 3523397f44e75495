package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"grapplerank/server/store"
)

//
// ===== bootstrap =====
//

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func floatEnv(k string, def float64) float64 {
	s := os.Getenv(k)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	_ = godotenv.Load()

	var migrateOnly bool
	for _, a := range os.Args[1:] {
		if a == "--migrate" {
			migrateOnly = true
		}
	}

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := store.Open(cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close(context.Background())

	if migrateOnly || cfg.Database.AutoMigrate {
		if err := store.Migrate(context.Background(), db); err != nil {
			log.Fatal(err)
		}
		log.Println("migrated")
		if migrateOnly {
			return
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      Router(db, cfg),
		ReadTimeout:  cfg.Server.readTimeout(),
		WriteTimeout: cfg.Server.writeTimeout(),
	}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		log.Println("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("listening on http://localhost:%s (tau=%g)", cfg.Server.Port, cfg.Rating.Tau)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
