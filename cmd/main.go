package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vovarama1992/opencode-chat-bridge/internal/bridge"
	"github.com/Vovarama1992/opencode-chat-bridge/internal/opencode"
)

func main() {
	_ = godotenv.Load()

	port := envOr("PORT", "8080")

	// --- Journal (optional) ---
	var journal bridge.Journal = bridge.NopJournal{}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		if err := bridge.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("db schema error: %v", err)
		}
		cancel()

		journal = bridge.NewJournal(db)
	}

	// --- OpenCode client ---
	var remote bridge.Remote
	var client *opencode.Client
	if serverURL := os.Getenv("OPENCODE_URL"); serverURL != "" {
		client = opencode.NewClient(opencode.Config{
			BaseURL:  serverURL,
			Username: envOr("OPENCODE_USERNAME", "opencode"),
			Password: os.Getenv("OPENCODE_PASSWORD"),
			Timeout:  time.Duration(envInt("OPENCODE_TIMEOUT", 300)) * time.Second,
		})
		remote = client

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		health, err := client.Health(ctx)
		cancel()
		if err != nil {
			log.Printf("[opencode] server unreachable: %v", err)
		} else {
			log.Printf("[opencode] connected, version %s", health.Version)
		}
	} else {
		log.Println("[opencode] OPENCODE_URL is not set, commands will report a configuration error")
	}

	var model *opencode.Model
	if provider, id := os.Getenv("OPENCODE_PROVIDER"), os.Getenv("OPENCODE_MODEL"); provider != "" && id != "" {
		model = &opencode.Model{ProviderID: provider, ModelID: id}
	}

	// --- Bridge wiring ---
	router := bridge.NewRouter(remote, bridge.NewStore(), journal, bridge.Options{
		Prefix: envOr("COMMAND_PREFIX", bridge.DefaultPrefix),
		Model:  model,
	})
	defer router.Close()

	var outbound *bridge.Outbound
	if u := os.Getenv("OUTBOUND_URL"); u != "" {
		outbound = bridge.NewOutbound(u, os.Getenv("OUTBOUND_TOKEN"))
	}

	limiter := bridge.NewKeyLimiter(envInt("RATE_LIMIT_PER_MINUTE", 30))
	handler := bridge.NewHandler(router, limiter, outbound, os.Getenv("WEBHOOK_SECRET"))

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Secret"},
	}))

	bridge.RegisterRoutes(r, handler)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Printf("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if client != nil {
		_ = client.Close()
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}
