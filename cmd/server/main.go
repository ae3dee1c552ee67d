package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardroom/internal/api"
	"cardroom/internal/auth"
	"cardroom/internal/blackjack"
	"cardroom/internal/config"
	"cardroom/internal/db"
	"cardroom/internal/giveaway"
	"cardroom/internal/hub"
	"cardroom/internal/ledger"
	"cardroom/internal/models"
	"cardroom/internal/poker"
	"cardroom/internal/registry"
	"cardroom/internal/trade"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Main entry point: loads persisted state, wires the engines together, and
// serves the auth endpoints plus the websocket event surface.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(ctx)

	// Load persisted state before accepting any events.
	led := ledger.New(database)
	users, err := database.LoadUsers(ctx)
	if err != nil {
		log.Fatalf("Failed to load users: %v", err)
	}
	led.Load(users)
	log.Infof("loaded %d users", len(users))

	reg := registry.New()
	sched := giveaway.New(led, database, giveaway.Config{
		Tick:        cfg.GiveawayTick,
		MaxAge:      cfg.GiveawayMaxAge,
		MaxEntrants: cfg.GiveawayMaxEntrants,
	})
	open, err := database.LoadOpenGiveaways(ctx)
	if err != nil {
		log.Fatalf("Failed to load giveaways: %v", err)
	}
	sched.Load(open)
	log.Infof("restored %d open giveaways", len(open))

	broadcastHub := hub.New(func() models.StateSnapshot {
		return models.StateSnapshot{
			Players:   led.SnapshotFor(reg.OnlineUsers()),
			Giveaways: sched.Snapshot(),
		}
	})
	led.SetNotifier(broadcastHub)
	sched.OnClose(func(closed models.Giveaway, winnerID int64) {
		broadcastHub.Broadcast(hub.Envelope{Type: hub.TypeGiveawayClosed, Data: map[string]interface{}{
			"giveaway":  closed,
			"winner_id": winnerID,
		}})
		if winnerID == 0 {
			broadcastHub.Announce(fmt.Sprintf("giveaway #%d closed with no entrants, %d coins returned to %s",
				closed.ID, closed.Amount, closed.HostName))
		} else {
			name, _ := led.Username(winnerID)
			broadcastHub.Announce(fmt.Sprintf("giveaway #%d closed, %s won %d coins",
				closed.ID, name, closed.Amount))
		}
		broadcastHub.Publish()
	})

	authService := auth.NewService(database, cfg.JWTSecret, cfg.StartingBalance)
	handler := &api.Handler{
		DB:        database,
		Auth:      authService,
		Ledger:    led,
		Registry:  reg,
		Hub:       broadcastHub,
		Blackjack: blackjack.New(led),
		Poker:     poker.New(led, reg),
		Giveaways: sched,
		Trades:    trade.New(led),
	}

	go broadcastHub.Run(ctx)
	go sched.Run(ctx)

	// Periodic state broadcast, on top of the per-mutation publishes.
	go func() {
		ticker := time.NewTicker(cfg.BroadcastInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				broadcastHub.Publish()
			}
		}
	}()

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", handler.Register)
	r.Post("/auth/login", handler.Login)
	r.Get("/ws", handler.HandleWebSocket)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	log.Infof("starting server on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
