package api

import (
	"encoding/json"
	"net/http"

	"cardroom/internal/auth"
	"cardroom/internal/blackjack"
	"cardroom/internal/db"
	"cardroom/internal/giveaway"
	"cardroom/internal/hub"
	"cardroom/internal/ledger"
	"cardroom/internal/poker"
	"cardroom/internal/registry"
	"cardroom/internal/trade"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Handler routes HTTP requests and websocket events to the game engines.
type Handler struct {
	DB        *db.DB
	Auth      *auth.Service
	Ledger    *ledger.Ledger
	Registry  *registry.Registry
	Hub       *hub.Hub
	Blackjack *blackjack.Engine
	Poker     *poker.Engine
	Giveaways *giveaway.Scheduler
	Trades    *trade.Manager
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, `{"error": "Username and password required"}`, http.StatusBadRequest)
		return
	}

	user, err := h.Auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, `{"error": "Failed to register user"}`, http.StatusInternalServerError)
		return
	}

	// New users join the in-memory ledger right away so they can be paid
	// before their first login.
	h.Ledger.Add(user)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"balance":  user.Balance,
	})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, `{"error": "Invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// HandleWebSocket upgrades the connection and runs its event loop until the
// peer disconnects.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("failed to upgrade connection: %v", err)
		return
	}

	client := h.Hub.Register(conn)
	defer func() {
		h.Registry.Unbind(client.ID)
		h.Hub.Remove(client.ID)
		h.Hub.Publish()
	}()

	// Fresh connections get the current state immediately.
	h.Hub.Publish()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			h.sendError(client.ID, "malformed event")
			continue
		}
		h.dispatch(r.Context(), client.ID, ev)
	}
}
