package models

import "time"

// User represents a registered player. Balance is owned by the ledger and
// mutated only through it.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Balance      int64
	CreatedAt    time.Time
}

// Giveaway statuses
const (
	GiveawayOpen   = "open"
	GiveawayClosed = "closed"
)

// Giveaway is a host-funded pooled prize resolved to one random entrant.
// EntrantIDs keeps insertion order and holds no duplicates.
type Giveaway struct {
	ID         int64     `json:"id"`
	HostID     int64     `json:"host_id"`
	HostName   string    `json:"host_name"`
	Amount     int64     `json:"amount"`
	EntrantIDs []int64   `json:"entrant_ids"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Trade request statuses
const (
	TradePending  = "pending"
	TradeAccepted = "accepted"
	TradeDeclined = "declined"
)

// TradeRequest is an in-memory two-party handshake. It is never persisted;
// a restart drops pending requests.
type TradeRequest struct {
	ID     int64  `json:"id"`
	FromID int64  `json:"from_id"`
	ToID   int64  `json:"to_id"`
	Status string `json:"status"`
}

// PlayerSnapshot is one entry of the broadcast state frame.
type PlayerSnapshot struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

// StateSnapshot is the global view sent to every connection after any
// state-affecting event: who is online and the current giveaway queue.
type StateSnapshot struct {
	Players   []PlayerSnapshot `json:"players"`
	Giveaways []Giveaway       `json:"giveaways"`
}
