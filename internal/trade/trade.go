// Package trade implements the two-party trade handshake. Requests live in
// memory only and never expire; acceptance moves no balances in this
// version, the handshake is a placeholder for item exchange.
package trade

import (
	"sync"

	"cardroom/internal/ledger"
	"cardroom/internal/models"

	log "github.com/sirupsen/logrus"
)

// Users answers whether a trade target exists.
type Users interface {
	Exists(userID int64) bool
}

// Manager owns all trade requests, keyed by a process-local monotonic id.
type Manager struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]*models.TradeRequest
	users    Users
}

// New creates a trade manager.
func New(users Users) *Manager {
	return &Manager{
		nextID:   1,
		requests: make(map[int64]*models.TradeRequest),
		users:    users,
	}
}

// Start creates a PENDING request from one user to another.
func (m *Manager) Start(fromID, toID int64) (*models.TradeRequest, error) {
	if !m.users.Exists(toID) {
		return nil, ledger.ErrUnknownUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	req := &models.TradeRequest{
		ID:     m.nextID,
		FromID: fromID,
		ToID:   toID,
		Status: models.TradePending,
	}
	m.nextID++
	m.requests[req.ID] = req

	log.WithFields(log.Fields{"trade_id": req.ID, "from": fromID, "to": toID}).
		Debug("trade requested")
	return req, nil
}

// Accept transitions a PENDING request to ACCEPTED. Unknown ids and
// already-settled requests are a no-op; the bool reports whether the
// transition happened.
func (m *Manager) Accept(id int64) (*models.TradeRequest, bool) {
	return m.settle(id, models.TradeAccepted)
}

// Decline transitions a PENDING request to DECLINED, same no-op rules.
func (m *Manager) Decline(id int64) (*models.TradeRequest, bool) {
	return m.settle(id, models.TradeDeclined)
}

func (m *Manager) settle(id int64, status string) (*models.TradeRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != models.TradePending {
		return req, false
	}
	req.Status = status
	return req, true
}
