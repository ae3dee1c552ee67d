// Package giveaway maintains a FIFO queue of host-funded giveaways and a
// background loop that resolves them. Only the queue head is ever
// evaluated: giveaways behind an unresolved head wait their turn.
package giveaway

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"cardroom/internal/models"

	log "github.com/sirupsen/logrus"
)

var (
	ErrNoActiveGiveaway = errors.New("no active giveaway")
	ErrAlreadyEntered   = errors.New("already entered this giveaway")
)

// Config controls the resolution loop. Defaults match production play; tests
// shrink them to close heads synchronously.
type Config struct {
	Tick        time.Duration // scheduler interval
	MaxAge      time.Duration // head closes when older than this
	MaxEntrants int           // head closes when this many have entered
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		Tick:        5 * time.Second,
		MaxAge:      45 * time.Second,
		MaxEntrants: 5,
	}
}

// Wallet is the slice of the ledger the scheduler needs.
type Wallet interface {
	Debit(ctx context.Context, userID, amount int64) error
	Credit(ctx context.Context, userID, amount int64) error
	Username(userID int64) (string, error)
}

// Store persists giveaway state.
type Store interface {
	SaveGiveaway(ctx context.Context, g *models.Giveaway) error
}

// Scheduler owns the giveaway queue. All access goes through its mutex; the
// background tick takes the same path as foreground commands.
type Scheduler struct {
	mu     sync.Mutex
	queue  []*models.Giveaway
	nextID int64

	wallet Wallet
	store  Store
	cfg    Config
	rng    *rand.Rand
	now    func() time.Time

	// onClose is called after a giveaway fully resolves, outside the
	// scheduler lock. winnerID is zero on a refund.
	onClose func(closed models.Giveaway, winnerID int64)
}

// New creates a scheduler.
func New(wallet Wallet, store Store, cfg Config) *Scheduler {
	return &Scheduler{
		nextID: 1,
		wallet: wallet,
		store:  store,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// OnClose registers the closure callback (broadcast wiring).
func (s *Scheduler) OnClose(f func(closed models.Giveaway, winnerID int64)) {
	s.onClose = f
}

// Load restores open giveaways from the store at startup, preserving queue
// order and the monotonic id sequence.
func (s *Scheduler) Load(giveaways []*models.Giveaway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range giveaways {
		if g.Status != models.GiveawayOpen {
			continue
		}
		s.queue = append(s.queue, g)
		if g.ID >= s.nextID {
			s.nextID = g.ID + 1
		}
	}
}

// Open debits the amount from the host and appends a new OPEN giveaway to
// the queue tail.
func (s *Scheduler) Open(ctx context.Context, hostID, amount int64) (*models.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wallet.Debit(ctx, hostID, amount); err != nil {
		return nil, err
	}

	hostName, _ := s.wallet.Username(hostID)
	g := &models.Giveaway{
		ID:        s.nextID,
		HostID:    hostID,
		HostName:  hostName,
		Amount:    amount,
		Status:    models.GiveawayOpen,
		CreatedAt: s.now(),
	}
	s.nextID++

	if err := s.store.SaveGiveaway(ctx, g); err != nil {
		// The host was already debited through the ledger, which
		// committed; hand the money back rather than queue an
		// unpersisted giveaway.
		if refundErr := s.wallet.Credit(ctx, hostID, amount); refundErr != nil {
			log.WithField("giveaway_id", g.ID).Errorf("failed to refund host after store error: %v", refundErr)
		}
		return nil, err
	}
	s.queue = append(s.queue, g)

	log.WithFields(log.Fields{"giveaway_id": g.ID, "host_id": hostID, "amount": amount}).
		Info("giveaway opened")
	return g, nil
}

// Enter adds the user to the entrant set of the queue head. Only the head
// accepts entries; there is no way to enter a queued giveaway early.
func (s *Scheduler) Enter(ctx context.Context, userID int64) (*models.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, ErrNoActiveGiveaway
	}
	head := s.queue[0]
	for _, id := range head.EntrantIDs {
		if id == userID {
			return nil, ErrAlreadyEntered
		}
	}
	head.EntrantIDs = append(head.EntrantIDs, userID)

	if err := s.store.SaveGiveaway(ctx, head); err != nil {
		log.WithField("giveaway_id", head.ID).Warnf("failed to persist entrant: %v", err)
	}
	return head, nil
}

// Snapshot returns a copy of the queue for state broadcasts.
func (s *Scheduler) Snapshot() []models.Giveaway {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Giveaway, 0, len(s.queue))
	for _, g := range s.queue {
		copied := *g
		copied.EntrantIDs = append([]int64(nil), g.EntrantIDs...)
		out = append(out, copied)
	}
	return out
}

// Run ticks the resolution loop until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick inspects only the queue head and closes it once it is old enough or
// full enough. The queue is strictly serial: nothing behind the head is
// looked at until the head resolves.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	head := s.queue[0]
	expired := s.now().Sub(head.CreatedAt) > s.cfg.MaxAge
	full := len(head.EntrantIDs) >= s.cfg.MaxEntrants
	if !expired && !full {
		s.mu.Unlock()
		return
	}

	var winnerID int64
	var err error
	if len(head.EntrantIDs) == 0 {
		err = s.wallet.Credit(ctx, head.HostID, head.Amount)
	} else {
		winnerID = head.EntrantIDs[s.rng.Intn(len(head.EntrantIDs))]
		err = s.wallet.Credit(ctx, winnerID, head.Amount)
	}
	if err != nil {
		// Leave the head in place; the next tick retries the payout.
		s.mu.Unlock()
		log.WithField("giveaway_id", head.ID).Errorf("failed to pay out giveaway: %v", err)
		return
	}

	head.Status = models.GiveawayClosed
	if err := s.store.SaveGiveaway(ctx, head); err != nil {
		log.WithField("giveaway_id", head.ID).Warnf("failed to persist closure: %v", err)
	}
	s.queue = s.queue[1:]
	closed := *head
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"giveaway_id": closed.ID,
		"winner_id":   winnerID,
		"amount":      closed.Amount,
		"entrants":    len(closed.EntrantIDs),
	}).Info("giveaway closed")

	if s.onClose != nil {
		s.onClose(closed, winnerID)
	}
}
