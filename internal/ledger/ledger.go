package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"cardroom/internal/models"

	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownUser       = errors.New("unknown user")
	ErrSelfTransfer      = errors.New("cannot transfer to yourself")
)

// Store persists balance mutations. A mutation is committed only after its
// store write succeeds; on write failure the in-memory state is left
// untouched, so memory and store cannot drift.
type Store interface {
	SaveUserBalance(ctx context.Context, userID, balance int64) error
}

// Notifier is poked after every committed mutation so the hub can fan out a
// fresh snapshot. Implementations must not block.
type Notifier interface {
	Publish()
}

// Ledger owns all user balances. A single mutex serializes every mutation,
// so two events touching the same user's balance never interleave and
// multi-user debits are atomic to observers.
type Ledger struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	store    Store
	notifier Notifier
}

// New creates a ledger backed by the given store.
func New(store Store) *Ledger {
	return &Ledger{
		users: make(map[int64]*models.User),
		store: store,
	}
}

// SetNotifier wires the broadcast hub in after construction (the hub needs
// the ledger to build snapshots, so it comes up second).
func (l *Ledger) SetNotifier(n Notifier) {
	l.notifier = n
}

// Load seeds the ledger from the persisted user set. Called once at startup.
func (l *Ledger) Load(users []*models.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range users {
		l.users[u.ID] = u
	}
}

// Add registers a freshly created user.
func (l *Ledger) Add(user *models.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[user.ID] = user
}

// Balance returns a user's current balance.
func (l *Ledger) Balance(userID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[userID]
	if !ok {
		return 0, ErrUnknownUser
	}
	return u.Balance, nil
}

// Username returns a user's display name.
func (l *Ledger) Username(userID int64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[userID]
	if !ok {
		return "", ErrUnknownUser
	}
	return u.Username, nil
}

// Exists reports whether a user is known to the ledger.
func (l *Ledger) Exists(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.users[userID]
	return ok
}

// Debit removes amount from a user's balance. Fails with
// ErrInsufficientFunds if the balance would go negative; no partial debit.
func (l *Ledger) Debit(ctx context.Context, userID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	err := l.applyLocked(ctx, userID, -amount)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.notify()
	return nil
}

// Credit adds amount to a user's balance.
func (l *Ledger) Credit(ctx context.Context, userID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	err := l.applyLocked(ctx, userID, amount)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.notify()
	return nil
}

// Transfer moves amount from one user to another. The pair commits
// atomically: a failure on either side leaves both balances unchanged.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID, amount int64) error {
	l.mu.Lock()
	err := func() error {
		if amount <= 0 {
			return ErrInvalidAmount
		}
		// A self-transfer would write balance-amount then balance+amount
		// to the store while memory nets to zero, leaving the persisted
		// balance ahead of memory.
		if fromID == toID {
			return ErrSelfTransfer
		}
		from, ok := l.users[fromID]
		if !ok {
			return ErrUnknownUser
		}
		to, ok := l.users[toID]
		if !ok {
			return ErrUnknownUser
		}
		if from.Balance < amount {
			return ErrInsufficientFunds
		}
		if err := l.store.SaveUserBalance(ctx, fromID, from.Balance-amount); err != nil {
			return fmt.Errorf("failed to persist debit: %w", err)
		}
		if err := l.store.SaveUserBalance(ctx, toID, to.Balance+amount); err != nil {
			// Restore the already-written side before giving up.
			l.revert(ctx, fromID, from.Balance)
			return fmt.Errorf("failed to persist credit: %w", err)
		}
		from.Balance -= amount
		to.Balance += amount
		return nil
	}()
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.notify()
	return nil
}

// DebitAll debits the same amount from every listed user, all or nothing.
// Users are processed in ascending id order so concurrent multi-user
// operations observe a fixed global order.
func (l *Ledger) DebitAll(ctx context.Context, userIDs []int64, amount int64) error {
	ids := append([]int64(nil), userIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	l.mu.Lock()
	err := func() error {
		if amount <= 0 {
			return ErrInvalidAmount
		}
		for _, id := range ids {
			u, ok := l.users[id]
			if !ok {
				return ErrUnknownUser
			}
			if u.Balance < amount {
				return fmt.Errorf("user %d: %w", id, ErrInsufficientFunds)
			}
		}
		for i, id := range ids {
			u := l.users[id]
			if err := l.store.SaveUserBalance(ctx, id, u.Balance-amount); err != nil {
				for _, prev := range ids[:i] {
					l.revert(ctx, prev, l.users[prev].Balance)
				}
				return fmt.Errorf("failed to persist debit for user %d: %w", id, err)
			}
		}
		for _, id := range ids {
			l.users[id].Balance -= amount
		}
		return nil
	}()
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.notify()
	return nil
}

// SnapshotFor returns player snapshots for the given users, ascending by id.
// Unknown ids are skipped.
func (l *Ledger) SnapshotFor(userIDs []int64) []models.PlayerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	players := make([]models.PlayerSnapshot, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := l.users[id]; ok {
			players = append(players, models.PlayerSnapshot{ID: u.ID, Name: u.Username, Balance: u.Balance})
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// applyLocked validates and commits a single-user balance change. Caller
// holds the mutex.
func (l *Ledger) applyLocked(ctx context.Context, userID, delta int64) error {
	u, ok := l.users[userID]
	if !ok {
		return ErrUnknownUser
	}
	next := u.Balance + delta
	if next < 0 {
		return ErrInsufficientFunds
	}
	if err := l.store.SaveUserBalance(ctx, userID, next); err != nil {
		return fmt.Errorf("failed to persist balance: %w", err)
	}
	u.Balance = next
	return nil
}

// revert best-effort rewrites a user's persisted balance after a partial
// multi-write failure. The in-memory value was never changed.
func (l *Ledger) revert(ctx context.Context, userID, balance int64) {
	if err := l.store.SaveUserBalance(ctx, userID, balance); err != nil {
		log.WithFields(log.Fields{"user_id": userID, "balance": balance}).
			Errorf("failed to restore persisted balance: %v", err)
	}
}

func (l *Ledger) notify() {
	if l.notifier != nil {
		l.notifier.Publish()
	}
}
