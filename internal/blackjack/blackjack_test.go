package blackjack

import (
	"context"
	"sync"
	"testing"

	"cardroom/internal/cards"
	"cardroom/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWallet struct {
	mu       sync.Mutex
	balances map[int64]int64
}

func newFakeWallet(balances map[int64]int64) *fakeWallet {
	return &fakeWallet{balances: balances}
}

func (w *fakeWallet) Debit(_ context.Context, userID, amount int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	if w.balances[userID] < amount {
		return ledger.ErrInsufficientFunds
	}
	w.balances[userID] -= amount
	return nil
}

func (w *fakeWallet) Credit(_ context.Context, userID, amount int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[userID] += amount
	return nil
}

func (w *fakeWallet) balance(userID int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID]
}

// stack rigs the engine to deal the given cards in order:
// player, player, dealer, dealer, then hits/dealer draws.
func stack(e *Engine, cs ...cards.Card) {
	e.SetDeckFunc(func() *cards.Deck { return cards.NewStackedDeck(cs...) })
}

func TestStart_DebitsBetAndShowsUpCardOnly(t *testing.T) {
	ctx := context.Background()
	wallet := newFakeWallet(map[int64]int64{1: 100})
	e := New(wallet)
	stack(e,
		cards.Card{Rank: cards.Ace, Suit: "♠"}, cards.Card{Rank: cards.King, Suit: "♥"},
		cards.Card{Rank: 9, Suit: "♦"}, cards.Card{Rank: 5, Suit: "♣"},
	)

	res, err := e.Start(ctx, 1, 25)
	require.NoError(t, err)

	assert.Equal(t, int64(75), wallet.balance(1), "bet is debited immediately")
	assert.Equal(t, 21, res.PlayerValue)
	assert.Equal(t, cards.Card{Rank: 9, Suit: "♦"}, res.DealerUpCard)
	assert.True(t, e.InProgress(1))
}

func TestStart_Validation(t *testing.T) {
	ctx := context.Background()
	e := New(newFakeWallet(map[int64]int64{1: 10}))

	_, err := e.Start(ctx, 1, 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = e.Start(ctx, 1, 50)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.False(t, e.InProgress(1))
}

func TestStart_OneLiveGamePerUser(t *testing.T) {
	ctx := context.Background()
	wallet := newFakeWallet(map[int64]int64{1: 100})
	e := New(wallet)

	_, err := e.Start(ctx, 1, 10)
	require.NoError(t, err)

	_, err = e.Start(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrGameInProgress)
	assert.Equal(t, int64(90), wallet.balance(1), "second start must not debit")
}

func TestHit_BustForfeitsBet(t *testing.T) {
	ctx := context.Background()
	wallet := newFakeWallet(map[int64]int64{1: 100})
	e := New(wallet)
	stack(e,
		cards.Card{Rank: 10, Suit: "♠"}, cards.Card{Rank: 9, Suit: "♥"}, // player: 19
		cards.Card{Rank: 2, Suit: "♦"}, cards.Card{Rank: 3, Suit: "♣"}, // dealer
		cards.Card{Rank: 5, Suit: "♠"}, // hit -> 24, bust
	)

	_, err := e.Start(ctx, 1, 20)
	require.NoError(t, err)

	res, err := e.Hit(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Busted)
	assert.Equal(t, 24, res.PlayerValue)

	assert.Equal(t, int64(80), wallet.balance(1), "bust pays nothing back")
	assert.False(t, e.InProgress(1), "bust settles and destroys the game")

	_, err = e.Hit(ctx, 1)
	assert.ErrorIs(t, err, ErrNoGame)
}

func TestStand_DealerBustPaysDouble(t *testing.T) {
	ctx := context.Background()
	wallet := newFakeWallet(map[int64]int64{1: 100})
	e := New(wallet)
	stack(e,
		cards.Card{Rank: 10, Suit: "♠"}, cards.Card{Rank: 8, Suit: "♥"}, // player: 18
		cards.Card{Rank: 10, Suit: "♦"}, cards.Card{Rank: 6, Suit: "♣"}, // dealer: 16, must hit
		cards.Card{Rank: 10, Suit: "♥"}, // dealer draws to 26, bust
	)

	_, err := e.Start(ctx, 1, 20)
	require.NoError(t, err)

	res, err := e.Stand(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWin, res.Outcome)
	assert.Equal(t, int64(40), res.Payout)
	assert.Equal(t, int64(120), wallet.balance(1), "win nets +bet")
	assert.False(t, e.InProgress(1))
}

func TestStand_PushReturnsStake(t *testing.T) {
	ctx := context.Background()
	wallet := newFakeWallet(map[int64]int64{1: 100})
	e := New(wallet)
	stack(e,
		cards.Card{Rank: 10, Suit: "♠"}, cards.Card{Rank: 9, Suit: "♥"}, // player: 19
		cards.Card{Rank: 10, Suit: "♦"}, cards.Card{Rank: 9, Suit: "♣"}, // dealer: 19, stands
	)

	_, err := e.Start(ctx, 1, 20)
	require.NoError(t, err)

	res, err := e.Stand(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomePush, res.Outcome)
	assert.Equal(t, int64(100), wallet.balance(1), "push returns the stake exactly")
}

func TestStand_DealerWins(t *testing.T) {
	ctx := context.Background()
	wallet := newFakeWallet(map[int64]int64{1: 100})
	e := New(wallet)
	stack(e,
		cards.Card{Rank: 10, Suit: "♠"}, cards.Card{Rank: 7, Suit: "♥"}, // player: 17
		cards.Card{Rank: 10, Suit: "♦"}, cards.Card{Rank: 9, Suit: "♣"}, // dealer: 19
	)

	_, err := e.Start(ctx, 1, 20)
	require.NoError(t, err)

	res, err := e.Stand(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoss, res.Outcome)
	assert.Equal(t, int64(0), res.Payout)
	assert.Equal(t, int64(80), wallet.balance(1))
}

func TestStand_DealerHitsSoftSeventeenBelowHard(t *testing.T) {
	ctx := context.Background()
	wallet := newFakeWallet(map[int64]int64{1: 100})
	e := New(wallet)
	// Dealer holds A+5 (soft 16) and must draw; the ace demotes as needed.
	stack(e,
		cards.Card{Rank: 10, Suit: "♠"}, cards.Card{Rank: 8, Suit: "♥"}, // player: 18
		cards.Card{Rank: cards.Ace, Suit: "♦"}, cards.Card{Rank: 5, Suit: "♣"}, // dealer: soft 16
		cards.Card{Rank: cards.King, Suit: "♥"}, // dealer: hard 16
		cards.Card{Rank: 2, Suit: "♠"},          // dealer: 18
	)

	_, err := e.Start(ctx, 1, 20)
	require.NoError(t, err)

	res, err := e.Stand(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 18, res.DealerValue)
	assert.Equal(t, OutcomePush, res.Outcome)
}

func TestActionsWithoutGameAreNoOps(t *testing.T) {
	ctx := context.Background()
	e := New(newFakeWallet(map[int64]int64{1: 100}))

	_, err := e.Hit(ctx, 1)
	assert.ErrorIs(t, err, ErrNoGame)
	_, err = e.Stand(ctx, 1)
	assert.ErrorIs(t, err, ErrNoGame)
}
