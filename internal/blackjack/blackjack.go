// Package blackjack runs one single-hand blackjack game per user against
// the house. Games are in-memory only; a restart drops them (the debited
// bet survives through the ledger).
package blackjack

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cardroom/internal/cards"
	"cardroom/internal/ledger"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoGame means the user has no hand in progress. Callers treat hit
	// and stand without a live game as a no-op.
	ErrNoGame = errors.New("no blackjack game in progress")
	// ErrGameInProgress means the user already has a live hand.
	ErrGameInProgress = errors.New("blackjack game already in progress")
)

// Outcomes of a settled hand.
const (
	OutcomeWin  = "win"
	OutcomePush = "push"
	OutcomeLoss = "loss"
	OutcomeBust = "bust"
)

// Wallet is the slice of the ledger the engine needs.
type Wallet interface {
	Debit(ctx context.Context, userID, amount int64) error
	Credit(ctx context.Context, userID, amount int64) error
}

type game struct {
	deck   *cards.Deck
	player []cards.Card
	dealer []cards.Card
	bet    int64
}

// Engine holds every live game, at most one per user.
type Engine struct {
	mu      sync.Mutex
	games   map[int64]*game
	wallet  Wallet
	newDeck func() *cards.Deck
}

// New creates a blackjack engine.
func New(wallet Wallet) *Engine {
	return &Engine{
		games:   make(map[int64]*game),
		wallet:  wallet,
		newDeck: cards.NewDeck,
	}
}

// SetDeckFunc overrides deck creation, for rigged decks in tests.
func (e *Engine) SetDeckFunc(f func() *cards.Deck) {
	e.newDeck = f
}

// StartResult is what the requester sees after the deal: their own hand and
// the dealer's up-card only.
type StartResult struct {
	PlayerHand   []cards.Card `json:"player_hand"`
	PlayerValue  int          `json:"player_value"`
	DealerUpCard cards.Card   `json:"dealer_up_card"`
}

// HitResult reports one drawn card and the new hand value.
type HitResult struct {
	Card        cards.Card   `json:"card"`
	PlayerHand  []cards.Card `json:"player_hand"`
	PlayerValue int          `json:"player_value"`
	Busted      bool         `json:"busted"`
}

// StandResult reports the dealer play-out and the settlement.
type StandResult struct {
	PlayerValue int          `json:"player_value"`
	DealerHand  []cards.Card `json:"dealer_hand"`
	DealerValue int          `json:"dealer_value"`
	Outcome     string       `json:"outcome"`
	Payout      int64        `json:"payout"`
}

// Start debits the bet and deals two cards each to player and dealer from a
// fresh deck. The bet is held by the house until settlement.
func (e *Engine) Start(ctx context.Context, userID, bet int64) (*StartResult, error) {
	if bet <= 0 {
		return nil, ledger.ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.games[userID]; ok {
		return nil, ErrGameInProgress
	}
	if err := e.wallet.Debit(ctx, userID, bet); err != nil {
		return nil, err
	}

	g := &game{deck: e.newDeck(), bet: bet}
	var err error
	if g.player, err = drawInto(g.deck, g.player, 2); err != nil {
		return nil, err
	}
	if g.dealer, err = drawInto(g.deck, g.dealer, 2); err != nil {
		return nil, err
	}
	e.games[userID] = g

	log.WithFields(log.Fields{"user_id": userID, "bet": bet}).Debug("blackjack hand dealt")
	return &StartResult{
		PlayerHand:   append([]cards.Card(nil), g.player...),
		PlayerValue:  cards.HandValue(g.player),
		DealerUpCard: g.dealer[0],
	}, nil
}

// Hit draws one card into the player's hand. A bust settles the game on the
// spot with the bet forfeited.
func (e *Engine) Hit(ctx context.Context, userID int64) (*HitResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.games[userID]
	if !ok {
		return nil, ErrNoGame
	}

	card, err := g.deck.Draw()
	if err != nil {
		return nil, err
	}
	g.player = append(g.player, card)
	value := cards.HandValue(g.player)

	res := &HitResult{
		Card:        card,
		PlayerHand:  append([]cards.Card(nil), g.player...),
		PlayerValue: value,
	}
	if value > 21 {
		// Bet was debited up front; a bust moves no further money.
		res.Busted = true
		delete(e.games, userID)
		log.WithFields(log.Fields{"user_id": userID, "value": value}).Debug("blackjack bust")
	}
	return res, nil
}

// Stand plays the dealer out (hitting below 17, soft or hard) and settles:
// a win pays 2x the bet, a push returns the bet, a loss pays nothing.
func (e *Engine) Stand(ctx context.Context, userID int64) (*StandResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.games[userID]
	if !ok {
		return nil, ErrNoGame
	}

	for cards.HandValue(g.dealer) < 17 {
		card, err := g.deck.Draw()
		if err != nil {
			return nil, err
		}
		g.dealer = append(g.dealer, card)
	}

	playerValue := cards.HandValue(g.player)
	dealerValue := cards.HandValue(g.dealer)

	res := &StandResult{
		PlayerValue: playerValue,
		DealerHand:  append([]cards.Card(nil), g.dealer...),
		DealerValue: dealerValue,
	}
	switch {
	case dealerValue > 21 || playerValue > dealerValue:
		res.Outcome = OutcomeWin
		res.Payout = 2 * g.bet
	case playerValue == dealerValue:
		res.Outcome = OutcomePush
		res.Payout = g.bet
	default:
		res.Outcome = OutcomeLoss
	}

	if res.Payout > 0 {
		if err := e.wallet.Credit(ctx, userID, res.Payout); err != nil {
			return nil, fmt.Errorf("failed to settle blackjack payout: %w", err)
		}
	}
	delete(e.games, userID)

	log.WithFields(log.Fields{
		"user_id": userID,
		"outcome": res.Outcome,
		"payout":  res.Payout,
	}).Debug("blackjack hand settled")
	return res, nil
}

// InProgress reports whether the user has a live hand.
func (e *Engine) InProgress(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.games[userID]
	return ok
}

func drawInto(deck *cards.Deck, hand []cards.Card, n int) ([]cards.Card, error) {
	for i := 0; i < n; i++ {
		card, err := deck.Draw()
		if err != nil {
			return nil, err
		}
		hand = append(hand, card)
	}
	return hand, nil
}
