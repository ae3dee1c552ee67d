// Package poker runs transient multi-party showdown rounds against a pot.
// Every sufficiently funded online user is dealt in when a round starts;
// there is no opt-in lobby.
package poker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cardroom/internal/cards"
	"cardroom/internal/ledger"

	log "github.com/sirupsen/logrus"
)

var (
	ErrNoEligiblePlayers = errors.New("no eligible players")
	// ErrDeckExhausted guards the 52-card deck: ten five-card hands is the
	// ceiling.
	ErrDeckExhausted = errors.New("too many players for one deck")
)

// maxSeats is the largest participant count a single deck can serve.
const maxSeats = 10

// Wallet is the slice of the ledger a round needs.
type Wallet interface {
	Balance(userID int64) (int64, error)
	Username(userID int64) (string, error)
	DebitAll(ctx context.Context, userIDs []int64, amount int64) error
	Credit(ctx context.Context, userID, amount int64) error
}

// Presence reports who is online.
type Presence interface {
	OnlineUsers() []int64
}

// Participant is one player's showdown line in the round result.
type Participant struct {
	UserID int64          `json:"user_id"`
	Name   string         `json:"name"`
	Hand   []cards.Card   `json:"hand"`
	Rank   cards.HandRank `json:"rank"`
}

// Result is the full round outcome, broadcast to everyone. Participants are
// ordered strongest hand first.
type Result struct {
	Bet          int64         `json:"bet"`
	Pot          int64         `json:"pot"`
	WinnerID     int64         `json:"winner_id"`
	WinnerName   string        `json:"winner_name"`
	Participants []Participant `json:"participants"`
}

// Engine deals poker rounds. Rounds are transient: no state outlives Play.
type Engine struct {
	wallet   Wallet
	presence Presence
	newDeck  func() *cards.Deck
}

// New creates a poker engine.
func New(wallet Wallet, presence Presence) *Engine {
	return &Engine{wallet: wallet, presence: presence, newDeck: cards.NewDeck}
}

// SetDeckFunc overrides deck creation, for deterministic rounds in tests.
func (e *Engine) SetDeckFunc(f func() *cards.Deck) {
	e.newDeck = f
}

// Play runs one round: every online user with balance >= bet is debited the
// bet, dealt five cards from one shared deck, and the whole pot goes to the
// strongest hand. Exact ties resolve to the lowest user id, never a split
// pot.
func (e *Engine) Play(ctx context.Context, initiatorID, bet int64) (*Result, error) {
	if bet <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	if balance, err := e.wallet.Balance(initiatorID); err != nil {
		return nil, err
	} else if balance < bet {
		return nil, ledger.ErrInsufficientFunds
	}

	var eligible []int64
	for _, id := range e.presence.OnlineUsers() {
		balance, err := e.wallet.Balance(id)
		if err != nil {
			continue
		}
		if balance >= bet {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligiblePlayers
	}
	if len(eligible) > maxSeats {
		return nil, ErrDeckExhausted
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i] < eligible[j] })

	if err := e.wallet.DebitAll(ctx, eligible, bet); err != nil {
		return nil, fmt.Errorf("failed to collect bets: %w", err)
	}

	deck := e.newDeck()
	participants := make([]Participant, 0, len(eligible))
	for _, id := range eligible {
		hand := make([]cards.Card, 0, 5)
		for i := 0; i < 5; i++ {
			card, err := deck.Draw()
			if err != nil {
				e.refund(ctx, eligible, bet)
				return nil, err
			}
			hand = append(hand, card)
		}
		name, _ := e.wallet.Username(id)
		participants = append(participants, Participant{
			UserID: id,
			Name:   name,
			Hand:   hand,
			Rank:   cards.Classify(hand),
		})
	}

	// Strongest first. Participants enter in ascending id order, so the
	// stable sort leaves exact ties with the lowest id in front.
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].Rank.Beats(participants[j].Rank)
	})

	winner := participants[0]
	pot := bet * int64(len(participants))
	if err := e.wallet.Credit(ctx, winner.UserID, pot); err != nil {
		// The bets were already collected; hand them back rather than
		// let the pot vanish.
		e.refund(ctx, eligible, bet)
		return nil, fmt.Errorf("failed to pay out pot: %w", err)
	}

	log.WithFields(log.Fields{
		"winner_id": winner.UserID,
		"pot":       pot,
		"players":   len(participants),
		"hand":      winner.Rank.Name(),
	}).Info("poker round settled")

	return &Result{
		Bet:          bet,
		Pot:          pot,
		WinnerID:     winner.UserID,
		WinnerName:   winner.Name,
		Participants: participants,
	}, nil
}

// refund best-effort returns collected bets after a round fails to settle.
func (e *Engine) refund(ctx context.Context, userIDs []int64, bet int64) {
	for _, id := range userIDs {
		if err := e.wallet.Credit(ctx, id, bet); err != nil {
			log.WithFields(log.Fields{"user_id": id, "amount": bet}).
				Errorf("failed to refund bet: %v", err)
		}
	}
}
