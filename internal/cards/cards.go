package cards

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Card ranks. Face cards follow the usual poker ordering with the ace
// always high.
const (
	Jack  = 11
	Queen = 12
	King  = 13
	Ace   = 14
)

// Suits defines the four card suits.
var Suits = []string{"♠", "♥", "♦", "♣"}

// ErrEmptyDeck is returned by Draw on an exhausted deck.
var ErrEmptyDeck = errors.New("deck is empty")

// Card represents a playing card. Rank runs 2-14 with 11-14 for J, Q, K, A.
type Card struct {
	Rank int    `json:"rank"`
	Suit string `json:"suit"`
}

// String returns the display form of a card, e.g. "A♠" or "10♥".
func (c Card) String() string {
	switch c.Rank {
	case Jack:
		return "J" + c.Suit
	case Queen:
		return "Q" + c.Suit
	case King:
		return "K" + c.Suit
	case Ace:
		return "A" + c.Suit
	default:
		return fmt.Sprintf("%d%s", c.Rank, c.Suit)
	}
}

// IsAce checks if the card is an ace.
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// BlackjackValue returns the card's blackjack value: face cards count 10,
// aces count 11 (the hand valuation demotes them as needed).
func (c Card) BlackjackValue() int {
	switch {
	case c.Rank >= Jack && c.Rank <= King:
		return 10
	case c.Rank == Ace:
		return 11
	default:
		return c.Rank
	}
}

// Deck is a shuffled sequence of the 52 distinct cards, consumed from the
// end. One deck instance serves exactly one game or round.
type Deck struct {
	cards []Card
}

// NewDeck creates a freshly shuffled 52-card deck.
func NewDeck() *Deck {
	return NewDeckWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewDeckWithRand creates a shuffled deck using the given source, so tests
// can deal deterministically.
func NewDeckWithRand(r *rand.Rand) *Deck {
	cards := make([]Card, 0, 52)
	for _, suit := range Suits {
		for rank := 2; rank <= Ace; rank++ {
			cards = append(cards, Card{Rank: rank, Suit: suit})
		}
	}
	r.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return &Deck{cards: cards}
}

// NewStackedDeck builds an unshuffled deck that deals the given cards in
// order. Test helper for rigged games.
func NewStackedDeck(next ...Card) *Deck {
	// Draw consumes from the end, so reverse the wanted order.
	cards := make([]Card, len(next))
	for i, c := range next {
		cards[len(next)-1-i] = c
	}
	return &Deck{cards: cards}
}

// Draw removes and returns the last card of the deck.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrEmptyDeck
	}
	card := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return card, nil
}

// Remaining returns the number of cards left in the deck.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// HandValue computes the blackjack value of a hand: aces count 11, then
// drop to 1 one at a time while the total busts (soft/hard ace rule).
func HandValue(hand []Card) int {
	total := 0
	aces := 0
	for _, c := range hand {
		if c.IsAce() {
			aces++
		}
		total += c.BlackjackValue()
	}
	for aces > 0 && total > 21 {
		total -= 10
		aces--
	}
	return total
}
