package cards

import (
	"math/rand"
	"testing"
)

func TestNewDeck_52UniqueCards(t *testing.T) {
	deck := NewDeckWithRand(rand.New(rand.NewSource(1)))

	if deck.Remaining() != 52 {
		t.Fatalf("expected 52 cards, got %d", deck.Remaining())
	}

	seen := make(map[Card]bool)
	for deck.Remaining() > 0 {
		card, err := deck.Draw()
		if err != nil {
			t.Fatalf("unexpected draw error: %v", err)
		}
		if seen[card] {
			t.Errorf("duplicate card drawn: %s", card)
		}
		seen[card] = true
	}
	if len(seen) != 52 {
		t.Errorf("expected 52 distinct cards, got %d", len(seen))
	}

	if _, err := deck.Draw(); err != ErrEmptyDeck {
		t.Errorf("expected ErrEmptyDeck on exhausted deck, got %v", err)
	}
}

func TestNewDeck_SeededOrderIsReproducible(t *testing.T) {
	a := NewDeckWithRand(rand.New(rand.NewSource(42)))
	b := NewDeckWithRand(rand.New(rand.NewSource(42)))

	for a.Remaining() > 0 {
		ca, _ := a.Draw()
		cb, _ := b.Draw()
		if ca != cb {
			t.Fatalf("same seed dealt different cards: %s vs %s", ca, cb)
		}
	}
}

func TestStackedDeck_DealsInOrder(t *testing.T) {
	want := []Card{{Ace, "♠"}, {King, "♥"}, {2, "♦"}}
	deck := NewStackedDeck(want...)

	for _, w := range want {
		got, err := deck.Draw()
		if err != nil {
			t.Fatalf("unexpected draw error: %v", err)
		}
		if got != w {
			t.Errorf("expected %s, got %s", w, got)
		}
	}
}

func TestHandValue(t *testing.T) {
	tests := []struct {
		name string
		hand []Card
		want int
	}{
		{"ace king is 21", []Card{{Ace, "♠"}, {King, "♥"}}, 21},
		{"two aces soften to 12", []Card{{Ace, "♠"}, {Ace, "♥"}}, 12},
		{"ten nine five busts at 24", []Card{{10, "♠"}, {9, "♥"}, {5, "♦"}}, 24},
		{"soft seventeen", []Card{{Ace, "♠"}, {6, "♥"}}, 17},
		{"ace demotes after hit", []Card{{Ace, "♠"}, {6, "♥"}, {9, "♦"}}, 16},
		{"face cards count ten", []Card{{Jack, "♠"}, {Queen, "♥"}}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HandValue(tt.hand); got != tt.want {
				t.Errorf("HandValue(%v) = %d, want %d", tt.hand, got, tt.want)
			}
		})
	}
}

func TestCardString(t *testing.T) {
	if got := (Card{Ace, "♠"}).String(); got != "A♠" {
		t.Errorf("expected A♠, got %s", got)
	}
	if got := (Card{10, "♥"}).String(); got != "10♥" {
		t.Errorf("expected 10♥, got %s", got)
	}
}
