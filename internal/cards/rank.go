package cards

import "sort"

// Hand rank categories in ascending strength.
const (
	HighCard = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

var categoryNames = map[int]string{
	HighCard:      "High Card",
	OnePair:       "One Pair",
	TwoPair:       "Two Pair",
	ThreeOfAKind:  "Three of a Kind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "Full House",
	FourOfAKind:   "Four of a Kind",
	StraightFlush: "Straight Flush",
}

// HandRank is the classification of a five-card hand. Hands compare by
// Category first, then by lexicographic comparison of Tiebreak.
type HandRank struct {
	Category int   `json:"category"`
	Tiebreak []int `json:"tiebreak"`
}

// Name returns the display name of the rank category.
func (r HandRank) Name() string {
	return categoryNames[r.Category]
}

// Compare returns a negative number if r is weaker than other, positive if
// stronger, zero on an exact tie.
func (r HandRank) Compare(other HandRank) int {
	if r.Category != other.Category {
		return r.Category - other.Category
	}
	for i := range r.Tiebreak {
		if i >= len(other.Tiebreak) {
			break
		}
		if r.Tiebreak[i] != other.Tiebreak[i] {
			return r.Tiebreak[i] - other.Tiebreak[i]
		}
	}
	return 0
}

// Beats reports whether r strictly outranks other.
func (r HandRank) Beats(other HandRank) bool {
	return r.Compare(other) > 0
}

// Classify ranks a five-card hand. The ace is always high: A-2-3-4-5 does
// not count as a straight.
func Classify(hand []Card) HandRank {
	values := make([]int, len(hand))
	for i, c := range hand {
		values[i] = c.Rank
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))

	counts := map[int]int{}
	for _, v := range values {
		counts[v]++
	}

	flush := true
	for _, c := range hand[1:] {
		if c.Suit != hand[0].Suit {
			flush = false
			break
		}
	}
	straight := len(counts) == 5 && values[0]-values[4] == 4

	switch {
	case straight && flush:
		return HandRank{StraightFlush, []int{values[0]}}
	case hasCount(counts, 4):
		quad := rankWithCount(counts, 4)
		return HandRank{FourOfAKind, append([]int{quad}, kickers(values, quad)...)}
	case hasCount(counts, 3) && hasCount(counts, 2):
		return HandRank{FullHouse, []int{rankWithCount(counts, 3), rankWithCount(counts, 2)}}
	case flush:
		return HandRank{Flush, values}
	case straight:
		return HandRank{Straight, []int{values[0]}}
	case hasCount(counts, 3):
		trip := rankWithCount(counts, 3)
		return HandRank{ThreeOfAKind, append([]int{trip}, kickers(values, trip)...)}
	case pairCount(counts) == 2:
		high, low := pairRanks(counts)
		return HandRank{TwoPair, append([]int{high, low}, kickers(values, high, low)...)}
	case pairCount(counts) == 1:
		pair := rankWithCount(counts, 2)
		return HandRank{OnePair, append([]int{pair}, kickers(values, pair)...)}
	default:
		return HandRank{HighCard, values}
	}
}

func hasCount(counts map[int]int, n int) bool {
	for _, c := range counts {
		if c == n {
			return true
		}
	}
	return false
}

func rankWithCount(counts map[int]int, n int) int {
	best := 0
	for v, c := range counts {
		if c == n && v > best {
			best = v
		}
	}
	return best
}

func pairCount(counts map[int]int) int {
	n := 0
	for _, c := range counts {
		if c == 2 {
			n++
		}
	}
	return n
}

func pairRanks(counts map[int]int) (high, low int) {
	for v, c := range counts {
		if c != 2 {
			continue
		}
		if v > high {
			high, low = v, high
		} else {
			low = v
		}
	}
	return high, low
}

// kickers returns the values not part of the made hand, descending.
func kickers(sorted []int, exclude ...int) []int {
	var out []int
	for _, v := range sorted {
		skip := false
		for _, e := range exclude {
			if v == e {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, v)
		}
	}
	return out
}
