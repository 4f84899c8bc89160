package deck

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// ErrEmptyDeck is returned by Draw when the enabled packs hold no cards at all.
var ErrEmptyDeck = errors.New("deck is empty")

// Redacted is what every player except the clue-giver sees in place of the current card.
var Redacted = Card{Easy: "???", Hard: "???"}

// Build concatenates the cards of the enabled packs in canonical pack order, drops
// duplicates (trimmed, case-insensitive on both sides, first occurrence wins) and
// returns a Fisher–Yates shuffle of the result. rng may be nil.
func (c *Catalog) Build(enabled []string, rng *rand.Rand) []Card {
	want := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		want[id] = true
	}

	seen := make(map[string]struct{})
	cards := make([]Card, 0)
	for _, p := range c.packs {
		if !want[p.ID] {
			continue
		}
		for _, card := range p.Cards {
			key := dedupeKey(card)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			cards = append(cards, card)
		}
	}

	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}

func dedupeKey(c Card) string {
	return strings.ToLower(strings.TrimSpace(c.Easy)) + "|" + strings.ToLower(strings.TrimSpace(c.Hard))
}

// Deck is a room's working draw sequence plus its read cursor. The cards themselves
// never leave the server; only Index is published.
type Deck struct {
	catalog *Catalog
	packs   []string
	cards   []Card
	index   int
	rng     *rand.Rand
}

// New builds a fresh shuffled deck for the given packs.
func New(catalog *Catalog, packs []string, rng *rand.Rand) *Deck {
	d := &Deck{
		catalog: catalog,
		packs:   append([]string(nil), packs...),
		rng:     rng,
	}
	d.cards = catalog.Build(d.packs, rng)
	return d
}

// Draw returns the card under the cursor and advances it. When the cursor has run off
// the end the deck is rebuilt and reshuffled first, and reshuffled reports true.
func (d *Deck) Draw() (card Card, reshuffled bool, err error) {
	if d.index >= len(d.cards) {
		d.cards = d.catalog.Build(d.packs, d.rng)
		d.index = 0
		reshuffled = true
	}
	if len(d.cards) == 0 {
		return Card{}, reshuffled, ErrEmptyDeck
	}
	card = d.cards[d.index]
	d.index++
	return card, reshuffled, nil
}

// Len is the number of cards in the current sequence.
func (d *Deck) Len() int { return len(d.cards) }

// Index is the read cursor; always <= Len.
func (d *Deck) Index() int { return d.index }
