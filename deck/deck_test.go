package deck

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog(
		Pack{ID: "a", Name: "A", Cards: []Card{
			{Easy: "Sun", Hard: "Sunflower"},
			{Easy: "Rain", Hard: "Rainbow"},
			{Easy: "Moon", Hard: "Honeymoon"},
		}},
		Pack{ID: "b", Name: "B", Cards: []Card{
			{Easy: " sun ", Hard: "SUNFLOWER"},
			{Easy: "Tree", Hard: "Treehouse"},
		}},
		Pack{ID: "c", Name: "C", Cards: []Card{
			{Easy: "Rain", Hard: "Raincoat"},
		}},
	)
}

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestLoadCatalog_EmbeddedPacks(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	assert.Equal(t, []string{"base_gray", "base_red", "expansion_gray", "expansion_red"}, c.IDs())
	for _, info := range c.Info() {
		assert.NotEmpty(t, info.Name)
		assert.Positive(t, info.CardCount, "pack %s has no cards", info.ID)
	}
}

func TestCatalog_Build_Deduplicates(t *testing.T) {
	c := testCatalog()

	cards := c.Build([]string{"a", "b", "c"}, seeded())

	// " sun "/"SUNFLOWER" collapses onto the first Sun card; Rain/Raincoat is distinct.
	assert.Len(t, cards, 5)
	seen := map[string]bool{}
	for _, card := range cards {
		key := dedupeKey(card)
		assert.False(t, seen[key], "duplicate card %+v", card)
		seen[key] = true
	}
}

func TestCatalog_Build_KeepsFirstOccurrenceInCanonicalOrder(t *testing.T) {
	c := testCatalog()

	// Input order must not matter: pack "a" is canonical-first, so its spelling wins.
	cards := c.Build([]string{"b", "a"}, seeded())

	var sun []Card
	for _, card := range cards {
		if strings.EqualFold(strings.TrimSpace(card.Easy), "sun") {
			sun = append(sun, card)
		}
	}
	require.Len(t, sun, 1)
	assert.Equal(t, Card{Easy: "Sun", Hard: "Sunflower"}, sun[0])
}

func TestCatalog_Build_EmptySelection(t *testing.T) {
	c := testCatalog()

	assert.Empty(t, c.Build(nil, seeded()))
	assert.Empty(t, c.Build([]string{"unknown"}, seeded()))
}

func TestCatalog_Build_EmbeddedUnionSize(t *testing.T) {
	c := MustLoadCatalog()

	all := c.Build(c.IDs(), nil)

	unique := map[string]bool{}
	total := 0
	for _, id := range c.IDs() {
		for _, card := range c.packs[c.byID[id]].Cards {
			unique[dedupeKey(card)] = true
			total++
		}
	}
	assert.Len(t, all, len(unique))
	assert.Less(t, len(all), total, "embedded packs are expected to overlap")
}

func TestCatalog_Canonical(t *testing.T) {
	c := testCatalog()

	assert.Equal(t, []string{"a", "c"}, c.Canonical([]string{"c", "x", "a", "c"}))
}

func TestDeck_DrawReshufflesOncePerExhaustion(t *testing.T) {
	c := testCatalog()
	d := New(c, []string{"a"}, seeded())
	require.Equal(t, 3, d.Len())

	drawn := map[Card]int{}
	reshuffles := 0
	for i := 0; i < 9; i++ {
		card, reshuffled, err := d.Draw()
		require.NoError(t, err)
		if reshuffled {
			reshuffles++
			// A reshuffle only happens exactly at a pass boundary.
			assert.Equal(t, 0, i%3, "reshuffle at draw %d", i)
		}
		drawn[card]++
		assert.LessOrEqual(t, d.Index(), d.Len())
	}

	assert.Equal(t, 2, reshuffles)
	// Three full passes: every card exactly three times, nothing lost.
	assert.Len(t, drawn, 3)
	for card, n := range drawn {
		assert.Equal(t, 3, n, "card %+v", card)
	}
}

func TestDeck_DrawEmpty(t *testing.T) {
	d := New(testCatalog(), nil, seeded())

	_, _, err := d.Draw()
	assert.ErrorIs(t, err, ErrEmptyDeck)
	assert.Equal(t, 0, d.Index())
}
