package deck

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
)

//go:embed packs/*.json
var packFS embed.FS

// Card is one immutable clue card. Easy is the one-point side, Hard the three-point side.
type Card struct {
	Easy string `json:"easy"`
	Hard string `json:"hard"`
}

// Pack is a named, ordered list of cards.
type Pack struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cards []Card `json:"cards"`
}

// PackInfo describes a pack without its contents.
type PackInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CardCount int    `json:"cardCount"`
}

// packSource ties a pack id to its display name and data file. The order of this
// slice is the canonical pack order.
var packSources = []struct {
	id   string
	name string
	file string
}{
	{"base_gray", "Base Game (Gray)", "base_gray.json"},
	{"base_red", "Base Game (Red)", "base_red.json"},
	{"expansion_gray", "Expansion Pack (Gray)", "expansion_gray.json"},
	{"expansion_red", "Expansion Pack (Red)", "expansion_red.json"},
}

// rawPack is the on-disk card format: "1" holds the easy word, "3" the hard one.
type rawPack struct {
	GameData []struct {
		Easy string `json:"1"`
		Hard string `json:"3"`
	} `json:"game_data"`
}

// Catalog holds the static packs in canonical order.
type Catalog struct {
	packs []Pack
	byID  map[string]int
}

// NewCatalog builds a catalog from packs given in canonical order.
func NewCatalog(packs ...Pack) *Catalog {
	c := &Catalog{
		packs: make([]Pack, 0, len(packs)),
		byID:  make(map[string]int, len(packs)),
	}
	for _, p := range packs {
		c.byID[p.ID] = len(c.packs)
		c.packs = append(c.packs, p)
	}
	return c
}

// LoadCatalog reads the built-in packs from the embedded files.
func LoadCatalog() (*Catalog, error) {
	sub, err := fs.Sub(packFS, "packs")
	if err != nil {
		return nil, err
	}
	return loadCatalogFS(sub)
}

// MustLoadCatalog is LoadCatalog for program start-up.
func MustLoadCatalog() *Catalog {
	c, err := LoadCatalog()
	if err != nil {
		panic("failed to load card packs: " + err.Error())
	}
	return c
}

func loadCatalogFS(fsys fs.FS) (*Catalog, error) {
	packs := make([]Pack, 0, len(packSources))
	for _, src := range packSources {
		data, err := fs.ReadFile(fsys, src.file)
		if err != nil {
			return nil, fmt.Errorf("reading pack %s: %w", src.id, err)
		}

		var raw rawPack
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing pack %s: %w", src.id, err)
		}

		pack := Pack{ID: src.id, Name: src.name, Cards: make([]Card, 0, len(raw.GameData))}
		for _, entry := range raw.GameData {
			pack.Cards = append(pack.Cards, Card{Easy: entry.Easy, Hard: entry.Hard})
		}
		packs = append(packs, pack)
	}
	return NewCatalog(packs...), nil
}

// Has reports whether id names a pack in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// IDs returns every pack id in canonical order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.packs))
	for _, p := range c.packs {
		ids = append(ids, p.ID)
	}
	return ids
}

// Info lists the packs without their cards.
func (c *Catalog) Info() []PackInfo {
	infos := make([]PackInfo, 0, len(c.packs))
	for _, p := range c.packs {
		infos = append(infos, PackInfo{ID: p.ID, Name: p.Name, CardCount: len(p.Cards)})
	}
	return infos
}

// Canonical filters ids down to known packs, de-duplicated and in canonical order.
func (c *Catalog) Canonical(ids []string) []string {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, p := range c.packs {
		if want[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}
