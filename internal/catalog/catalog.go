// Package catalog maps canonical tarot card names to hosted image URLs.
//
// A Catalog is built once at startup and never mutated afterwards, so it is
// safe for concurrent use without locking.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const commonsBase = "https://upload.wikimedia.org/wikipedia/commons/"

// majorArcana is the built-in table of the 22 major arcana (Spanish names).
var majorArcana = map[string]string{
	"EL LOCO":                commonsBase + "9/90/RWS_Tarot_00_Fool.jpg",
	"EL MAGO":                commonsBase + "d/de/RWS_Tarot_01_Magician.jpg",
	"LA SACERDOTISA":         commonsBase + "8/88/RWS_Tarot_02_High_Priestess.jpg",
	"LA EMPERATRIZ":          commonsBase + "d/d2/RWS_Tarot_03_Empress.jpg",
	"EL EMPERADOR":           commonsBase + "c/c3/RWS_Tarot_04_Emperor.jpg",
	"EL SUMO SACERDOTE":      commonsBase + "8/8d/RWS_Tarot_05_Hierophant.jpg",
	"LOS ENAMORADOS":         commonsBase + "3/3a/TheLovers.jpg",
	"EL CARRO":               commonsBase + "9/9b/RWS_Tarot_07_Chariot.jpg",
	"LA FUERZA":              commonsBase + "f/f5/RWS_Tarot_08_Strength.jpg",
	"EL ERMITAÑO":            commonsBase + "4/4d/RWS_Tarot_09_Hermit.jpg",
	"LA RUEDA DE LA FORTUNA": commonsBase + "3/3c/RWS_Tarot_10_Wheel_of_Fortune.jpg",
	"LA JUSTICIA":            commonsBase + "e/e0/RWS_Tarot_11_Justice.jpg",
	"EL COLGADO":             commonsBase + "2/2b/RWS_Tarot_12_Hanged_Man.jpg",
	"LA MUERTE":              commonsBase + "d/d7/RWS_Tarot_13_Death.jpg",
	"LA TEMPLANZA":           commonsBase + "f/f8/RWS_Tarot_14_Temperance.jpg",
	"EL DIABLO":              commonsBase + "5/55/RWS_Tarot_15_Devil.jpg",
	"LA TORRE":               commonsBase + "5/53/RWS_Tarot_16_Tower.jpg",
	"LA ESTRELLA":            commonsBase + "d/db/RWS_Tarot_17_Star.jpg",
	"LA LUNA":                commonsBase + "7/7f/RWS_Tarot_18_Moon.jpg",
	"EL SOL":                 commonsBase + "1/17/RWS_Tarot_19_Sun.jpg",
	"EL JUICIO":              commonsBase + "d/dd/RWS_Tarot_20_Judgement.jpg",
	"EL MUNDO":               commonsBase + "f/ff/RWS_Tarot_21_World.jpg",
}

// Catalog is an immutable card-name → image-URL table.
type Catalog struct {
	cards map[string]string
	names []string // sorted, for deterministic random draws
}

// Default returns a catalog holding only the built-in major arcana.
func Default() *Catalog {
	return New(nil)
}

// New builds a catalog from the built-in table plus extra entries.
// Extra entries replace built-in ones with the same normalized name.
func New(extra map[string]string) *Catalog {
	cards := make(map[string]string, len(majorArcana)+len(extra))
	for name, url := range majorArcana {
		cards[name] = url
	}
	for name, url := range extra {
		key := Normalize(name)
		url = strings.TrimSpace(url)
		if key == "" || url == "" {
			continue
		}
		cards[key] = url
	}

	names := make([]string, 0, len(cards))
	for name := range cards {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Catalog{cards: cards, names: names}
}

// overrideFile is the YAML shape accepted by LoadFile.
type overrideFile struct {
	Cards map[string]string `yaml:"cards"`
}

// LoadFile builds a catalog from the built-in table merged with the cards
// listed in a YAML file:
//
//	cards:
//	  EL LOCO: https://example.com/loco.jpg
//
// An empty path returns the default catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(f.Cards), nil
}

// Normalize returns the canonical key for a card name: trimmed and upper-cased.
// No diacritic folding is applied.
func Normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Lookup resolves a card name to its image URL.
func (c *Catalog) Lookup(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	url, ok := c.cards[Normalize(name)]
	return url, ok
}

// Names returns the canonical card names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of cards in the catalog.
func (c *Catalog) Len() int { return len(c.names) }

// Intn is the subset of math/rand/v2.Rand used for random draws.
type Intn interface {
	IntN(n int) int
}

// Random draws a card name uniformly at random.
func (c *Catalog) Random(r Intn) string {
	if len(c.names) == 0 {
		return ""
	}
	return c.names[r.IntN(len(c.names))]
}
