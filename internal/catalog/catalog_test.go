package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand int

func (f fixedRand) IntN(n int) int { return int(f) % n }

func TestDefault_HasMajorArcana(t *testing.T) {
	c := Default()
	assert.Equal(t, 22, c.Len())

	url, ok := c.Lookup("EL LOCO")
	require.True(t, ok)
	assert.Contains(t, url, "Fool")
}

func TestLookup_Normalization(t *testing.T) {
	c := Default()

	tests := []struct {
		name  string
		input string
		found bool
	}{
		{"exact", "LA LUNA", true},
		{"lowercase", "la luna", true},
		{"padded", "  El Sol \t", true},
		{"with tilde", "el ermitaño", true},
		{"no diacritic folding", "EL ERMITANO", false},
		{"unknown", "EL PROGRAMADOR", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := c.Lookup(tt.input)
			assert.Equal(t, tt.found, ok)
		})
	}
}

func TestLookup_Idempotent(t *testing.T) {
	c := Default()
	first, ok1 := c.Lookup("la torre")
	second, ok2 := c.Lookup("LA TORRE")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}

func TestNew_ExtraEntriesOverride(t *testing.T) {
	c := New(map[string]string{
		" el loco ":  "https://cards.example/loco.png",
		"AS DE OROS": "https://cards.example/oros.png",
		"":           "https://cards.example/blank.png",
		"SIN IMAGEN": "  ",
	})

	url, ok := c.Lookup("EL LOCO")
	require.True(t, ok)
	assert.Equal(t, "https://cards.example/loco.png", url)

	_, ok = c.Lookup("as de oros")
	assert.True(t, ok)

	_, ok = c.Lookup("SIN IMAGEN")
	assert.False(t, ok, "entries without a URL are skipped")
	assert.Equal(t, 23, c.Len())
}

func TestNames_SortedCopy(t *testing.T) {
	c := Default()
	names := c.Names()
	require.Len(t, names, 22)
	assert.IsIncreasing(t, names)

	names[0] = "MUTATED"
	assert.NotEqual(t, "MUTATED", c.Names()[0])
}

func TestRandom_UsesSource(t *testing.T) {
	c := Default()
	names := c.Names()
	assert.Equal(t, names[0], c.Random(fixedRand(0)))
	assert.Equal(t, names[5], c.Random(fixedRand(5)))
}

func TestRandom_EmptyCatalog(t *testing.T) {
	c := &Catalog{cards: map[string]string{}}
	assert.Equal(t, "", c.Random(fixedRand(3)))
}

func TestLookup_NilCatalog(t *testing.T) {
	var c *Catalog
	url, ok := c.Lookup("EL LOCO")
	assert.False(t, ok)
	assert.Empty(t, url)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cards.yaml")
	data := "cards:\n  la luna: https://cards.example/luna.jpg\n  EL GATO: https://cards.example/gato.jpg\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	url, ok := c.Lookup("LA LUNA")
	require.True(t, ok)
	assert.Equal(t, "https://cards.example/luna.jpg", url)

	_, ok = c.Lookup("el gato")
	assert.True(t, ok)
}

func TestLoadFile_EmptyPath(t *testing.T) {
	c, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 22, c.Len())
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cards: [not, a, map]"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}
