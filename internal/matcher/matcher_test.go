package matcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
)

func catalog() []model.Product {
	products := []model.Product{
		{ID: 1, Name: "Sable 0/2", Category: "granulats", Unit: "tonne", IsActive: true},
		{ID: 2, Name: "Sable 0/4", Category: "granulats", Unit: "tonne", IsActive: true},
		{ID: 3, Name: "Gravier 6/10", Category: "granulats", Unit: "tonne", IsActive: true},
		{ID: 4, Name: "Ciment gris CEM II 32.5", Category: "liants", Unit: "sac", IsActive: true},
		{ID: 5, Name: "Béton prêt à l'emploi", Category: "béton", Unit: "m3", IsActive: true},
	}
	for i := range products {
		products[i].NormalizedName = Normalize(products[i].Name)
	}
	return products
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases and trims",
			input: "  Sable 0/2  ",
			want:  "sable 0/2",
		},
		{
			name:  "strips diacritics",
			input: "Béton prêt à l'emploi",
			want:  "beton pret a l emploi",
		},
		{
			name:  "keeps granulometry markers",
			input: "Gravier 6/10 lavé",
			want:  "gravier 6/10 lave",
		},
		{
			name:  "drops packaging tokens",
			input: "Sable 0/2 livraison chantier palette",
			want:  "sable 0/2",
		},
		{
			name:  "collapses punctuation to spaces",
			input: "Ciment,gris;CEM II",
			want:  "ciment gris cem ii",
		},
		{
			name:  "empty input",
			input: "   ",
			want:  "",
		},
		{
			name:  "only packaging tokens",
			input: "livraison franco chantier",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeSupplier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases and folds diacritics",
			input: "  Carrières DUPONT  ",
			want:  "carrieres dupont",
		},
		{
			name:  "keeps words the product stop list would drop",
			input: "Martin Transport",
			want:  "martin transport",
		},
		{
			name:  "stop-list-only name survives",
			input: "Franco",
			want:  "franco",
		},
		{
			name:  "punctuation collapses to spaces",
			input: "Martin & Fils, S.A.R.L.",
			want:  "martin fils s a r l",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSupplier(tt.input))
		})
	}
}

func TestMatchExactDescription(t *testing.T) {
	m := New(DefaultConfig())

	candidates, err := m.Match("Sable 0/2", catalog())
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	assert.Equal(t, int64(1), candidates[0].ProductID)
	assert.InDelta(t, 1.0, candidates[0].Similarity, 1e-9)
}

func TestMatchExactAlias(t *testing.T) {
	products := catalog()
	products[0].Aliases = []string{"Sable broyé 0/2"}

	m := New(DefaultConfig())

	candidates, err := m.Match("Sable broyé 0/2", products)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	assert.Equal(t, int64(1), candidates[0].ProductID)
	assert.InDelta(t, 1.0, candidates[0].Similarity, 1e-9)
}

func TestMatchFuzzyDescription(t *testing.T) {
	m := New(DefaultConfig())

	candidates, err := m.Match("SABLE 0/2 livraison chantier", catalog())
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	// Packaging noise normalizes away, leaving an exact hit.
	assert.Equal(t, int64(1), candidates[0].ProductID)
	assert.InDelta(t, 1.0, candidates[0].Similarity, 1e-9)
}

func TestMatchContainment(t *testing.T) {
	m := New(DefaultConfig())

	candidates, err := m.Match("Ciment gris CEM II 32.5 en promotion", catalog())
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	assert.Equal(t, int64(4), candidates[0].ProductID)
	assert.GreaterOrEqual(t, candidates[0].Similarity, 0.85)
}

func TestMatchRankingAndTieBreak(t *testing.T) {
	m := New(DefaultConfig())

	candidates, err := m.Match("Sable", catalog())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(candidates), 2)

	// Both sand variants score identically; the lower id wins the tie.
	assert.Equal(t, int64(1), candidates[0].ProductID)
	assert.Equal(t, int64(2), candidates[1].ProductID)
	assert.InDelta(t, candidates[0].Similarity, candidates[1].Similarity, 1e-9)

	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(t, candidates[i].Similarity, candidates[i-1].Similarity)
	}
}

func TestMatchSkipsInactiveProducts(t *testing.T) {
	products := catalog()
	products[0].IsActive = false

	m := New(DefaultConfig())

	candidates, err := m.Match("Sable 0/2", products)
	require.NoError(t, err)

	for _, c := range candidates {
		assert.NotEqual(t, int64(1), c.ProductID)
	}
}

func TestMatchMinSimilarityFloor(t *testing.T) {
	m := New(Config{MinSimilarity: 0.99, MaxCandidates: 5})

	candidates, err := m.Match("Gravillons roulés", catalog())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestMatchMaxCandidates(t *testing.T) {
	m := New(Config{MinSimilarity: 0.01, MaxCandidates: 2})

	candidates, err := m.Match("Sable gravier ciment", catalog())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(candidates), 2)
}

func TestMatchEmptyDescription(t *testing.T) {
	m := New(DefaultConfig())

	tests := []struct {
		name  string
		input string
	}{
		{name: "blank", input: "   "},
		{name: "empty", input: ""},
		{name: "noise only", input: "livraison franco"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Match(tt.input, catalog())
			assert.True(t, errors.Is(err, common.ErrInvalidInput))
		})
	}
}

func TestMatchEmptyCatalog(t *testing.T) {
	m := New(DefaultConfig())

	candidates, err := m.Match("Sable 0/2", nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "sable 0/2", b: "sable 0/2", want: 1.0},
		{name: "disjoint", a: "sable", b: "gravier", want: 0},
		{name: "partial", a: "sable 0/2", b: "sable 0/4", want: 1.0 / 3.0},
		{name: "empty side", a: "", b: "sable", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenOverlap(tokenSet(tt.a), tokenSet(tt.b))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
