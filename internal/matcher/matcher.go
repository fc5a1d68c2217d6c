package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
)

// Scoring weights and floors. An exact normalized hit on a name or alias is
// a certain match; substring containment is close behind; everything else is
// a blend of token overlap and edit distance.
const (
	exactScore       = 1.0
	containmentScore = 0.85
	tokenWeight      = 0.6
	editWeight       = 0.4
)

// Config controls candidate filtering.
type Config struct {
	// MinSimilarity excludes weak candidates entirely rather than returning
	// them as low-confidence guesses.
	MinSimilarity float64
	// MaxCandidates truncates the ranked result.
	MaxCandidates int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MinSimilarity: 0.3,
		MaxCandidates: 5,
	}
}

// Matcher scores raw invoice descriptions against catalog products. It is a
// pure function over a catalog snapshot: no I/O, no mutation.
type Matcher struct {
	params *levenshtein.Params
	cfg    Config
}

// New creates a Matcher with the given config, falling back to defaults for
// zero values.
func New(cfg Config) *Matcher {
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = DefaultConfig().MinSimilarity
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultConfig().MaxCandidates
	}
	return &Matcher{
		cfg:    cfg,
		params: levenshtein.NewParams(),
	}
}

// Match returns ranked candidate products for a raw line description,
// sorted by similarity descending with product id ascending as the
// deterministic tie-break. An empty or whitespace-only description is a
// caller error; an empty catalog yields an empty result, never an error.
func (m *Matcher) Match(rawDescription string, products []model.Product) ([]model.MatchCandidate, error) {
	if strings.TrimSpace(rawDescription) == "" {
		return nil, fmt.Errorf("%w: raw description is empty", common.ErrInvalidInput)
	}

	query := Normalize(rawDescription)
	if query == "" {
		return nil, fmt.Errorf("%w: raw description %q has no matchable content", common.ErrInvalidInput, rawDescription)
	}
	queryTokens := tokenSet(query)

	var candidates []model.MatchCandidate
	for i := range products {
		p := &products[i]
		if !p.IsActive {
			continue
		}

		score := m.scoreProduct(query, queryTokens, p)
		if score < m.cfg.MinSimilarity {
			continue
		}
		candidates = append(candidates, model.MatchCandidate{
			ProductID:  p.ID,
			Similarity: score,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].ProductID < candidates[j].ProductID
	})

	if len(candidates) > m.cfg.MaxCandidates {
		candidates = candidates[:m.cfg.MaxCandidates]
	}

	return candidates, nil
}

// scoreProduct returns the best similarity across the product's normalized
// name and all of its aliases.
func (m *Matcher) scoreProduct(query string, queryTokens map[string]struct{}, p *model.Product) float64 {
	best := m.score(query, queryTokens, p.NormalizedName)
	for _, alias := range p.Aliases {
		if best == exactScore {
			break
		}
		if s := m.score(query, queryTokens, Normalize(alias)); s > best {
			best = s
		}
	}
	return best
}

func (m *Matcher) score(query string, queryTokens map[string]struct{}, target string) float64 {
	if target == "" {
		return 0
	}
	if query == target {
		return exactScore
	}

	overlap := tokenOverlap(queryTokens, tokenSet(target))
	edit := levenshtein.Similarity(query, target, m.params)
	blended := tokenWeight*overlap + editWeight*edit

	// One description containing the other wholesale is a near-certain hit
	// even when the extra tokens drag the blended score down.
	if strings.Contains(query, target) || strings.Contains(target, query) {
		if blended < containmentScore {
			return containmentScore
		}
	}

	return blended
}
