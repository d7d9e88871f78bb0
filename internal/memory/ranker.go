package memory

import (
	"cmp"
	"slices"

	"github.com/flemzord/utsuwa/internal/vecmath"
)

// DefaultLimit is the number of results returned when no limit is given.
const DefaultLimit = 10

// RankOptions controls how similarity and importance are blended.
type RankOptions struct {
	// SimilarityWeight scales the raw cosine similarity.
	SimilarityWeight float64 `yaml:"similarity_weight"`

	// ImportanceWeight scales importance normalized to [0, 1].
	ImportanceWeight float64 `yaml:"importance_weight"`

	// MinSimilarity drops candidates whose raw similarity is below it.
	MinSimilarity float64 `yaml:"min_similarity"`
}

// DefaultRankOptions returns the standard 0.7 / 0.3 blend with a 0.3
// similarity floor.
func DefaultRankOptions() RankOptions {
	return RankOptions{
		SimilarityWeight: 0.7,
		ImportanceWeight: 0.3,
		MinSimilarity:    0.3,
	}
}

// SimilarFact is a ranked recall candidate. Similarity is the raw cosine
// similarity; Score is the blended ranking score.
type SimilarFact struct {
	Fact       Fact    `json:"fact"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
}

// BlendScore combines similarity and importance into a ranking score.
func BlendScore(similarity float64, importance int, opts RankOptions) float64 {
	return similarity*opts.SimilarityWeight + (float64(importance)/MaxImportance)*opts.ImportanceWeight
}

// FindSimilarFacts ranks facts against query by blended score, highest first,
// and returns at most limit results (DefaultLimit when limit <= 0).
//
// Facts without an embedding are skipped, as are facts whose similarity is
// below opts.MinSimilarity. This is a linear scan. The sort is stable, so
// facts with equal scores keep their input order.
func FindSimilarFacts(query []float32, facts []Fact, limit int, opts RankOptions) []SimilarFact {
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]SimilarFact, 0, min(len(facts), limit))
	for i := range facts {
		if !facts[i].HasEmbedding() {
			continue
		}

		sim := vecmath.CosineSimilarity(query, facts[i].Embedding)
		if sim < opts.MinSimilarity {
			continue
		}

		results = append(results, SimilarFact{
			Fact:       facts[i],
			Similarity: sim,
			Score:      BlendScore(sim, facts[i].Importance, opts),
		})
	}

	slices.SortStableFunc(results, func(a, b SimilarFact) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
