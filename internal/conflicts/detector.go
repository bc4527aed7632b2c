// Package conflicts implements pairwise contradiction detection between case
// facts. The heuristic is deliberately narrow: only date and party facts can
// contradict, and only within the same category. Extending coverage to other
// fact types needs a real basis for the heuristic, not a guess.
package conflicts

import (
	"github.com/veritas-legal/factgate/internal/model"
)

// relationConfidence is the fixed confidence assigned to detected
// contradictions. The heuristic is exact-match, so there is no graded score.
const relationConfidence = 0.8

// Pair is an unordered pair of contradicting facts.
type Pair struct {
	A model.CaseFact
	B model.CaseFact
}

// Contradicts reports whether two facts of the same case contradict each other.
//
// Date facts contradict when both carry a parsed date, share a category, and
// the dates differ. Party facts contradict when they share a category and the
// text differs (case-sensitive). All other type combinations never conflict.
func Contradicts(a, b model.CaseFact) bool {
	if a.FactType != b.FactType {
		return false
	}

	switch a.FactType {
	case model.FactTypeDate:
		if a.FactDate == nil || b.FactDate == nil {
			return false
		}
		return sameCategory(a, b) && !a.FactDate.Equal(*b.FactDate)
	case model.FactTypeParty:
		return sameCategory(a, b) && a.FactText != b.FactText
	}
	return false
}

func sameCategory(a, b model.CaseFact) bool {
	if a.Category == nil || b.Category == nil {
		return a.Category == nil && b.Category == nil
	}
	return *a.Category == *b.Category
}

// FindPairs runs the O(n²) pairwise scan over the given facts and returns
// every contradicting pair. Callers pass the non-rejected facts of one case;
// the scan itself is read-only.
func FindPairs(facts []model.CaseFact) []Pair {
	var pairs []Pair
	for i, a := range facts {
		for _, b := range facts[i+1:] {
			if Contradicts(a, b) {
				pairs = append(pairs, Pair{A: a, B: b})
			}
		}
	}
	return pairs
}

// RelationsFor compares a newly saved fact against the existing facts of its
// case and returns a contradiction relation for each hit. The new fact is
// always the relation's fact_id so relations point backward in time.
func RelationsFor(fact model.CaseFact, existing []model.CaseFact) []model.FactRelation {
	var relations []model.FactRelation
	for _, other := range existing {
		if other.ID == fact.ID {
			continue
		}
		if Contradicts(fact, other) {
			relations = append(relations, model.FactRelation{
				FactID:        fact.ID,
				RelatedFactID: other.ID,
				RelationType:  model.RelationTypeContradicts,
				Confidence:    relationConfidence,
			})
		}
	}
	return relations
}
