package archetype

import (
	"fmt"
	"math/rand"
)

// WeightedPick chooses a key from weights proportionally, using rng (spec
// §9 Design Notes / invariant 9: decision making is a pure function of a
// seed, so callers must pass a seeded *rand.Rand, never the package-level
// global). Weights need not sum to exactly 1 — this normalizes over
// whatever is given — but ActionWeights/ContentModeWeights are validated
// to sum to ~1 at Load time regardless.
//
// Returns the zero value and false if weights is empty or all-zero.
func WeightedPick[K comparable](rng *rand.Rand, weights map[K]float64) (K, bool) {
	var zero K
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return zero, false
	}

	// Map iteration order is randomized per-run; accumulate over a stable
	// key ordering so the same (rng, weights) always picks the same key.
	keys := stableKeys(weights)

	r := rng.Float64() * total
	var cumulative float64
	for _, k := range keys {
		w := weights[k]
		if w <= 0 {
			continue
		}
		cumulative += w
		if r < cumulative {
			return k, true
		}
	}
	return keys[len(keys)-1], true
}

// stableKeys returns weights' keys in a deterministic order by formatting
// each key and sorting the resulting strings, so WeightedPick's outcome
// depends only on (rng, weights), never on Go's randomized map iteration.
func stableKeys[K comparable](weights map[K]float64) []K {
	type entry struct {
		key K
		str string
	}
	entries := make([]entry, 0, len(weights))
	for k := range weights {
		entries = append(entries, entry{key: k, str: fmt.Sprint(k)})
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].str < entries[j-1].str; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	keys := make([]K, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys
}
