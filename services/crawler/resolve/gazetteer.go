package resolve

import (
	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum JaroWinkler similarity for a
// gazetteer entry to count as a match.
const fuzzyThreshold = 0.9

// Entry is one known neighborhood.
type Entry struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Gazetteer is the configured list of neighborhoods the blog covers.
// An exact match here is authoritative and skips the geocoder
// entirely.
type Gazetteer struct {
	entries []Entry
	byKey   map[string]Entry
}

func NewGazetteer(entries []Entry) *Gazetteer {
	byKey := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byKey[NormalizeKey(e.Name)] = e
	}
	return &Gazetteer{entries: entries, byKey: byKey}
}

// Lookup matches a normalized key against the gazetteer. Exact
// matches get confidence 1.0; near-misses (typos, spacing drift)
// above fuzzyThreshold get a confidence scaled down into [0.6, 0.9).
func (g *Gazetteer) Lookup(key string) (Location, bool) {
	if entry, ok := g.byKey[key]; ok {
		return Location{
			Neighborhood: entry.Name,
			Latitude:     entry.Latitude,
			Longitude:    entry.Longitude,
			Confidence:   1,
		}, true
	}

	var mostSimilar Entry
	var mostSimilarity float64
	for _, entry := range g.entries {
		similarity := matchr.JaroWinkler(key, NormalizeKey(entry.Name), false)
		if similarity > mostSimilarity {
			mostSimilarity = similarity
			mostSimilar = entry
		}
	}
	if mostSimilarity < fuzzyThreshold {
		return Location{}, false
	}

	return Location{
		Neighborhood: mostSimilar.Name,
		Latitude:     mostSimilar.Latitude,
		Longitude:    mostSimilar.Longitude,
		Confidence:   0.6 + 0.3*(mostSimilarity-fuzzyThreshold)/(1-fuzzyThreshold),
	}, true
}
