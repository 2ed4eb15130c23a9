// Package normalize turns parsed reviews into canonical restaurant
// records: stable identity, folded cuisine tags and the content hash
// that drives change detection.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"forkmap-backend/lib/textutil"
	"forkmap-backend/services/crawler/parse"
	"forkmap-backend/services/crawler/resolve"
	"forkmap-backend/services/crawler/store"
)

// RestaurantID derives the stable identity for a restaurant from its
// normalized name and neighborhood. Formatting drift in the source
// ("Joe's  Diner" vs "joe's diner") must never mint a new identity.
func RestaurantID(name, neighborhood string) string {
	sum := sha256.Sum256([]byte(
		textutil.NormalizeKey(name) + "\x00" + textutil.NormalizeKey(neighborhood),
	))
	return hex.EncodeToString(sum[:16])
}

// ContentHash covers exactly the fields that matter for change
// detection. Tags are sorted first so set order never forces an
// update.
func ContentHash(name, rawLocation, body string, tags []string) string {
	sorted := slices.Clone(tags)
	slices.Sort(sorted)

	h := sha256.New()
	for _, field := range []string{name, rawLocation, body, strings.Join(sorted, "\x1f")} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Vocabulary is the controlled cuisine-tag list. Known tags fold to a
// canonical casing, aliases fold to their target, and unknown tags
// pass through verbatim but are reported for curation.
type Vocabulary struct {
	canonical map[string]string
}

func NewVocabulary(tags []string, aliases map[string]string) *Vocabulary {
	canonical := make(map[string]string, len(tags)+len(aliases))
	for _, tag := range tags {
		canonical[textutil.NormalizeKey(tag)] = tag
	}
	for alias, target := range aliases {
		canonical[textutil.NormalizeKey(alias)] = target
	}
	return &Vocabulary{canonical: canonical}
}

// Canonicalize folds and deduplicates a tag set, returning the sorted
// result plus any tags the vocabulary does not know.
func (v *Vocabulary) Canonicalize(tags []string) (folded []string, unknown []string) {
	seen := map[string]struct{}{}
	for _, tag := range tags {
		key := textutil.NormalizeKey(tag)
		if key == "" {
			continue
		}
		out := textutil.CollapseWhitespace(tag)
		if v != nil {
			if target, ok := v.canonical[key]; ok {
				out = target
			} else {
				unknown = append(unknown, out)
			}
		}
		if _, dup := seen[textutil.NormalizeKey(out)]; dup {
			continue
		}
		seen[textutil.NormalizeKey(out)] = struct{}{}
		folded = append(folded, out)
	}
	slices.Sort(folded)
	return folded, unknown
}

// BuildRecord assembles the persisted record for one review. The
// returned unknown tags are surfaced in the run summary.
func BuildRecord(review parse.Review, loc resolve.Location, vocab *Vocabulary) (store.Restaurant, []string) {
	displayName := textutil.CollapseWhitespace(review.RestaurantName)
	tags, unknown := vocab.Canonicalize(review.Tags)

	return store.Restaurant{
		RestaurantID:       RestaurantID(displayName, loc.Neighborhood),
		DisplayName:        displayName,
		Slug:               textutil.Slugify(displayName),
		Neighborhood:       loc.Neighborhood,
		Latitude:           loc.Latitude,
		Longitude:          loc.Longitude,
		LocationConfidence: loc.Confidence,
		LocationUnresolved: loc.Unresolved,
		RawLocationText:    review.RawLocationText,
		CuisineTags:        tags,
		ReviewBody:         review.Body,
		SourceURL:          review.SourceURL,
		YelpURL:            review.YelpURL,
		MapsURL:            review.MapsURL,
		PublishedAt:        review.PublishedAt,
		PublishedInferred:  review.PublishedInferred,
		ContentHash:        ContentHash(displayName, review.RawLocationText, review.Body, tags),
	}, unknown
}
