package normalize

import (
	"testing"
	"time"

	"forkmap-backend/services/crawler/parse"
	"forkmap-backend/services/crawler/resolve"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRestaurantIDStability(t *testing.T) {
	// formatting drift in the source must not mint a new identity
	require.Equal(t,
		RestaurantID("Joe's Diner", "Riverside"),
		RestaurantID("joe's  diner", "riverside"),
	)
	require.NotEqual(t,
		RestaurantID("Joe's Diner", "Riverside"),
		RestaurantID("Joe's Diner", "Dockside"),
	)
	require.NotEqual(t,
		RestaurantID("Joe's Diner", "Riverside"),
		RestaurantID("Jane's Diner", "Riverside"),
	)
}

func TestContentHash(t *testing.T) {
	base := ContentHash("Green Leaf Cafe", "in the Riverside area", "Great vegan options", []string{"Vegan", "Cafe"})

	// tag order is not a content change
	require.Equal(t, base, ContentHash("Green Leaf Cafe", "in the Riverside area", "Great vegan options", []string{"Cafe", "Vegan"}))

	require.NotEqual(t, base, ContentHash("Green Leaf Cafe", "in the Riverside area", "Great vegan options, new menu", []string{"Vegan", "Cafe"}))
	require.NotEqual(t, base, ContentHash("Green Leaf Cafe", "in the Riverside area", "Great vegan options", []string{"Vegan"}))
}

func TestVocabulary(t *testing.T) {
	vocab := NewVocabulary(
		[]string{"Vegan", "Vietnamese", "Coffee"},
		map[string]string{"Viet": "Vietnamese", "Cafe": "Coffee"},
	)

	folded, unknown := vocab.Canonicalize([]string{"vegan", "viet", "cafe", "coffee", "Pupusas"})
	require.Equal(t, []string{"Coffee", "Pupusas", "Vegan", "Vietnamese"}, folded)
	require.Equal(t, []string{"Pupusas"}, unknown)
}

func TestBuildRecord(t *testing.T) {
	vocab := NewVocabulary([]string{"Vegan"}, nil)

	review := parse.Review{
		RestaurantName:  "Green   Leaf Cafe",
		RawLocationText: "in the Riverside area",
		Body:            "Great vegan options",
		Tags:            []string{"vegan"},
		PublishedAt:     time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC),
		SourceURL:       "https://blog.example.com/green-leaf-cafe/",
		YelpURL:         "https://www.yelp.com/biz/green-leaf",
		MapsURL:         "https://www.google.com/maps/place/green-leaf",
	}
	loc := resolve.Location{
		Neighborhood: "Riverside",
		Latitude:     38.9,
		Longitude:    -77.03,
		Confidence:   1,
	}

	record, unknown := BuildRecord(review, loc, vocab)
	require.Empty(t, unknown)

	require.Equal(t, RestaurantID("green leaf cafe", "riverside"), record.RestaurantID)
	require.Equal(t, "Green Leaf Cafe", record.DisplayName)
	require.Equal(t, "green-leaf-cafe", record.Slug)
	require.Equal(t, "Riverside", record.Neighborhood)
	require.Equal(t, "https://www.yelp.com/biz/green-leaf", record.YelpURL)
	require.Equal(t, "https://www.google.com/maps/place/green-leaf", record.MapsURL)
	require.Equal(t, []string{"Vegan"}, record.CuisineTags)
	require.False(t, record.LocationUnresolved)
	require.NotEmpty(t, record.ContentHash)

	// identical input produces an identical record
	again, _ := BuildRecord(review, loc, vocab)
	require.Empty(t, cmp.Diff(record, again))
}
