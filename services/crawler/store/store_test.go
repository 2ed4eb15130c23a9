package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"forkmap-backend/lib/testutil"
	"forkmap-backend/services/crawler/resolve"
	"forkmap-backend/services/crawler/store/db"

	"github.com/stretchr/testify/require"
)

func testRestaurant() Restaurant {
	return Restaurant{
		RestaurantID:       "abc123",
		DisplayName:        "Green Leaf Cafe",
		Slug:               "green-leaf-cafe",
		Neighborhood:       "Riverside",
		Latitude:           38.9,
		Longitude:          -77.03,
		LocationConfidence: 1,
		RawLocationText:    "in the Riverside area",
		CuisineTags:        []string{"Cafe", "Vegan"},
		ReviewBody:         "Great vegan options",
		SourceURL:          "https://blog.example.com/green-leaf-cafe/",
		YelpURL:            "https://www.yelp.com/biz/green-leaf",
		MapsURL:            "https://www.google.com/maps/place/green-leaf",
		PublishedAt:        time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC),
		ContentHash:        "hash-v1",
	}
}

func TestUpsertLifecycle(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler/store",
		DbSchema: db.Schema,
	})
	defer cleanup()
	st := New(setup.DB)

	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return t0 }

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	r := testRestaurant()

	{
		result, err := st.Upsert(ctx, r)
		require.NoError(t, err)
		require.Equal(t, Created, result)

		got, err := st.Get(ctx, r.RestaurantID)
		require.NoError(t, err)
		require.Equal(t, r.DisplayName, got.DisplayName)
		require.Equal(t, "green-leaf-cafe", got.Slug)
		require.Equal(t, r.YelpURL, got.YelpURL)
		require.Equal(t, r.MapsURL, got.MapsURL)
		require.Equal(t, []string{"Cafe", "Vegan"}, got.CuisineTags)
		require.Equal(t, t0, got.FirstSeenAt)
		require.Equal(t, t0, got.LastUpdatedAt)
	}
	{
		// same content hash: no write
		result, err := st.Upsert(ctx, r)
		require.NoError(t, err)
		require.Equal(t, Unchanged, result)
	}
	{
		// changed content: update in place, first_seen_at preserved
		t1 := t0.Add(time.Hour * 24)
		st.now = func() time.Time { return t1 }

		r.ReviewBody = "Great vegan options, new menu"
		r.ContentHash = "hash-v2"
		result, err := st.Upsert(ctx, r)
		require.NoError(t, err)
		require.Equal(t, Updated, result)

		got, err := st.Get(ctx, r.RestaurantID)
		require.NoError(t, err)
		require.Equal(t, "Great vegan options, new menu", got.ReviewBody)
		require.Equal(t, t0, got.FirstSeenAt)
		require.Equal(t, t1, got.LastUpdatedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler/store",
		DbSchema: db.Schema,
	})
	defer cleanup()
	st := New(setup.DB)

	_, err := st.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTombstone(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler/store",
		DbSchema: db.Schema,
	})
	defer cleanup()
	st := New(setup.DB)

	ctx := context.Background()
	r := testRestaurant()

	_, err := st.Upsert(ctx, r)
	require.NoError(t, err)

	// refuses without confirmation
	err = st.Tombstone(ctx, r.RestaurantID, "closed down", false)
	require.ErrorIs(t, err, ErrNotConfirmed)

	err = st.Tombstone(ctx, r.RestaurantID, "closed down", true)
	require.NoError(t, err)

	// tombstoned records disappear from scans but not from Get
	records, err := st.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, records)

	_, err = st.Get(ctx, r.RestaurantID)
	require.NoError(t, err)

	err = st.Tombstone(ctx, "missing", "typo", true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertRejectsTombstonedID(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler/store",
		DbSchema: db.Schema,
	})
	defer cleanup()
	st := New(setup.DB)

	ctx := context.Background()
	r := testRestaurant()

	_, err := st.Upsert(ctx, r)
	require.NoError(t, err)
	require.NoError(t, st.Tombstone(ctx, r.RestaurantID, "closed down", true))

	// a later crawl of the same post must not resurrect the record
	r.ReviewBody = "Reopened under new management"
	r.ContentHash = "hash-v2"
	_, err = st.Upsert(ctx, r)
	require.ErrorIs(t, err, ErrTombstoned)

	got, err := st.Get(ctx, r.RestaurantID)
	require.NoError(t, err)
	require.Equal(t, "Great vegan options", got.ReviewBody)
	require.Equal(t, "hash-v1", got.ContentHash)
}

func TestUpsertConcurrentSameID(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler/store",
		DbSchema: db.Schema,
	})
	defer cleanup()
	st := New(setup.DB)

	ctx := context.Background()

	const writers = 8
	results := make([]UpsertResult, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := testRestaurant()
			r.ContentHash = fmt.Sprintf("hash-v%d", i)
			results[i], errs[i] = st.Upsert(ctx, r)
		}(i)
	}
	wg.Wait()

	created := 0
	hashes := map[string]struct{}{}
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		if results[i] == Created {
			created++
		}
		hashes[fmt.Sprintf("hash-v%d", i)] = struct{}{}
	}
	// writes to one id are serialized: exactly one creates, the rest
	// observe the row and update, and no write is lost
	require.Equal(t, 1, created)

	got, err := st.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Contains(t, hashes, got.ContentHash)
}

func TestCheckpoints(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler/store",
		DbSchema: db.Schema,
	})
	defer cleanup()
	st := New(setup.DB)

	ctx := context.Background()
	url := "https://blog.example.com/green-leaf-cafe/"

	_, ok, err := st.Checkpoint(ctx, url)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.PutCheckpoint(ctx, url, "hash-v1"))

	hash, ok, err := st.Checkpoint(ctx, url)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hash-v1", hash)

	require.NoError(t, st.PutCheckpoint(ctx, url, "hash-v2"))

	hash, _, err = st.Checkpoint(ctx, url)
	require.NoError(t, err)
	require.Equal(t, "hash-v2", hash)
}

func TestGeocodeCache(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler/store",
		DbSchema: db.Schema,
	})
	defer cleanup()
	st := New(setup.DB)

	ctx := context.Background()

	_, ok, err := st.GetLocation(ctx, "riverside")
	require.NoError(t, err)
	require.False(t, ok)

	loc := resolve.Location{Neighborhood: "Riverside", Latitude: 38.9, Longitude: -77.03, Confidence: 1}
	require.NoError(t, st.PutLocation(ctx, "riverside", loc))

	got, ok, err := st.GetLocation(ctx, "riverside")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, loc, got)

	require.NoError(t, st.DeleteLocation(ctx, "riverside"))
	_, ok, err = st.GetLocation(ctx, "riverside")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExportJSON(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/crawler/store",
		DbSchema: db.Schema,
	})
	defer cleanup()
	st := New(setup.DB)

	ctx := context.Background()

	resolved := testRestaurant()
	_, err := st.Upsert(ctx, resolved)
	require.NoError(t, err)

	unresolved := testRestaurant()
	unresolved.RestaurantID = "def456"
	unresolved.DisplayName = "Mystery Spot"
	unresolved.Neighborhood = ""
	unresolved.Latitude = 0
	unresolved.Longitude = 0
	unresolved.LocationConfidence = 0
	unresolved.LocationUnresolved = true
	unresolved.ContentHash = "hash-u1"
	_, err = st.Upsert(ctx, unresolved)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, st.ExportJSON(ctx, &buf))

	var records []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)

	byID := map[string]map[string]any{}
	for _, r := range records {
		byID[r["restaurant_id"].(string)] = r
	}

	require.Equal(t, "Green Leaf Cafe", byID["abc123"]["display_name"])
	require.Equal(t, "green-leaf-cafe", byID["abc123"]["slug"])
	require.Equal(t, "https://www.yelp.com/biz/green-leaf", byID["abc123"]["yelp_url"])
	require.Equal(t, "https://www.google.com/maps/place/green-leaf", byID["abc123"]["maps_url"])
	require.InDelta(t, 38.9, byID["abc123"]["latitude"].(float64), 0.0001)
	require.Equal(t, false, byID["abc123"]["location_unresolved"])

	// unresolved locations export with null coordinates, not dropped
	require.Equal(t, true, byID["def456"]["location_unresolved"])
	require.Nil(t, byID["def456"]["latitude"])
	require.Nil(t, byID["def456"]["longitude"])
}
