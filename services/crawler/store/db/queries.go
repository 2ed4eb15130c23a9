package db

import (
	"context"
)

const getRestaurant = `-- name: GetRestaurant :one
SELECT restaurant_id, display_name, slug, neighborhood, latitude, longitude,
    location_confidence, location_unresolved, raw_location_text,
    cuisine_tags, review_body, source_url, yelp_url, maps_url, published_at,
    published_inferred, first_seen_at, last_updated_at, content_hash
FROM restaurants WHERE restaurant_id = ?
`

func (q *Queries) GetRestaurant(ctx context.Context, restaurantID string) (Restaurant, error) {
	row := q.db.QueryRowContext(ctx, getRestaurant, restaurantID)
	var i Restaurant
	err := row.Scan(
		&i.RestaurantID,
		&i.DisplayName,
		&i.Slug,
		&i.Neighborhood,
		&i.Latitude,
		&i.Longitude,
		&i.LocationConfidence,
		&i.LocationUnresolved,
		&i.RawLocationText,
		&i.CuisineTags,
		&i.ReviewBody,
		&i.SourceUrl,
		&i.YelpUrl,
		&i.MapsUrl,
		&i.PublishedAt,
		&i.PublishedInferred,
		&i.FirstSeenAt,
		&i.LastUpdatedAt,
		&i.ContentHash,
	)
	return i, err
}

const listRestaurants = `-- name: ListRestaurants :many
SELECT restaurant_id, display_name, slug, neighborhood, latitude, longitude,
    location_confidence, location_unresolved, raw_location_text,
    cuisine_tags, review_body, source_url, yelp_url, maps_url, published_at,
    published_inferred, first_seen_at, last_updated_at, content_hash
FROM restaurants
WHERE restaurant_id NOT IN (SELECT restaurant_id FROM tombstones)
ORDER BY restaurant_id
`

func (q *Queries) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	rows, err := q.db.QueryContext(ctx, listRestaurants)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Restaurant
	for rows.Next() {
		var i Restaurant
		err := rows.Scan(
			&i.RestaurantID,
			&i.DisplayName,
			&i.Slug,
			&i.Neighborhood,
			&i.Latitude,
			&i.Longitude,
			&i.LocationConfidence,
			&i.LocationUnresolved,
			&i.RawLocationText,
			&i.CuisineTags,
			&i.ReviewBody,
			&i.SourceUrl,
			&i.YelpUrl,
			&i.MapsUrl,
			&i.PublishedAt,
			&i.PublishedInferred,
			&i.FirstSeenAt,
			&i.LastUpdatedAt,
			&i.ContentHash,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createRestaurant = `-- name: CreateRestaurant :exec
INSERT INTO restaurants (
    restaurant_id, display_name, slug, neighborhood, latitude, longitude,
    location_confidence, location_unresolved, raw_location_text,
    cuisine_tags, review_body, source_url, yelp_url, maps_url, published_at,
    published_inferred, first_seen_at, last_updated_at, content_hash
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateRestaurantParams struct {
	RestaurantID       string
	DisplayName        string
	Slug               string
	Neighborhood       string
	Latitude           float64
	Longitude          float64
	LocationConfidence float64
	LocationUnresolved int64
	RawLocationText    string
	CuisineTags        string
	ReviewBody         string
	SourceUrl          string
	YelpUrl            string
	MapsUrl            string
	PublishedAt        int64
	PublishedInferred  int64
	FirstSeenAt        int64
	LastUpdatedAt      int64
	ContentHash        string
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) error {
	_, err := q.db.ExecContext(ctx, createRestaurant,
		arg.RestaurantID,
		arg.DisplayName,
		arg.Slug,
		arg.Neighborhood,
		arg.Latitude,
		arg.Longitude,
		arg.LocationConfidence,
		arg.LocationUnresolved,
		arg.RawLocationText,
		arg.CuisineTags,
		arg.ReviewBody,
		arg.SourceUrl,
		arg.YelpUrl,
		arg.MapsUrl,
		arg.PublishedAt,
		arg.PublishedInferred,
		arg.FirstSeenAt,
		arg.LastUpdatedAt,
		arg.ContentHash,
	)
	return err
}

const updateRestaurant = `-- name: UpdateRestaurant :exec
UPDATE restaurants SET
    display_name = ?,
    slug = ?,
    neighborhood = ?,
    latitude = ?,
    longitude = ?,
    location_confidence = ?,
    location_unresolved = ?,
    raw_location_text = ?,
    cuisine_tags = ?,
    review_body = ?,
    source_url = ?,
    yelp_url = ?,
    maps_url = ?,
    published_at = ?,
    published_inferred = ?,
    last_updated_at = ?,
    content_hash = ?
WHERE restaurant_id = ?
`

type UpdateRestaurantParams struct {
	DisplayName        string
	Slug               string
	Neighborhood       string
	Latitude           float64
	Longitude          float64
	LocationConfidence float64
	LocationUnresolved int64
	RawLocationText    string
	CuisineTags        string
	ReviewBody         string
	SourceUrl          string
	YelpUrl            string
	MapsUrl            string
	PublishedAt        int64
	PublishedInferred  int64
	LastUpdatedAt      int64
	ContentHash        string
	RestaurantID       string
}

func (q *Queries) UpdateRestaurant(ctx context.Context, arg UpdateRestaurantParams) error {
	_, err := q.db.ExecContext(ctx, updateRestaurant,
		arg.DisplayName,
		arg.Slug,
		arg.Neighborhood,
		arg.Latitude,
		arg.Longitude,
		arg.LocationConfidence,
		arg.LocationUnresolved,
		arg.RawLocationText,
		arg.CuisineTags,
		arg.ReviewBody,
		arg.SourceUrl,
		arg.YelpUrl,
		arg.MapsUrl,
		arg.PublishedAt,
		arg.PublishedInferred,
		arg.LastUpdatedAt,
		arg.ContentHash,
		arg.RestaurantID,
	)
	return err
}

const getCheckpoint = `-- name: GetCheckpoint :one
SELECT source_url, content_hash, processed_at FROM checkpoints WHERE source_url = ?
`

func (q *Queries) GetCheckpoint(ctx context.Context, sourceUrl string) (Checkpoint, error) {
	row := q.db.QueryRowContext(ctx, getCheckpoint, sourceUrl)
	var i Checkpoint
	err := row.Scan(&i.SourceUrl, &i.ContentHash, &i.ProcessedAt)
	return i, err
}

const upsertCheckpoint = `-- name: UpsertCheckpoint :exec
INSERT INTO checkpoints (source_url, content_hash, processed_at)
VALUES (?, ?, ?)
ON CONFLICT (source_url) DO UPDATE SET
    content_hash = excluded.content_hash,
    processed_at = excluded.processed_at
`

type UpsertCheckpointParams struct {
	SourceUrl   string
	ContentHash string
	ProcessedAt int64
}

func (q *Queries) UpsertCheckpoint(ctx context.Context, arg UpsertCheckpointParams) error {
	_, err := q.db.ExecContext(ctx, upsertCheckpoint, arg.SourceUrl, arg.ContentHash, arg.ProcessedAt)
	return err
}

const getGeocodeCache = `-- name: GetGeocodeCache :one
SELECT location_key, neighborhood, latitude, longitude, confidence
FROM geocode_cache WHERE location_key = ?
`

func (q *Queries) GetGeocodeCache(ctx context.Context, locationKey string) (GeocodeCache, error) {
	row := q.db.QueryRowContext(ctx, getGeocodeCache, locationKey)
	var i GeocodeCache
	err := row.Scan(&i.LocationKey, &i.Neighborhood, &i.Latitude, &i.Longitude, &i.Confidence)
	return i, err
}

const upsertGeocodeCache = `-- name: UpsertGeocodeCache :exec
INSERT INTO geocode_cache (location_key, neighborhood, latitude, longitude, confidence)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (location_key) DO UPDATE SET
    neighborhood = excluded.neighborhood,
    latitude = excluded.latitude,
    longitude = excluded.longitude,
    confidence = excluded.confidence
`

type UpsertGeocodeCacheParams struct {
	LocationKey  string
	Neighborhood string
	Latitude     float64
	Longitude    float64
	Confidence   float64
}

func (q *Queries) UpsertGeocodeCache(ctx context.Context, arg UpsertGeocodeCacheParams) error {
	_, err := q.db.ExecContext(ctx, upsertGeocodeCache,
		arg.LocationKey,
		arg.Neighborhood,
		arg.Latitude,
		arg.Longitude,
		arg.Confidence,
	)
	return err
}

const deleteGeocodeCache = `-- name: DeleteGeocodeCache :exec
DELETE FROM geocode_cache WHERE location_key = ?
`

func (q *Queries) DeleteGeocodeCache(ctx context.Context, locationKey string) error {
	_, err := q.db.ExecContext(ctx, deleteGeocodeCache, locationKey)
	return err
}

const createTombstone = `-- name: CreateTombstone :exec
INSERT INTO tombstones (restaurant_id, reason, created_at)
VALUES (?, ?, ?)
ON CONFLICT (restaurant_id) DO NOTHING
`

type CreateTombstoneParams struct {
	RestaurantID string
	Reason       string
	CreatedAt    int64
}

func (q *Queries) CreateTombstone(ctx context.Context, arg CreateTombstoneParams) error {
	_, err := q.db.ExecContext(ctx, createTombstone, arg.RestaurantID, arg.Reason, arg.CreatedAt)
	return err
}

const getTombstone = `-- name: GetTombstone :one
SELECT restaurant_id, reason, created_at FROM tombstones WHERE restaurant_id = ?
`

func (q *Queries) GetTombstone(ctx context.Context, restaurantID string) (Tombstone, error) {
	row := q.db.QueryRowContext(ctx, getTombstone, restaurantID)
	var i Tombstone
	err := row.Scan(&i.RestaurantID, &i.Reason, &i.CreatedAt)
	return i, err
}
