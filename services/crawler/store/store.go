// Package store owns the persisted restaurant records. All writes go
// through identity-keyed upserts so re-running the pipeline over
// unchanged source content is a no-op.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"forkmap-backend/services/crawler/resolve"
	"forkmap-backend/services/crawler/store/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("forkmap.services.crawler.store")

var (
	ErrNotFound = errors.New("restaurant not found")
	// ErrNotConfirmed guards Tombstone against being called without
	// an affirmative confirmation flag.
	ErrNotConfirmed = errors.New("tombstone not confirmed")
	// ErrTombstoned rejects writes to an id that was intentionally
	// removed; the crawler would otherwise quietly resurrect it on
	// the next run.
	ErrTombstoned = errors.New("restaurant is tombstoned")
	// ErrUnavailable marks database-level failures, as opposed to
	// row-level conditions like ErrTombstoned. Callers treat it as
	// fatal to the whole run.
	ErrUnavailable = errors.New("store unavailable")
)

// Restaurant is the persisted entity. FirstSeenAt survives updates;
// everything else follows the latest successfully processed review.
type Restaurant struct {
	RestaurantID       string
	DisplayName        string
	Slug               string
	Neighborhood       string
	Latitude           float64
	Longitude          float64
	LocationConfidence float64
	LocationUnresolved bool
	RawLocationText    string
	CuisineTags        []string
	ReviewBody         string
	SourceURL          string
	YelpURL            string
	MapsURL            string
	PublishedAt        time.Time
	PublishedInferred  bool
	FirstSeenAt        time.Time
	LastUpdatedAt      time.Time
	ContentHash        string
}

type UpsertResult int

const (
	Created UpsertResult = iota
	Updated
	Unchanged
)

func (r UpsertResult) String() string {
	switch r {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	}
	return "unknown"
}

const lockStripes = 64

type Store struct {
	db    *sql.DB
	qry   *db.Queries
	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

func New(database *sql.DB) *Store {
	return &Store{
		db:  database,
		qry: db.New(database),
		now: time.Now,
	}
}

// concurrent workers can upsert the same restaurant_id (two posts
// about the same place); serialize those writes without serializing
// unrelated ones
func (s *Store) lock(restaurantID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(restaurantID))
	return &s.locks[h.Sum32()%lockStripes]
}

// Upsert writes a restaurant keyed by its identity. New id: created.
// Existing id with a differing content hash: updated in place with
// first_seen_at preserved. Matching hash: unchanged, no write.
// Tombstoned ids are rejected with ErrTombstoned. A failed write is
// retried once with a fresh read; a second failure surfaces as
// ErrUnavailable.
func (s *Store) Upsert(ctx context.Context, r Restaurant) (UpsertResult, error) {
	ctx, span := tracer.Start(ctx, "Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("restaurant_id", r.RestaurantID))

	mu := s.lock(r.RestaurantID)
	mu.Lock()
	defer mu.Unlock()

	result, err := s.upsertOnce(ctx, r)
	if err != nil && !errors.Is(err, ErrTombstoned) {
		result, err = s.upsertOnce(ctx, r)
	}
	if err != nil {
		if !errors.Is(err, ErrTombstoned) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(attribute.String("result", result.String()))
	return result, nil
}

func (s *Store) upsertOnce(ctx context.Context, r Restaurant) (UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	qry := s.qry.WithTx(tx)

	now := s.now().UTC()
	tags, err := encodeTags(r.CuisineTags)
	if err != nil {
		return 0, err
	}

	_, err = qry.GetTombstone(ctx, r.RestaurantID)
	switch {
	case err == nil:
		return 0, ErrTombstoned
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}

	existing, err := qry.GetRestaurant(ctx, r.RestaurantID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = qry.CreateRestaurant(ctx, db.CreateRestaurantParams{
			RestaurantID:       r.RestaurantID,
			DisplayName:        r.DisplayName,
			Slug:               r.Slug,
			Neighborhood:       r.Neighborhood,
			Latitude:           r.Latitude,
			Longitude:          r.Longitude,
			LocationConfidence: r.LocationConfidence,
			LocationUnresolved: encodeBool(r.LocationUnresolved),
			RawLocationText:    r.RawLocationText,
			CuisineTags:        tags,
			ReviewBody:         r.ReviewBody,
			SourceUrl:          r.SourceURL,
			YelpUrl:            r.YelpURL,
			MapsUrl:            r.MapsURL,
			PublishedAt:        r.PublishedAt.Unix(),
			PublishedInferred:  encodeBool(r.PublishedInferred),
			FirstSeenAt:        now.Unix(),
			LastUpdatedAt:      now.Unix(),
			ContentHash:        r.ContentHash,
		})
		if err != nil {
			return 0, err
		}
		return Created, tx.Commit()
	case err != nil:
		return 0, err
	case existing.ContentHash == r.ContentHash:
		return Unchanged, nil
	default:
		err = qry.UpdateRestaurant(ctx, db.UpdateRestaurantParams{
			DisplayName:        r.DisplayName,
			Slug:               r.Slug,
			Neighborhood:       r.Neighborhood,
			Latitude:           r.Latitude,
			Longitude:          r.Longitude,
			LocationConfidence: r.LocationConfidence,
			LocationUnresolved: encodeBool(r.LocationUnresolved),
			RawLocationText:    r.RawLocationText,
			CuisineTags:        tags,
			ReviewBody:         r.ReviewBody,
			SourceUrl:          r.SourceURL,
			YelpUrl:            r.YelpURL,
			MapsUrl:            r.MapsURL,
			PublishedAt:        r.PublishedAt.Unix(),
			PublishedInferred:  encodeBool(r.PublishedInferred),
			LastUpdatedAt:      now.Unix(),
			ContentHash:        r.ContentHash,
			RestaurantID:       r.RestaurantID,
		})
		if err != nil {
			return 0, err
		}
		return Updated, tx.Commit()
	}
}

func (s *Store) Get(ctx context.Context, restaurantID string) (Restaurant, error) {
	row, err := s.qry.GetRestaurant(ctx, restaurantID)
	if errors.Is(err, sql.ErrNoRows) {
		return Restaurant{}, ErrNotFound
	}
	if err != nil {
		return Restaurant{}, err
	}
	return decodeRestaurant(row)
}

// Scan returns every live record, tombstoned ids excluded, in stable
// id order.
func (s *Store) Scan(ctx context.Context) ([]Restaurant, error) {
	ctx, span := tracer.Start(ctx, "Scan")
	defer span.End()

	rows, err := s.qry.ListRestaurants(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	out := make([]Restaurant, 0, len(rows))
	for _, row := range rows {
		r, err := decodeRestaurant(row)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Tombstone marks a record as intentionally removed. It refuses to
// act without confirm so an orchestrator bug on a partial crawl can
// never delete records by accident. The row itself stays for audit.
func (s *Store) Tombstone(ctx context.Context, restaurantID, reason string, confirm bool) error {
	ctx, span := tracer.Start(ctx, "Tombstone")
	defer span.End()
	span.SetAttributes(attribute.String("restaurant_id", restaurantID))

	if !confirm {
		return ErrNotConfirmed
	}
	if _, err := s.Get(ctx, restaurantID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	err := s.qry.CreateTombstone(ctx, db.CreateTombstoneParams{
		RestaurantID: restaurantID,
		Reason:       reason,
		CreatedAt:    s.now().UTC().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Checkpoint reports the content hash of the last successfully
// processed document for a source url.
func (s *Store) Checkpoint(ctx context.Context, sourceURL string) (string, bool, error) {
	row, err := s.qry.GetCheckpoint(ctx, sourceURL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.ContentHash, true, nil
}

func (s *Store) PutCheckpoint(ctx context.Context, sourceURL, contentHash string) error {
	return s.qry.UpsertCheckpoint(ctx, db.UpsertCheckpointParams{
		SourceUrl:   sourceURL,
		ContentHash: contentHash,
		ProcessedAt: s.now().UTC().Unix(),
	})
}

// GetLocation, PutLocation and DeleteLocation persist the resolver's
// geocode cache.
func (s *Store) GetLocation(ctx context.Context, key string) (resolve.Location, bool, error) {
	row, err := s.qry.GetGeocodeCache(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return resolve.Location{}, false, nil
	}
	if err != nil {
		return resolve.Location{}, false, err
	}
	return resolve.Location{
		Neighborhood: row.Neighborhood,
		Latitude:     row.Latitude,
		Longitude:    row.Longitude,
		Confidence:   row.Confidence,
	}, true, nil
}

func (s *Store) PutLocation(ctx context.Context, key string, loc resolve.Location) error {
	return s.qry.UpsertGeocodeCache(ctx, db.UpsertGeocodeCacheParams{
		LocationKey:  key,
		Neighborhood: loc.Neighborhood,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		Confidence:   loc.Confidence,
	})
}

func (s *Store) DeleteLocation(ctx context.Context, key string) error {
	return s.qry.DeleteGeocodeCache(ctx, key)
}

func encodeBool(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	out, err := json.Marshal(tags)
	return string(out), err
}

func decodeRestaurant(row db.Restaurant) (Restaurant, error) {
	var tags []string
	if err := json.Unmarshal([]byte(row.CuisineTags), &tags); err != nil {
		return Restaurant{}, err
	}
	return Restaurant{
		RestaurantID:       row.RestaurantID,
		DisplayName:        row.DisplayName,
		Slug:               row.Slug,
		Neighborhood:       row.Neighborhood,
		Latitude:           row.Latitude,
		Longitude:          row.Longitude,
		LocationConfidence: row.LocationConfidence,
		LocationUnresolved: row.LocationUnresolved != 0,
		RawLocationText:    row.RawLocationText,
		CuisineTags:        tags,
		ReviewBody:         row.ReviewBody,
		SourceURL:          row.SourceUrl,
		YelpURL:            row.YelpUrl,
		MapsURL:            row.MapsUrl,
		PublishedAt:        time.Unix(row.PublishedAt, 0).UTC(),
		PublishedInferred:  row.PublishedInferred != 0,
		FirstSeenAt:        time.Unix(row.FirstSeenAt, 0).UTC(),
		LastUpdatedAt:      time.Unix(row.LastUpdatedAt, 0).UTC(),
		ContentHash:        row.ContentHash,
	}, nil
}
