package store

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// exportRecord is the wire shape consumed downstream. Field names are
// stable across versions; schema changes are additive only.
type exportRecord struct {
	RestaurantID       string   `json:"restaurant_id"`
	DisplayName        string   `json:"display_name"`
	Slug               string   `json:"slug"`
	Neighborhood       string   `json:"neighborhood"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	LocationConfidence float64  `json:"location_confidence"`
	LocationUnresolved bool     `json:"location_unresolved"`
	CuisineTags        []string `json:"cuisine_tags"`
	ReviewBody         string   `json:"review_body"`
	SourceURL          string   `json:"source_url"`
	YelpURL            string   `json:"yelp_url"`
	MapsURL            string   `json:"maps_url"`
	PublishedAt        string   `json:"published_at"`
	PublishedInferred  bool     `json:"published_inferred"`
	FirstSeenAt        string   `json:"first_seen_at"`
	LastUpdatedAt      string   `json:"last_updated_at"`
	ContentHash        string   `json:"content_hash"`
}

// ExportJSON writes every live record as a json array. Unresolved
// locations are included with null coordinates; proximity consumers
// are expected to skip those while name search keeps them.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	ctx, span := tracer.Start(ctx, "ExportJSON")
	defer span.End()

	restaurants, err := s.Scan(ctx)
	if err != nil {
		return err
	}

	records := make([]exportRecord, 0, len(restaurants))
	for _, r := range restaurants {
		record := exportRecord{
			RestaurantID:       r.RestaurantID,
			DisplayName:        r.DisplayName,
			Slug:               r.Slug,
			Neighborhood:       r.Neighborhood,
			LocationConfidence: r.LocationConfidence,
			LocationUnresolved: r.LocationUnresolved,
			CuisineTags:        r.CuisineTags,
			ReviewBody:         r.ReviewBody,
			SourceURL:          r.SourceURL,
			YelpURL:            r.YelpURL,
			MapsURL:            r.MapsURL,
			PublishedAt:        r.PublishedAt.Format(time.RFC3339),
			PublishedInferred:  r.PublishedInferred,
			FirstSeenAt:        r.FirstSeenAt.Format(time.RFC3339),
			LastUpdatedAt:      r.LastUpdatedAt.Format(time.RFC3339),
			ContentHash:        r.ContentHash,
		}
		if record.CuisineTags == nil {
			record.CuisineTags = []string{}
		}
		if !r.LocationUnresolved {
			lat, lon := r.Latitude, r.Longitude
			record.Latitude = &lat
			record.Longitude = &lon
		}
		records = append(records, record)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
