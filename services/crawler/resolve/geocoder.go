package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"forkmap-backend/lib/telemetry"
	"forkmap-backend/lib/textutil"

	"github.com/go-resty/resty/v2"
)

// Geocoder looks up free-text location strings externally.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Location, error)
}

// NominatimClient speaks the nominatim search api (or anything
// wire-compatible with it).
type NominatimClient struct {
	client *resty.Client
}

func NewNominatimClient(baseURL, userAgent string) *NominatimClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetTimeout(time.Second * 15).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(time.Second * 10).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return res.StatusCode() == 429 || res.StatusCode() >= 500
		})
	telemetry.InstrumentResty(client, "forkmap.services.crawler.resolve")
	return &NominatimClient{client: client}
}

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

func (c *NominatimClient) Geocode(ctx context.Context, query string) (Location, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"format": "json",
			"limit":  "1",
		}).
		Get("/search")
	if err != nil {
		return Location{}, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	if res.StatusCode() >= 500 || res.StatusCode() == 429 {
		return Location{}, fmt.Errorf("%w: status %d", ErrServiceUnavailable, res.StatusCode())
	}
	if res.StatusCode() != 200 {
		return Location{}, fmt.Errorf("geocode %q: unexpected status %d", query, res.StatusCode())
	}

	var places []nominatimPlace
	if err := json.Unmarshal(res.Body(), &places); err != nil {
		return Location{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(places) == 0 {
		return Location{}, ErrNoMatch
	}
	place := places[0]

	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return Location{}, fmt.Errorf("geocode %q: bad latitude %q", query, place.Lat)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return Location{}, fmt.Errorf("geocode %q: bad longitude %q", query, place.Lon)
	}

	name := place.Name
	if name == "" {
		name, _, _ = strings.Cut(place.DisplayName, ",")
	}
	name = textutil.CollapseWhitespace(name)
	if name == "" {
		return Location{}, ErrNoMatch
	}

	importance := place.Importance
	if importance < 0 {
		importance = 0
	} else if importance > 1 {
		importance = 1
	}

	return Location{
		Neighborhood: name,
		Latitude:     lat,
		Longitude:    lon,
		Confidence:   0.6 + 0.3*importance,
	}, nil
}
