// Package resolve turns the free-text location strings extracted from
// reviews into canonical neighborhoods with coordinates. Lookups go
// through a configured gazetteer first and fall back to an external
// geocoder, with results cached under the normalized location text.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"forkmap-backend/lib/textutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("forkmap.services.crawler.resolve")

var (
	// ErrNoMatch is an internal signal from geocoder implementations;
	// Resolve converts it into an unresolved Location instead of
	// surfacing it.
	ErrNoMatch = errors.New("no location match")
	// ErrServiceUnavailable indicates the external geocoder could not
	// be reached after retries.
	ErrServiceUnavailable = errors.New("geocoding service unavailable")
)

// Location is the resolver's answer for one piece of location text.
// Confidence is in [0, 1]; Unresolved marks text nothing could place,
// which is kept (not dropped) so the record can still be stored.
type Location struct {
	Neighborhood string
	Latitude     float64
	Longitude    float64
	Confidence   float64
	Unresolved   bool
}

// CacheStore persists resolutions across runs, keyed by normalized
// location text.
type CacheStore interface {
	GetLocation(ctx context.Context, key string) (Location, bool, error)
	PutLocation(ctx context.Context, key string, loc Location) error
	DeleteLocation(ctx context.Context, key string) error
}

type Resolver struct {
	gazetteer *Gazetteer
	geocoder  Geocoder
	cache     CacheStore
	inflight  sync.Map
}

// NewResolver creates a Resolver. geocoder and cache may be nil, in
// which case lookups stop at the gazetteer and nothing persists across
// processes.
func NewResolver(gazetteer *Gazetteer, geocoder Geocoder, cache CacheStore) *Resolver {
	return &Resolver{
		gazetteer: gazetteer,
		geocoder:  geocoder,
		cache:     cache,
	}
}

type inflightEntry struct {
	done chan struct{}
	loc  Location
	err  error
}

// Resolve maps raw location text to a Location. Unresolvable text
// returns a zero-confidence Location with Unresolved set, not an
// error; only geocoder outages surface as errors. Concurrent calls
// with the same normalized key share a single lookup.
func (r *Resolver) Resolve(ctx context.Context, rawText string) (Location, error) {
	ctx, span := tracer.Start(ctx, "Resolve")
	defer span.End()

	key := NormalizeKey(rawText)
	if key == "" {
		return Location{Unresolved: true}, nil
	}

	if r.cache != nil {
		loc, ok, err := r.cache.GetLocation(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "reading geocode cache failed", "key", key, "err", err)
		} else if ok {
			return loc, nil
		}
	}

	entry := &inflightEntry{done: make(chan struct{})}
	actual, loaded := r.inflight.LoadOrStore(key, entry)
	if loaded {
		winner := actual.(*inflightEntry)
		select {
		case <-winner.done:
			return winner.loc, winner.err
		case <-ctx.Done():
			return Location{}, ctx.Err()
		}
	}

	entry.loc, entry.err = r.lookup(ctx, key)
	close(entry.done)

	if entry.err != nil {
		// let a later item retry the key
		r.inflight.Delete(key)
		span.RecordError(entry.err)
		span.SetStatus(codes.Error, entry.err.Error())
		return entry.loc, entry.err
	}

	if r.cache != nil && !entry.loc.Unresolved {
		if err := r.cache.PutLocation(ctx, key, entry.loc); err != nil {
			slog.WarnContext(ctx, "writing geocode cache failed", "key", key, "err", err)
		}
	}
	return entry.loc, nil
}

func (r *Resolver) lookup(ctx context.Context, key string) (Location, error) {
	if r.gazetteer != nil {
		if loc, ok := r.gazetteer.Lookup(key); ok {
			return loc, nil
		}
	}
	if r.geocoder == nil {
		return Location{Unresolved: true}, nil
	}

	loc, err := r.geocoder.Geocode(ctx, key)
	if errors.Is(err, ErrNoMatch) {
		return Location{Unresolved: true}, nil
	}
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Invalidate forgets a cached resolution, both in-process and
// persisted. Used when the source text behind a key changes.
func (r *Resolver) Invalidate(ctx context.Context, rawText string) error {
	key := NormalizeKey(rawText)
	r.inflight.Delete(key)
	if r.cache == nil {
		return nil
	}
	return r.cache.DeleteLocation(ctx, key)
}

var keyPrefixes = []string{
	"located in ",
	"located at ",
	"located on ",
	"in the ",
	"in ",
	"the ",
}

var keySuffixes = []string{
	" area",
	" neighborhood",
	" neighbourhood",
	" district",
}

// NormalizeKey reduces location text to its cache key: lowercased,
// whitespace collapsed, with the critic's boilerplate phrasings and
// any street-address tail after the first comma stripped off.
func NormalizeKey(raw string) string {
	key := strings.ToLower(textutil.CollapseWhitespace(raw))
	if i := strings.Index(key, ","); i >= 0 {
		key = strings.TrimSpace(key[:i])
	}
	for _, prefix := range keyPrefixes {
		if strings.HasPrefix(key, prefix) {
			key = key[len(prefix):]
			break
		}
	}
	for _, suffix := range keySuffixes {
		if strings.HasSuffix(key, suffix) {
			key = key[:len(key)-len(suffix)]
			break
		}
	}
	return strings.TrimSpace(key)
}
