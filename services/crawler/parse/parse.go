// Package parse turns raw blog documents into structured reviews. The
// blog has changed markup several times over its life, so extraction is
// an ordered list of strategies and the first one that recovers every
// required field wins. New formats get a new strategy, existing ones
// are never edited.
package parse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forkmap-backend/lib/htmlutil"
	"forkmap-backend/services/crawler/fetch"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("forkmap.services.crawler.parse")

// Review is the structured form of one blog post. RestaurantName,
// RawLocationText and Body are required; everything else is
// best-effort.
type Review struct {
	RestaurantName  string
	RawLocationText string
	Body            string
	Tags            []string

	PublishedAt time.Time
	// true when PublishedAt fell back to the fetch time
	PublishedInferred bool

	SourceURL string
	YelpURL   string
	MapsURL   string
	// leftover anchors from the post body, kept for curation
	ExtraLinks []htmlutil.Anchor

	// set when the structured wordpress strategy matched
	WordpressID int64
}

// Error reports a document no strategy could fully extract. Partial
// carries whatever fields were recovered so failures stay diagnosable.
type Error struct {
	URL     string
	Missing []string
	Partial Review
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse %s: missing fields: %s", e.URL, strings.Join(e.Missing, ", "))
}

// A Strategy is a pure extraction attempt. ok reports whether every
// required field was recovered; on !ok the partial review is still
// returned for diagnostics.
type Strategy struct {
	Name    string
	Extract func(ctx context.Context, doc fetch.RawDocument) (review Review, ok bool)
}

// ordered: structured markup first, heuristics last
var Strategies = []Strategy{
	{Name: "wordpress", Extract: extractWordpress},
	{Name: "markup", Extract: extractMarkup},
	{Name: "readability", Extract: extractReadability},
}

// Parse runs the strategies in order and returns the first full match.
// When none succeeds it returns a *Error carrying the most complete
// partial result.
func Parse(ctx context.Context, doc fetch.RawDocument) (Review, error) {
	ctx, span := tracer.Start(ctx, "Parse")
	defer span.End()
	span.SetAttributes(attribute.String("url", doc.SourceURL))

	var best Review
	bestScore := -1

	for _, strategy := range Strategies {
		review, ok := strategy.Extract(ctx, doc)
		review.SourceURL = doc.SourceURL
		if ok {
			span.SetAttributes(attribute.String("strategy", strategy.Name))
			return finalize(review, doc), nil
		}
		if score := requiredFieldCount(review); score > bestScore {
			best = review
			bestScore = score
		}
	}

	err := &Error{
		URL:     doc.SourceURL,
		Missing: missingFields(best),
		Partial: best,
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "no strategy yielded all required fields")
	return Review{}, err
}

func finalize(review Review, doc fetch.RawDocument) Review {
	if review.PublishedAt.IsZero() {
		review.PublishedAt = doc.FetchedAt
		review.PublishedInferred = true
	}
	return review
}

func requiredFieldCount(r Review) int {
	n := 0
	if r.RestaurantName != "" {
		n++
	}
	if r.RawLocationText != "" {
		n++
	}
	if r.Body != "" {
		n++
	}
	return n
}

func missingFields(r Review) []string {
	var missing []string
	if r.RestaurantName == "" {
		missing = append(missing, "restaurant_name")
	}
	if r.RawLocationText == "" {
		missing = append(missing, "raw_location_text")
	}
	if r.Body == "" {
		missing = append(missing, "review_body")
	}
	return missing
}
