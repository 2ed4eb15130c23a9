package parse

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"forkmap-backend/lib/textutil"
	"forkmap-backend/services/crawler/fetch"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
)

// ---- wordpress REST strategy ----

type wpRendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	ID      int64      `json:"id"`
	Link    string     `json:"link"`
	Date    string     `json:"date"`
	DateGmt string     `json:"date_gmt"`
	Title   wpRendered `json:"title"`
	Content wpRendered `json:"content"`
}

// extractWordpress handles documents fetched from the wp-json api,
// either a single post object or the one-element array the ?slug=
// query returns.
func extractWordpress(ctx context.Context, doc fetch.RawDocument) (Review, bool) {
	body := strings.TrimSpace(doc.Body)

	var post wpPost
	switch {
	case strings.HasPrefix(body, "["):
		var posts []wpPost
		if err := json.Unmarshal([]byte(body), &posts); err != nil || len(posts) == 0 {
			return Review{}, false
		}
		post = posts[0]
	case strings.HasPrefix(body, "{"):
		if err := json.Unmarshal([]byte(body), &post); err != nil {
			return Review{}, false
		}
	default:
		return Review{}, false
	}
	if post.Title.Rendered == "" || post.Content.Rendered == "" {
		return Review{}, false
	}

	content, err := goquery.NewDocumentFromReader(strings.NewReader(post.Content.Rendered))
	if err != nil {
		return Review{}, false
	}

	review := reviewFromContent(content, doc.SourceURL)
	review.RestaurantName = textutil.CollapseWhitespace(decodeEntities(post.Title.Rendered))
	review.WordpressID = post.ID

	if t, err := wpTime(post.Date, post.DateGmt); err == nil {
		review.PublishedAt = t
	}

	return review, requiredFieldCount(review) == 3
}

// wordpress reports post dates in local time alongside a gmt variant;
// the difference between the two recovers the site's utc offset.
func wpTime(date, dateGmt string) (time.Time, error) {
	local, err := time.Parse("2006-01-02T15:04:05", date)
	if err != nil {
		return dateparse.ParseAny(date)
	}
	if dateGmt == "" {
		return local, nil
	}
	gmt, err := time.Parse("2006-01-02T15:04:05", dateGmt)
	if err != nil {
		return local, nil
	}
	offset := int(local.Sub(gmt).Seconds())
	return time.Date(
		local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(),
		time.FixedZone("", offset),
	), nil
}

// ---- html markup strategy ----

// extractMarkup reads the blog's post markup directly: entry title,
// entry content and tag links.
func extractMarkup(ctx context.Context, doc fetch.RawDocument) (Review, bool) {
	page, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Body))
	if err != nil {
		return Review{}, false
	}

	content := page.Find("div.entry-content, article div.post-content").First()
	if content.Length() == 0 {
		return Review{}, false
	}

	contentDoc := goquery.NewDocumentFromNode(content.Nodes[0])
	review := reviewFromContent(contentDoc, doc.SourceURL)

	title := page.Find("h1.entry-title, h2.entry-title, article h1").First().Text()
	review.RestaurantName = textutil.CollapseWhitespace(title)

	page.Find("a[rel=tag], .post-categories a, .tag-links a").Each(func(_ int, s *goquery.Selection) {
		tag := textutil.CollapseWhitespace(s.Text())
		if tag != "" {
			review.Tags = append(review.Tags, tag)
		}
	})

	if dt, ok := page.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := dateparse.ParseAny(dt); err == nil {
			review.PublishedAt = t
		}
	}
	if review.PublishedAt.IsZero() {
		if meta, ok := page.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
			if t, err := dateparse.ParseAny(meta); err == nil {
				review.PublishedAt = t
			}
		}
	}

	return review, requiredFieldCount(review) == 3
}

// ---- readability fallback strategy ----

// extractReadability is the last resort for markup neither structured
// strategy recognizes: article extraction plus text heuristics.
func extractReadability(ctx context.Context, doc fetch.RawDocument) (Review, bool) {
	pageURL, err := url.Parse(doc.SourceURL)
	if err != nil {
		pageURL = nil
	}

	article, err := readability.FromReader(strings.NewReader(doc.Body), pageURL)
	if err != nil {
		slog.DebugContext(ctx, "readability extraction failed", "url", doc.SourceURL, "err", err)
		return Review{}, false
	}

	review := Review{
		RestaurantName: textutil.CollapseWhitespace(article.Title),
		Body:           textutil.CollapseWhitespace(article.TextContent),
	}

	if content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
		links := harvestLinks(content, pageURL)
		review.YelpURL = links.Yelp
		review.MapsURL = links.Maps
		review.ExtraLinks = links.Extras
		if links.MapsText != "" {
			review.RawLocationText = links.MapsText
		}
	}
	if review.RawLocationText == "" {
		review.RawLocationText = locationFromText(review.Body)
	}

	return review, requiredFieldCount(review) == 3
}

// ---- shared helpers ----

// reviewFromContent extracts everything derivable from a post's
// content html: the body text, the harvested links and the location.
func reviewFromContent(content *goquery.Document, sourceURL string) Review {
	base, err := url.Parse(sourceURL)
	if err != nil {
		base = nil
	}

	links := harvestLinks(content, base)

	review := Review{
		Body:       textutil.CollapseWhitespace(content.Text()),
		YelpURL:    links.Yelp,
		MapsURL:    links.Maps,
		ExtraLinks: links.Extras,
	}

	// the maps anchor text is almost always the street address
	if links.MapsText != "" {
		review.RawLocationText = links.MapsText
	} else {
		review.RawLocationText = locationFromText(review.Body)
	}
	return review
}

var locatedInRegex = regexp.MustCompile(`(?i)\blocated (?:in|at|on) ([^.,;!\n]+)`)
var inTheAreaRegex = regexp.MustCompile(`(?i)\bin the ([^.,;!\n]+?) (?:area|neighborhood|neighbourhood|district)\b`)

// locationFromText scans prose for the phrasings the critic uses to
// place a restaurant.
func locationFromText(text string) string {
	if m := inTheAreaRegex.FindStringSubmatch(text); m != nil {
		return textutil.CollapseWhitespace(m[0])
	}
	if m := locatedInRegex.FindStringSubmatch(text); m != nil {
		return textutil.CollapseWhitespace(m[1])
	}
	return ""
}

var entityReplacer = strings.NewReplacer(
	"&#8217;", "'",
	"&#8216;", "'",
	"&#8220;", `"`,
	"&#8221;", `"`,
	"&amp;", "&",
	"&#038;", "&",
)

// wordpress titles arrive with a handful of numeric entities intact
func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
