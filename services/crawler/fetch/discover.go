package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"forkmap-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// safety cap, the source has at most a few thousand posts
const maxIndexPages = 200

const postsPerPage = 100

// Discover enumerates the urls of every review post on the source.
// It walks the wordpress REST index first and falls back to scraping
// the html index pages when the REST api is unavailable. Both paths go
// through the same rate limit as regular fetches.
func (c *Client) Discover(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Discover")
	defer span.End()

	urls, restErr := c.discoverRest(ctx)
	if restErr == nil {
		span.SetAttributes(attribute.Int("post_count", len(urls)))
		return urls, nil
	}

	slog.WarnContext(ctx, "wordpress rest discovery failed, scraping index pages", "err", restErr)

	urls, htmlErr := c.discoverIndexPages(ctx)
	if htmlErr != nil {
		span.RecordError(htmlErr)
		span.SetStatus(codes.Error, "discovery failed")
		return nil, fmt.Errorf("discover: rest: %v; index pages: %w", restErr, htmlErr)
	}
	span.SetAttributes(attribute.Int("post_count", len(urls)))
	return urls, nil
}

type wpPostRef struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

func (c *Client) discoverRest(ctx context.Context) ([]string, error) {
	var urls []string

	for page := 1; page <= maxIndexPages; page++ {
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"per_page": fmt.Sprintf("%d", postsPerPage),
				"page":     fmt.Sprintf("%d", page),
				"_fields":  "id,link",
			}).
			Get(c.baseURL.JoinPath("/wp-json/wp/v2/posts").String())
		if err != nil {
			return nil, err
		}
		// wordpress answers 400 rest_post_invalid_page_number past
		// the last page
		if res.StatusCode() == 400 {
			break
		}
		if res.StatusCode() != 200 {
			return nil, fmt.Errorf("posts index returned HTTP %d", res.StatusCode())
		}

		var posts []wpPostRef
		err = json.Unmarshal(res.Body(), &posts)
		if err != nil {
			return nil, fmt.Errorf("parse posts index: %w", err)
		}
		if len(posts) == 0 {
			break
		}
		for _, p := range posts {
			urls = append(urls, p.Link)
		}
		if len(posts) < postsPerPage {
			break
		}
	}

	return urls, nil
}

func (c *Client) discoverIndexPages(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var urls []string

	for page := 1; page <= maxIndexPages; page++ {
		pageURL := c.baseURL.String()
		if page > 1 {
			pageURL = c.baseURL.JoinPath(fmt.Sprintf("/page/%d/", page)).String()
		}

		res, err := c.http.R().
			SetContext(ctx).
			Get(pageURL)
		if err != nil {
			return nil, err
		}
		if res.StatusCode() == 404 {
			break
		}
		if res.StatusCode() != 200 {
			return nil, fmt.Errorf("index page %d returned HTTP %d", page, res.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(res.Body())))
		if err != nil {
			return nil, err
		}

		added := 0
		anchors := htmlutil.GetAnchors(
			ctx,
			doc.Find("h2.entry-title a, article h2 a, a[rel=bookmark]"),
			c.baseURL,
		)
		for _, a := range anchors {
			if !c.isPostURL(a.Href) {
				continue
			}
			if _, ok := seen[a.Href]; ok {
				continue
			}
			seen[a.Href] = struct{}{}
			urls = append(urls, a.Href)
			added++
		}
		// an index page with nothing new means we looped back around
		if added == 0 {
			break
		}
	}

	return urls, nil
}

func (c *Client) isPostURL(href string) bool {
	link, err := url.Parse(href)
	if err != nil {
		return false
	}
	if link.Host != c.baseURL.Host {
		return false
	}
	// pagination links look like post links but are not
	return !strings.Contains(link.Path, "/page/")
}
