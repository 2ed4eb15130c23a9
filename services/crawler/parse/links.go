package parse

import (
	"net/url"
	"strings"

	"forkmap-backend/lib/htmlutil"
	"forkmap-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

type linkSet struct {
	Yelp string
	Maps string
	// the anchor text of the maps link, usually the street address
	MapsText string
	Extras   []htmlutil.Anchor
}

// harvestLinks sorts a post's anchors into the few we care about. The
// critic links every restaurant to yelp and google maps; everything
// else (image wrappers, related-post widgets, transit planners) is
// noise except for the odd link to a restaurant's own site, which is
// kept verbatim.
func harvestLinks(content *goquery.Document, base *url.URL) linkSet {
	// the related-post widget is a list of anchors to other reviews
	content.Find("ul.related_post").Remove()

	var links linkSet
	seen := map[string]struct{}{}

	content.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
			return
		}
		link, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			link = base.ResolveReference(link)
		}
		resolved := link.String()
		name := textutil.CollapseWhitespace(s.Text())

		switch {
		case strings.Contains(resolved, "yelp."):
			if links.Yelp == "" {
				links.Yelp = resolved
			}
		case strings.Contains(resolved, "plus.google."):
			// dead service, dead links
		case strings.Contains(resolved, "google.") && strings.Contains(resolved, "maps"):
			if links.Maps == "" {
				links.Maps = resolved
				links.MapsText = name
			}
		case strings.Contains(link.Host, "wmata.com") || textutil.MatchName(name, []string{"metrotripplanner"}):
			// transit directions, not about the restaurant
		case s.Find("img").Length() > 0:
			// image wrapped in a link to itself
		default:
			if _, dup := seen[resolved]; dup {
				return
			}
			seen[resolved] = struct{}{}
			links.Extras = append(links.Extras, htmlutil.Anchor{Name: name, Href: resolved})
		}
	})

	return links
}
