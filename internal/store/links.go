package store

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PageLink is one RFC 8288 navigation relation for a paginated listing.
type PageLink struct {
	Rel string
	URL string
}

// BuildLinks derives the first/last/prev/next navigation links for a
// page window. limit must be positive and offset non-negative; callers
// clamp before invoking. The "last" offset is the start of the final
// page that still holds at least one element. All query parameters of
// the request URL other than limit and offset are preserved.
func BuildLinks(limit, offset int, total int64, requestURL *url.URL) []PageLink {
	links := make([]PageLink, 0, 4)

	links = append(links, PageLink{Rel: "first", URL: pageURL(requestURL, limit, 0)})

	if total > 0 {
		lastOffset := int(((total - 1) / int64(limit)) * int64(limit))
		links = append(links, PageLink{Rel: "last", URL: pageURL(requestURL, limit, lastOffset)})
	}

	if offset > 0 {
		prevOffset := offset - limit
		if prevOffset < 0 {
			prevOffset = 0
		}
		links = append(links, PageLink{Rel: "prev", URL: pageURL(requestURL, limit, prevOffset)})
	}

	if int64(offset+limit) < total {
		links = append(links, PageLink{Rel: "next", URL: pageURL(requestURL, limit, offset+limit)})
	}

	return links
}

// FormatLinkHeader renders links as a single Link header value.
func FormatLinkHeader(links []PageLink) string {
	parts := make([]string, 0, len(links))
	for _, link := range links {
		parts = append(parts, fmt.Sprintf("<%s>; rel=%q", link.URL, link.Rel))
	}
	return strings.Join(parts, ", ")
}

func pageURL(requestURL *url.URL, limit, offset int) string {
	target := *requestURL
	query := target.Query()
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	target.RawQuery = query.Encode()
	return target.String()
}
