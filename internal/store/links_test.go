package store

import (
	"net/url"
	"strings"
	"testing"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("unexpected url parse error: %v", err)
	}
	return parsed
}

func linkByRel(links []PageLink, rel string) (PageLink, bool) {
	for _, link := range links {
		if link.Rel == rel {
			return link, true
		}
	}
	return PageLink{}, false
}

func TestBuildLinksMiddlePage(t *testing.T) {
	links := BuildLinks(10, 20, 45, mustParseURL(t, "/order"))

	expected := map[string]string{
		"first": "/order?limit=10&offset=0",
		"last":  "/order?limit=10&offset=40",
		"prev":  "/order?limit=10&offset=10",
		"next":  "/order?limit=10&offset=30",
	}
	if len(links) != len(expected) {
		t.Fatalf("expected %d links, got %+v", len(expected), links)
	}
	for rel, wantURL := range expected {
		link, found := linkByRel(links, rel)
		if !found {
			t.Fatalf("missing %q link in %+v", rel, links)
		}
		if link.URL != wantURL {
			t.Fatalf("unexpected %q link: got %q, want %q", rel, link.URL, wantURL)
		}
	}
}

func TestBuildLinksSinglePage(t *testing.T) {
	links := BuildLinks(10, 0, 5, mustParseURL(t, "/order"))

	first, found := linkByRel(links, "first")
	if !found || first.URL != "/order?limit=10&offset=0" {
		t.Fatalf("unexpected first link: %+v", links)
	}
	last, found := linkByRel(links, "last")
	if !found || last.URL != "/order?limit=10&offset=0" {
		t.Fatalf("unexpected last link: %+v", links)
	}
	if _, found := linkByRel(links, "prev"); found {
		t.Fatalf("expected no prev link on first page: %+v", links)
	}
	if _, found := linkByRel(links, "next"); found {
		t.Fatalf("expected no next link on final page: %+v", links)
	}
}

func TestBuildLinksOmitsLastForEmptyCollection(t *testing.T) {
	links := BuildLinks(10, 0, 0, mustParseURL(t, "/order"))

	if len(links) != 1 || links[0].Rel != "first" {
		t.Fatalf("expected only the first link, got %+v", links)
	}
}

func TestBuildLinksPreservesOtherQueryParameters(t *testing.T) {
	links := BuildLinks(5, 5, 12, mustParseURL(t, "/customer/search?name=bob&limit=5&offset=5"))

	for _, link := range links {
		if !strings.Contains(link.URL, "name=bob") {
			t.Fatalf("expected %q link to keep the name parameter: %q", link.Rel, link.URL)
		}
	}
	next, found := linkByRel(links, "next")
	if !found {
		t.Fatalf("expected a next link, got %+v", links)
	}
	if !strings.Contains(next.URL, "offset=10") {
		t.Fatalf("unexpected next offset: %q", next.URL)
	}
}

func TestFormatLinkHeader(t *testing.T) {
	header := FormatLinkHeader([]PageLink{
		{Rel: "first", URL: "/order?limit=10&offset=0"},
		{Rel: "next", URL: "/order?limit=10&offset=10"},
	})

	want := `</order?limit=10&offset=0>; rel="first", </order?limit=10&offset=10>; rel="next"`
	if header != want {
		t.Fatalf("unexpected header: %q", header)
	}
}
