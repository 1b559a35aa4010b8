package accounts

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Link is a hypermedia control attached to responses
type Link struct {
	Rel    string `json:"rel"`
	Href   string `json:"href"`
	Method string `json:"method"`
}

// AccountLinks returns the controls available on a single account
func AccountLinks(baseURL string, id uuid.UUID) []Link {
	self := joinURL(baseURL, "/users/"+id.String())
	return []Link{
		{Rel: "self", Href: self, Method: "GET"},
		{Rel: "update", Href: self, Method: "PUT"},
		{Rel: "delete", Href: self, Method: "DELETE"},
	}
}

// PaginationLinks returns self, first and last links plus next and prev
// when they exist, for a skip/limit window over total records.
func PaginationLinks(baseURL, path string, skip, limit, total int) []Link {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	lastSkip := 0
	if total > 0 {
		lastSkip = ((total - 1) / limit) * limit
	}

	page := func(s int) string {
		q := url.Values{}
		q.Set("skip", fmt.Sprint(s))
		q.Set("limit", fmt.Sprint(limit))
		return joinURL(baseURL, path) + "?" + q.Encode()
	}

	links := []Link{
		{Rel: "self", Href: page(skip), Method: "GET"},
		{Rel: "first", Href: page(0), Method: "GET"},
		{Rel: "last", Href: page(lastSkip), Method: "GET"},
	}

	if skip+limit < total {
		links = append(links, Link{Rel: "next", Href: page(skip + limit), Method: "GET"})
	}

	if skip > 0 {
		prev := skip - limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, Link{Rel: "prev", Href: page(prev), Method: "GET"})
	}

	return links
}

func joinURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
