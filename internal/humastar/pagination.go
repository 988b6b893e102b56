package humastar

import (
	"fmt"
	"net/url"
	"strconv"
)

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(u *url.URL) []string
}

// PageBody is a page-numbered response envelope. Pages start at 1.
type PageBody[T any] struct {
	Total   int `json:"total" doc:"Total number of items"`
	Page    int `json:"page" doc:"Current page, starting at 1"`
	PerPage int `json:"per_page" doc:"Page size"`
	Data    []T `json:"data" doc:"Items"`
}

// LastPage returns the final page number; it is 1 for an empty set.
func (p PageBody[T]) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// PaginationLinks returns RFC 8288 first/prev/next/last links. Existing
// query parameters on u are kept so filters survive paging.
func (p PageBody[T]) PaginationLinks(u *url.URL) []string {
	link := func(page int, rel string) string {
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(p.PerPage))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, u.Path, q.Encode(), rel)
	}

	last := p.LastPage()
	links := []string{link(1, "first")}
	if p.Page > 1 {
		links = append(links, link(min(p.Page-1, last), "prev"))
	}
	if p.Page < last {
		links = append(links, link(p.Page+1, "next"))
	}
	return append(links, link(last, "last"))
}
