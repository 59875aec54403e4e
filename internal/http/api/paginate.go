package api

import (
	"net/http"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// Meta describes the position of a page within a result set
type Meta struct {
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	From        int `json:"from"`
	To          int `json:"to"`
}

// Page is a paginated result
type Page struct {
	Data []interface{} `json:"data"`
	Meta Meta          `json:"meta"`
}

// DefaultPerPage applies when a caller passes a non-positive page size
const DefaultPerPage = 15

// NewMeta computes pagination metadata. Page and perPage below 1 are
// clamped; from and to are 1-based and both 0 when the page is empty.
func NewMeta(total, page, perPage, count int) Meta {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	if total < 0 {
		total = 0
	}

	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}

	meta := Meta{
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    lastPage,
	}

	if count > 0 {
		meta.From = (page-1)*perPage + 1
		meta.To = min(page*perPage, total)
		if meta.To < meta.From {
			meta.To = meta.From + count - 1
		}
	}
	return meta
}

// NewPage builds a page from the items of the current page
func NewPage[T any](items []T, total, page, perPage int) Page {
	data := make([]interface{}, len(items))
	for i, item := range items {
		data[i] = item
	}
	return Page{
		Data: data,
		Meta: NewMeta(total, page, perPage, len(items)),
	}
}

// Paginate returns a 200 response with the pagination envelope
func Paginate[T any](items []T, total, page, perPage int) (*httpInternal.Response, error) {
	return httpInternal.JSON(http.StatusOK, NewPage(items, total, page, perPage))
}

// Offset returns the first row index for page, for use in queries
func Offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	return (page - 1) * perPage
}

// PageParams reads "page" and "per_page" from the query string, with
// per_page capped at maxPerPage
func PageParams(c *httpInternal.Context, maxPerPage int) (page, perPage int) {
	page, err := c.QueryInt("page")
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err = c.QueryInt("per_page")
	if err != nil || perPage < 1 {
		perPage = DefaultPerPage
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
