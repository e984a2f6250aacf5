package model

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultRPP is the page size used when none is requested.
	DefaultRPP = 20
	// MaxRPP caps page sizes accepted by list endpoints.
	MaxRPP = 100
	// MinSearchLen is the shortest search query that is sent to the backend.
	MinSearchLen = 3
)

// Meta describes one page of a list response.
type Meta struct {
	Page       int `json:"page"`
	RPP        int `json:"rpp"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewMeta builds pagination metadata. An empty result has zero pages.
func NewMeta(page, rpp, total int) Meta {
	if page < 1 {
		page = 1
	}
	if rpp < 1 {
		rpp = DefaultRPP
	}
	if total < 0 {
		total = 0
	}
	return Meta{Page: page, RPP: rpp, Total: total, TotalPages: TotalPages(total, rpp)}
}

// TotalPages returns ceil(total/rpp).
func TotalPages(total, rpp int) int {
	if rpp <= 0 || total <= 0 {
		return 0
	}
	return (total + rpp - 1) / rpp
}

// Offset is the index of the first row on the page.
func (m Meta) Offset() int {
	if m.Page < 1 {
		return 0
	}
	return (m.Page - 1) * m.RPP
}

// Page is the uniform envelope of every list endpoint.
type Page[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// ListParams are the query parameters of a list request.
type ListParams struct {
	Page     int    `json:"page,omitempty"`
	RPP      int    `json:"rpp,omitempty"`
	Search   string `json:"search,omitempty"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status,omitempty"`
	Sort     string `json:"sort,omitempty"`
}

// Values encodes the non-zero parameters as a query string.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.RPP > 0 {
		v.Set("rpp", strconv.Itoa(p.RPP))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Category != "" {
		v.Set("category", p.Category)
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	return v
}

// SearchQuery trims q and drops it when it is too short to be worth a request.
func SearchQuery(q string) string {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinSearchLen {
		return ""
	}
	return q
}

// Normalize applies defaults and the search threshold, and returns to page 1 whenever a
// filter differs from prev.
func (p ListParams) Normalize(prev ListParams) ListParams {
	p.Search = SearchQuery(p.Search)
	if p.RPP <= 0 {
		p.RPP = DefaultRPP
	}
	if p.RPP > MaxRPP {
		p.RPP = MaxRPP
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if prev == (ListParams{}) {
		return p
	}
	prevRPP := prev.RPP
	if prevRPP <= 0 {
		prevRPP = DefaultRPP
	}
	if p.Search != SearchQuery(prev.Search) || p.Category != prev.Category ||
		p.Status != prev.Status || p.Sort != prev.Sort || p.RPP != prevRPP {
		p.Page = 1
	}
	return p
}
