package model

import "encoding/json"

// SearchParams is the body of POST /api/search.
type SearchParams struct {
	Query      string `json:"query"`
	Engine     string `json:"engine,omitempty"`
	Language   string `json:"language,omitempty"`
	Region     string `json:"region,omitempty"`
	SafeSearch *int   `json:"safe_search,omitempty"`
	TimeRange  string `json:"time_range,omitempty"`
	Page       int    `json:"page,omitempty"`
	SearchType string `json:"search_type,omitempty"`
	Num        int    `json:"num,omitempty"`
	Domain     string `json:"domain,omitempty"`
}

// SearchResult is the provider-shaped response. Only the common parts
// are typed; the full document is kept in Raw.
type SearchResult struct {
	OrganicResults []OrganicResult `json:"organic_results,omitempty"`
	Metadata       *SearchMetadata `json:"search_metadata,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Date     string `json:"date,omitempty"`
}

type SearchMetadata struct {
	Status       string `json:"status,omitempty"`
	Query        string `json:"query,omitempty"`
	TotalResults string `json:"total_results,omitempty"`
	SearchTime   string `json:"search_time,omitempty"`
	Page         int    `json:"page,omitempty"`
}
