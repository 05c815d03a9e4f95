package model

import "time"

// SerpResult is one organic search result.
type SerpResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet,omitempty"`
}

// SerpSnapshot captures the SERP for one (query, geo, language) at fetch
// time. Snapshots make scoring and brief generation reproducible without
// re-paying provider quota.
type SerpSnapshot struct {
	Query        string       `json:"query"`
	Geo          string       `json:"geo"`
	Language     string       `json:"language"`
	Results      []SerpResult `json:"results"`
	Features     []string     `json:"features,omitempty"`
	PAAQuestions []string     `json:"paa_questions,omitempty"`
	AdsCount     int          `json:"ads_count"`
	AdsDensity   float64      `json:"ads_density"`
	MapPack      bool         `json:"map_pack"`
	Provider     string       `json:"provider"`
	FetchedAt    time.Time    `json:"fetched_at"`
}

// HasFeature reports whether the snapshot contains the named SERP feature.
func (s *SerpSnapshot) HasFeature(name string) bool {
	for _, f := range s.Features {
		if f == name {
			return true
		}
	}
	return false
}
