package manifest

import (
	"github.com/dtnitsch/tululu-parser/models"
	"github.com/dtnitsch/tululu-parser/pkg/mapreduce"
)

// RunSummary is printed when a crawl finishes. Exhausted books are listed
// explicitly since they are otherwise dropped from the manifest silently.
type RunSummary struct {
	GeneratedAt      string   `json:"generated_at" yaml:"generated_at"`
	RunID            int64    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Status           string   `json:"status" yaml:"status"`
	TotalIDs         int      `json:"total_ids" yaml:"total_ids"`
	Succeeded        int      `json:"succeeded" yaml:"succeeded"`
	Included         int      `json:"included" yaml:"included"`
	NotFound         []int    `json:"not_found" yaml:"not_found"`
	Exhausted        []int    `json:"exhausted" yaml:"exhausted"`
	Excluded         []int    `json:"excluded_by_policy" yaml:"excluded_by_policy"`
	ManifestPath     string   `json:"manifest_path" yaml:"manifest_path"`
	TotalTimeSeconds float64  `json:"total_time_seconds" yaml:"total_time_seconds"`
	TopGenres        []string `json:"top_genres,omitempty" yaml:"top_genres,omitempty"`
}

// TopGenres aggregates the genres of the included entries.
func TopGenres(entries []models.ManifestEntry, n int) []string {
	intermediate := make([]map[string]int, 0, len(entries))
	for _, e := range entries {
		intermediate = append(intermediate, mapreduce.Map(e.Genres))
	}
	return mapreduce.TopKeywords(mapreduce.Reduce(intermediate), n)
}
