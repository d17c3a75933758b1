package mapreduce

import "strings"

// Map counts the labels of a single book, case-insensitively.
func Map(labels []string) map[string]int {
	counts := make(map[string]int, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		counts[l]++
	}
	return counts
}

// Reduce aggregates a slice of frequency maps into a single map.
func Reduce(intermediate []map[string]int) map[string]int {
	finalResults := make(map[string]int)

	for _, counts := range intermediate {
		for label, count := range counts {
			finalResults[label] += count
		}
	}

	return finalResults
}
