package mapreduce

import (
	"fmt"
	"sort"
)

type kv struct {
	Key   string
	Value int
}

// ranked sorts counts by descending value, then by key for stable output.
func ranked(counts map[string]int) []kv {
	ss := make([]kv, 0, len(counts))
	for k, v := range counts {
		ss = append(ss, kv{k, v})
	}
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Value != ss[j].Value {
			return ss[i].Value > ss[j].Value
		}
		return ss[i].Key < ss[j].Key
	})
	return ss
}

// TopKeywords returns the top N labels formatted as "label:count".
func TopKeywords(counts map[string]int, n int) []string {
	ss := ranked(counts)

	limit := n
	if len(ss) < n {
		limit = len(ss)
	}
	if limit < 0 {
		limit = 0
	}

	keywords := make([]string, limit)
	for i := 0; i < limit; i++ {
		keywords[i] = fmt.Sprintf("%s:%d", ss[i].Key, ss[i].Value)
	}
	return keywords
}
